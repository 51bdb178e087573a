package workflow

import (
	"fmt"
	"strings"
)

// DefaultRestrictedRole is the department role allowed to update role-gated
// steps unless overridden in configuration.
const DefaultRestrictedRole = "design"

// StepDescriptor describes one step of the fixed production pipeline.
type StepDescriptor struct {
	Key                    string
	Title                  string
	CompletedStatusLabel   string
	HasBoxCount            bool
	HasShippingInfo        bool
	IsDeliverySlip         bool
	RequiresRestrictedRole bool
	Skippable              bool
}

// Definition is the immutable ordered list of pipeline steps. Step i+1
// depends on step i.
type Definition struct {
	steps []StepDescriptor
	index map[string]int
}

// NewDefinition builds a Definition, rejecting duplicate or empty keys.
func NewDefinition(steps []StepDescriptor) (Definition, error) {
	if len(steps) == 0 {
		return Definition{}, fmt.Errorf("definition requires at least one step")
	}
	index := make(map[string]int, len(steps))
	for i, step := range steps {
		key := strings.TrimSpace(step.Key)
		if key == "" {
			return Definition{}, fmt.Errorf("step %d has an empty key", i)
		}
		if _, exists := index[key]; exists {
			return Definition{}, fmt.Errorf("duplicate step key %q", key)
		}
		index[key] = i
	}
	cp := make([]StepDescriptor, len(steps))
	copy(cp, steps)
	return Definition{steps: cp, index: index}, nil
}

// Default returns the production pipeline definition.
func Default() Definition {
	return defaultDefinition
}

var defaultDefinition = func() Definition {
	def, err := NewDefinition([]StepDescriptor{
		{Key: "procurement", Title: "Procurement", CompletedStatusLabel: "materials withdrawn"},
		{Key: "assembly", Title: "Assembly", CompletedStatusLabel: "assembled"},
		{Key: "ribbon", Title: "Ribbon", CompletedStatusLabel: "ribbon attached", Skippable: true},
		{Key: "labeling", Title: "Labeling", CompletedStatusLabel: "labeled", Skippable: true, RequiresRestrictedRole: true},
		{Key: "qc", Title: "Quality Check", CompletedStatusLabel: "inspected"},
		{Key: "packing", Title: "Packing", CompletedStatusLabel: "packed", HasBoxCount: true},
		{Key: "delivery_slip", Title: "Delivery Slip", CompletedStatusLabel: "slip printed", IsDeliverySlip: true},
		{Key: "shipping", Title: "Shipping", CompletedStatusLabel: "shipped", HasShippingInfo: true},
	})
	if err != nil {
		panic(err)
	}
	return def
}()

// Len returns the number of steps.
func (d Definition) Len() int {
	return len(d.steps)
}

// Steps returns a copy of the ordered step descriptors.
func (d Definition) Steps() []StepDescriptor {
	cp := make([]StepDescriptor, len(d.steps))
	copy(cp, d.steps)
	return cp
}

// Step returns the descriptor at the given index.
func (d Definition) Step(index int) StepDescriptor {
	return d.steps[index]
}

// ByKey returns the descriptor and index for a step key.
func (d Definition) ByKey(key string) (StepDescriptor, int, bool) {
	i, ok := d.index[key]
	if !ok {
		return StepDescriptor{}, 0, false
	}
	return d.steps[i], i, true
}

// Keys returns the ordered step keys.
func (d Definition) Keys() []string {
	keys := make([]string, len(d.steps))
	for i, step := range d.steps {
		keys[i] = step.Key
	}
	return keys
}

// FinalIndex returns the index of the last step.
func (d Definition) FinalIndex() int {
	return len(d.steps) - 1
}
