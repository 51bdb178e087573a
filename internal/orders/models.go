package orders

import (
	"strings"
	"time"
)

// StepStatus represents the lifecycle of one pipeline step for one order.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepIssue      StepStatus = "issue"
	StepComplete   StepStatus = "complete"
)

// StatusLabelNotStarted is the order status before any step completes.
const StatusLabelNotStarted = "not started"

var allStepStatuses = []StepStatus{
	StepPending,
	StepInProgress,
	StepIssue,
	StepComplete,
}

var stepStatusSet = func() map[StepStatus]struct{} {
	set := make(map[StepStatus]struct{}, len(allStepStatuses))
	for _, status := range allStepStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStepStatuses returns the ordered list of known step statuses.
func AllStepStatuses() []StepStatus {
	cp := make([]StepStatus, len(allStepStatuses))
	copy(cp, allStepStatuses)
	return cp
}

// ParseStepStatus converts a string into a known StepStatus.
func ParseStepStatus(value string) (StepStatus, bool) {
	normalized := StepStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stepStatusSet[normalized]
	return normalized, ok
}

// AuditEntry records one action taken against a step. Entries are append-only.
type AuditEntry struct {
	ID        int64
	OrderID   int64
	StepKey   string
	Action    string
	Actor     string
	Detail    string
	Timestamp time.Time
}

// StepRecord is the persisted state of one pipeline step for one order.
type StepRecord struct {
	OrderID        int64
	StepKey        string
	Status         StepStatus
	Remark         string
	Images         []string
	BoxCount       int
	CarrierName    string
	TrackingNumber string
	UpdatedAt      time.Time
	UpdatedBy      string
	AuditLog       []AuditEntry
}

// Clone returns a deep copy of the record so callers can mutate freely.
func (r *StepRecord) Clone() *StepRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Images = append([]string(nil), r.Images...)
	cp.AuditLog = append([]AuditEntry(nil), r.AuditLog...)
	return &cp
}

// HasImage reports whether the record carries at least one image reference.
func (r *StepRecord) HasImage() bool {
	return r != nil && len(r.Images) > 0
}

// Order represents a production order persisted in SQLite. Status mirrors the
// completed-status label of the highest completed step.
type Order struct {
	ID           int64
	Reference    string
	Customer     string
	DeliveryDate time.Time
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StockLine models one required component for an order's procurement step.
// WithdrawnQty accumulates across withdrawals and never exceeds RequiredQty.
type StockLine struct {
	OrderID       int64
	ComponentID   string
	ComponentName string
	RequiredQty   int
	WithdrawnQty  int
}

// Remaining returns the outstanding requirement for the line.
func (l StockLine) Remaining() int {
	return l.RequiredQty - l.WithdrawnQty
}

// WithdrawalLine is one component quantity taken in a withdrawal.
type WithdrawalLine struct {
	ComponentID string
	Quantity    int
}

// Withdrawal is the receipt recorded for a successful stock withdrawal.
type Withdrawal struct {
	ID        string
	OrderID   int64
	Requester string
	CreatedAt time.Time
	Lines     []WithdrawalLine
}

// HealthSummary describes aggregated order counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	NotStarted int
	InProgress int
	WithIssues int
	Shipped    int
}

// DatabaseHealth captures diagnostic information about the order database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalOrders      int
	Error            string
}
