package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldOrderID is the standardized structured logging key for order identifiers.
	FieldOrderID = "order_id"
	// FieldStep is the standardized structured logging key for workflow step keys.
	FieldStep = "step"
	// FieldActor is the standardized structured logging key for the acting user.
	FieldActor = "actor"
)

type contextKey struct{ name string }

var (
	orderIDKey = contextKey{"order_id"}
	stepKey    = contextKey{"step"}
)

// WithOrderID attaches an order identifier to the context for logging.
func WithOrderID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, orderIDKey, id)
}

// WithStep attaches a workflow step key to the context for logging.
func WithStep(ctx context.Context, step string) context.Context {
	return context.WithValue(ctx, stepKey, step)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := ctx.Value(orderIDKey).(int64); ok {
		fields = append(fields, slog.Int64(FieldOrderID, id))
	}
	if step, ok := ctx.Value(stepKey).(string); ok && step != "" {
		fields = append(fields, slog.String(FieldStep, step))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
