package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fabline/internal/config"
	"fabline/internal/logging"
	"fabline/internal/notifications"
	"fabline/internal/orders"
)

// Audit action labels written by engine transitions.
const (
	ActionReportIssue   = "report issue"
	ActionMarkComplete  = "mark complete"
	ActionReopen        = "reopen"
	ActionUpdate        = "update"
	ActionWithdrawStock = "withdraw stock"
)

// Actor identifies who is performing an operation.
type Actor struct {
	ID   string
	Role string
}

// StepUpdate carries one requested step transition. AddImages append to the
// record's image list; RemoveImages drop matching references. Optional
// fields apply only to steps whose descriptor enables them.
type StepUpdate struct {
	Status         orders.StepStatus
	Remark         string
	AddImages      []string
	RemoveImages   []string
	BoxCount       *int
	CarrierName    *string
	TrackingNumber *string
	AuditAction    string
	AuditDetail    string
}

// WithdrawalItem is one requested component quantity for a stock withdrawal.
type WithdrawalItem struct {
	ComponentID  string
	WithdrawnQty int
}

// View bundles everything a caller needs to render one order's workflow.
type View struct {
	Order    *orders.Order
	Steps    []StepDescriptor
	Records  map[string]*orders.StepRecord
	Progress ProgressSummary
}

// Engine orchestrates workflow transitions. It is the only component
// permitted to mutate step state, and serializes operations per order.
type Engine struct {
	store          *orders.Store
	def            Definition
	notifier       notifications.Service
	logger         *slog.Logger
	restrictedRole string
	now            func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// EngineOption configures optional Engine behavior.
type EngineOption func(*Engine)

// WithClock overrides the engine time source (used in tests).
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithDefinition overrides the pipeline definition (used in tests).
func WithDefinition(def Definition) EngineOption {
	return func(e *Engine) {
		e.def = def
	}
}

// NewEngine constructs a workflow engine over the given store.
func NewEngine(cfg *config.Config, store *orders.Store, logger *slog.Logger, notifier notifications.Service, opts ...EngineOption) *Engine {
	restrictedRole := DefaultRestrictedRole
	if cfg != nil && cfg.Workflow.RestrictedRole != "" {
		restrictedRole = cfg.Workflow.RestrictedRole
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	engine := &Engine{
		store:          store,
		def:            Default(),
		notifier:       notifier,
		logger:         logging.NewComponentLogger(logger, "workflow-engine"),
		restrictedRole: restrictedRole,
		now:            func() time.Time { return time.Now().UTC() },
		locks:          make(map[int64]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Definition returns the pipeline definition the engine runs.
func (e *Engine) Definition() Definition {
	return e.def
}

// lockOrder serializes operations per order without coupling orders to each
// other. Mutexes are retained for the life of the process; the map is
// bounded by the number of distinct orders touched.
func (e *Engine) lockOrder(orderID int64) func() {
	e.mu.Lock()
	lock, ok := e.locks[orderID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[orderID] = lock
	}
	e.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// GetWorkflow returns the definition, record set, and derived progress for
// one order.
func (e *Engine) GetWorkflow(ctx context.Context, orderID int64) (*View, error) {
	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, &PersistenceError{Op: "load order", Err: err}
	}
	if order == nil {
		return nil, newNotFoundError("order", "order does not exist")
	}
	records, err := e.store.StepRecordsForOrder(ctx, orderID)
	if err != nil {
		return nil, &PersistenceError{Op: "load step records", Err: err}
	}
	return &View{
		Order:    order,
		Steps:    e.def.Steps(),
		Records:  records,
		Progress: Summarize(e.def, records),
	}, nil
}

// StepRecords returns the record set for one order keyed by step.
func (e *Engine) StepRecords(ctx context.Context, orderID int64) (map[string]*orders.StepRecord, error) {
	records, err := e.store.StepRecordsForOrder(ctx, orderID)
	if err != nil {
		return nil, &PersistenceError{Op: "load step records", Err: err}
	}
	return records, nil
}

// loadOrderState fetches the order and its record set, mapping absence to a
// not-found validation error.
func (e *Engine) loadOrderState(ctx context.Context, orderID int64) (*orders.Order, map[string]*orders.StepRecord, error) {
	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, &PersistenceError{Op: "load order", Err: err}
	}
	if order == nil {
		return nil, nil, newNotFoundError("order", "order does not exist")
	}
	records, err := e.store.StepRecordsForOrder(ctx, orderID)
	if err != nil {
		return nil, nil, &PersistenceError{Op: "load step records", Err: err}
	}
	return order, records, nil
}
