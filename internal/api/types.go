package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// OrderSummary describes an order in a transport-friendly format.
type OrderSummary struct {
	ID           int64  `json:"id"`
	Reference    string `json:"reference"`
	Customer     string `json:"customer,omitempty"`
	DeliveryDate string `json:"deliveryDate,omitempty"`
	Status       string `json:"status"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// StepState is one pipeline step merged with its record for an order.
type StepState struct {
	Key            string       `json:"key"`
	Title          string       `json:"title"`
	Status         string       `json:"status"`
	Locked         bool         `json:"locked"`
	Skipped        bool         `json:"skipped"`
	Remark         string       `json:"remark,omitempty"`
	Images         []string     `json:"images,omitempty"`
	BoxCount       int          `json:"boxCount,omitempty"`
	CarrierName    string       `json:"carrierName,omitempty"`
	TrackingNumber string       `json:"trackingNumber,omitempty"`
	UpdatedAt      string       `json:"updatedAt,omitempty"`
	UpdatedBy      string       `json:"updatedBy,omitempty"`
	AuditLog       []AuditEntry `json:"auditLog"`
}

// AuditEntry is one immutable action record on a step.
type AuditEntry struct {
	Action    string `json:"action"`
	Actor     string `json:"actor"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Progress summarizes order completion for dashboard rendering.
type Progress struct {
	Percent  int  `json:"percent"`
	HasIssue bool `json:"hasIssue"`
}

// WorkflowView is the full step board for one order.
type WorkflowView struct {
	Order    OrderSummary `json:"order"`
	Steps    []StepState  `json:"steps"`
	Progress Progress     `json:"progress"`
}

// StockLine is one component requirement for an order.
type StockLine struct {
	ComponentID   string `json:"componentId"`
	ComponentName string `json:"componentName,omitempty"`
	RequiredQty   int    `json:"requiredQty"`
	WithdrawnQty  int    `json:"withdrawnQty"`
	RemainingQty  int    `json:"remainingQty"`
}

// WithdrawalLine is one component quantity taken in a withdrawal.
type WithdrawalLine struct {
	ComponentID string `json:"componentId"`
	Quantity    int    `json:"quantity"`
}

// Withdrawal is a committed stock withdrawal receipt.
type Withdrawal struct {
	ID        string           `json:"id"`
	Requester string           `json:"requester"`
	CreatedAt string           `json:"createdAt"`
	Lines     []WithdrawalLine `json:"lines"`
}

// HealthSummary buckets orders by overall state.
type HealthSummary struct {
	Total      int `json:"total"`
	NotStarted int `json:"notStarted"`
	InProgress int `json:"inProgress"`
	WithIssues int `json:"withIssues"`
	Shipped    int `json:"shipped"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"databasePath"`
	LockFilePath string         `json:"lockFilePath"`
	OrderStats   map[string]int `json:"orderStats"`
	Health       HealthSummary  `json:"health"`
}

// OrderListResponse wraps a collection of orders.
type OrderListResponse struct {
	Orders []OrderSummary `json:"orders"`
}

// OrderResponse wraps a single order.
type OrderResponse struct {
	Order OrderSummary `json:"order"`
}

// StepResponse wraps one step state after an update.
type StepResponse struct {
	Step StepState `json:"step"`
}

// StockResponse wraps the requirement lines for an order.
type StockResponse struct {
	Lines []StockLine `json:"lines"`
}

// WithdrawalListResponse wraps withdrawal history for an order.
type WithdrawalListResponse struct {
	Withdrawals []Withdrawal `json:"withdrawals"`
}

// WithdrawalResponse wraps one committed withdrawal receipt.
type WithdrawalResponse struct {
	Withdrawal Withdrawal `json:"withdrawal"`
}

// CreateOrderRequest is the payload for registering a new order.
type CreateOrderRequest struct {
	Reference    string             `json:"reference"`
	Customer     string             `json:"customer,omitempty"`
	DeliveryDate string             `json:"deliveryDate,omitempty"`
	Stock        []StockLineRequest `json:"stock,omitempty"`
}

// StockLineRequest is one component requirement in a create request.
type StockLineRequest struct {
	ComponentID   string `json:"componentId"`
	ComponentName string `json:"componentName,omitempty"`
	RequiredQty   int    `json:"requiredQty"`
}

// StepUpdateRequest is the payload for a step transition.
type StepUpdateRequest struct {
	Status         string   `json:"status"`
	Remark         string   `json:"remark,omitempty"`
	AddImages      []string `json:"addImages,omitempty"`
	RemoveImages   []string `json:"removeImages,omitempty"`
	BoxCount       *int     `json:"boxCount,omitempty"`
	CarrierName    *string  `json:"carrierName,omitempty"`
	TrackingNumber *string  `json:"trackingNumber,omitempty"`
}

// WithdrawRequest is the payload for a stock withdrawal.
type WithdrawRequest struct {
	Requester string                `json:"requester"`
	Items     []WithdrawItemRequest `json:"items"`
}

// WithdrawItemRequest is one requested component quantity.
type WithdrawItemRequest struct {
	ComponentID  string `json:"componentId"`
	WithdrawnQty int    `json:"withdrawnQty"`
}
