package orderaccess

import (
	"context"

	"fabline/internal/api"
	"fabline/internal/apiclient"
	"fabline/internal/workflow"
)

// Access provides order and workflow operations regardless of HTTP or
// direct store backing, so CLI commands render the same payloads either way.
type Access interface {
	ListOrders(ctx context.Context, statuses []string) ([]api.OrderSummary, error)
	CreateOrder(ctx context.Context, req api.CreateOrderRequest) (*api.OrderSummary, error)
	Describe(ctx context.Context, id int64) (*api.OrderSummary, error)
	DescribeByReference(ctx context.Context, reference string) (*api.OrderSummary, error)
	Workflow(ctx context.Context, orderID int64) (*api.WorkflowView, error)
	UpdateStep(ctx context.Context, orderID int64, stepKey string, req api.StepUpdateRequest, actor workflow.Actor) (*api.StepState, error)
	ReopenStep(ctx context.Context, orderID int64, stepKey string, actor workflow.Actor) (*api.StepState, error)
	Withdraw(ctx context.Context, orderID int64, req api.WithdrawRequest) (*api.Withdrawal, error)
	Stock(ctx context.Context, orderID int64) ([]api.StockLine, error)
	Withdrawals(ctx context.Context, orderID int64) ([]api.Withdrawal, error)
	Stats(ctx context.Context) (map[string]int, error)
}

// NewHTTPAccess returns an Access backed by the daemon HTTP API.
func NewHTTPAccess(client *apiclient.Client) Access {
	return &httpAccess{client: client}
}

// NewServiceAccess returns an Access backed by a direct service instance.
func NewServiceAccess(service *api.WorkflowService) Access {
	return &serviceAccess{service: service}
}

type httpAccess struct {
	client *apiclient.Client
}

func (a *httpAccess) ListOrders(ctx context.Context, statuses []string) ([]api.OrderSummary, error) {
	return a.client.ListOrders(ctx, statuses)
}

func (a *httpAccess) CreateOrder(ctx context.Context, req api.CreateOrderRequest) (*api.OrderSummary, error) {
	return a.client.CreateOrder(ctx, req)
}

func (a *httpAccess) Describe(ctx context.Context, id int64) (*api.OrderSummary, error) {
	return a.client.GetOrder(ctx, id)
}

func (a *httpAccess) DescribeByReference(ctx context.Context, reference string) (*api.OrderSummary, error) {
	// The API has no reference lookup route; filter the listing instead.
	list, err := a.client.ListOrders(ctx, nil)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].Reference == reference {
			return &list[i], nil
		}
	}
	return nil, nil
}

func (a *httpAccess) Workflow(ctx context.Context, orderID int64) (*api.WorkflowView, error) {
	return a.client.Workflow(ctx, orderID)
}

func (a *httpAccess) UpdateStep(ctx context.Context, orderID int64, stepKey string, req api.StepUpdateRequest, actor workflow.Actor) (*api.StepState, error) {
	return a.client.UpdateStep(ctx, orderID, stepKey, req, actor)
}

func (a *httpAccess) ReopenStep(ctx context.Context, orderID int64, stepKey string, actor workflow.Actor) (*api.StepState, error) {
	return a.client.ReopenStep(ctx, orderID, stepKey, actor)
}

func (a *httpAccess) Withdraw(ctx context.Context, orderID int64, req api.WithdrawRequest) (*api.Withdrawal, error) {
	return a.client.Withdraw(ctx, orderID, req)
}

func (a *httpAccess) Stock(ctx context.Context, orderID int64) ([]api.StockLine, error) {
	return a.client.Stock(ctx, orderID)
}

func (a *httpAccess) Withdrawals(ctx context.Context, orderID int64) ([]api.Withdrawal, error) {
	return a.client.Withdrawals(ctx, orderID)
}

func (a *httpAccess) Stats(ctx context.Context) (map[string]int, error) {
	status, err := a.client.Status(ctx)
	if err != nil {
		return nil, err
	}
	return status.OrderStats, nil
}

type serviceAccess struct {
	service *api.WorkflowService
}

func (a *serviceAccess) ListOrders(ctx context.Context, statuses []string) ([]api.OrderSummary, error) {
	return a.service.List(ctx, statuses...)
}

func (a *serviceAccess) CreateOrder(ctx context.Context, req api.CreateOrderRequest) (*api.OrderSummary, error) {
	return a.service.CreateOrder(ctx, req)
}

func (a *serviceAccess) Describe(ctx context.Context, id int64) (*api.OrderSummary, error) {
	return a.service.Describe(ctx, id)
}

func (a *serviceAccess) DescribeByReference(ctx context.Context, reference string) (*api.OrderSummary, error) {
	return a.service.DescribeByReference(ctx, reference)
}

func (a *serviceAccess) Workflow(ctx context.Context, orderID int64) (*api.WorkflowView, error) {
	return a.service.Workflow(ctx, orderID)
}

func (a *serviceAccess) UpdateStep(ctx context.Context, orderID int64, stepKey string, req api.StepUpdateRequest, actor workflow.Actor) (*api.StepState, error) {
	return a.service.UpdateStep(ctx, orderID, stepKey, req, actor)
}

func (a *serviceAccess) ReopenStep(ctx context.Context, orderID int64, stepKey string, actor workflow.Actor) (*api.StepState, error) {
	return a.service.ReopenStep(ctx, orderID, stepKey, actor)
}

func (a *serviceAccess) Withdraw(ctx context.Context, orderID int64, req api.WithdrawRequest) (*api.Withdrawal, error) {
	return a.service.Withdraw(ctx, orderID, req)
}

func (a *serviceAccess) Stock(ctx context.Context, orderID int64) ([]api.StockLine, error) {
	return a.service.Stock(ctx, orderID)
}

func (a *serviceAccess) Withdrawals(ctx context.Context, orderID int64) ([]api.Withdrawal, error) {
	return a.service.Withdrawals(ctx, orderID)
}

func (a *serviceAccess) Stats(ctx context.Context) (map[string]int, error) {
	return a.service.Stats(ctx)
}
