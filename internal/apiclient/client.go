package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fabline/internal/api"
	"fabline/internal/workflow"
)

// Client provides HTTP access to a running fabline daemon.
type Client struct {
	base   string
	token  string
	client *http.Client
}

// Error is a decoded API error payload with its HTTP status attached.
type Error struct {
	StatusCode int
	Message    string
	Field      string
	Retryable  bool
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// New constructs a client against the given base address ("host:port" or a
// full URL). Token may be empty when the daemon runs without auth.
func New(address, token string) *Client {
	base := strings.TrimRight(strings.TrimSpace(address), "/")
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Ping reports whether the daemon answers on the status endpoint.
func (c *Client) Ping(ctx context.Context) bool {
	_, err := c.Status(ctx)
	return err == nil
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var status api.DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListOrders returns orders filtered by status label.
func (c *Client) ListOrders(ctx context.Context, statuses []string) ([]api.OrderSummary, error) {
	path := "/api/orders"
	if len(statuses) > 0 {
		query := url.Values{}
		for _, status := range statuses {
			query.Add("status", status)
		}
		path += "?" + query.Encode()
	}
	var resp api.OrderListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

// CreateOrder registers a new order.
func (c *Client) CreateOrder(ctx context.Context, req api.CreateOrderRequest) (*api.OrderSummary, error) {
	var resp api.OrderResponse
	if err := c.do(ctx, http.MethodPost, "/api/orders", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

// GetOrder fetches a single order. Returns nil when absent.
func (c *Client) GetOrder(ctx context.Context, id int64) (*api.OrderSummary, error) {
	var resp api.OrderResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/orders/%d", id), nil, &resp)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &resp.Order, nil
}

// Workflow fetches the full step board for one order.
func (c *Client) Workflow(ctx context.Context, orderID int64) (*api.WorkflowView, error) {
	var view api.WorkflowView
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/orders/%d/workflow", orderID), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// UpdateStep applies one step transition as the given actor.
func (c *Client) UpdateStep(ctx context.Context, orderID int64, stepKey string, req api.StepUpdateRequest, actor workflow.Actor) (*api.StepState, error) {
	var resp api.StepResponse
	path := fmt.Sprintf("/api/orders/%d/steps/%s", orderID, url.PathEscape(stepKey))
	if err := c.doAs(ctx, http.MethodPost, path, req, &resp, actor); err != nil {
		return nil, err
	}
	return &resp.Step, nil
}

// ReopenStep returns a complete or issue step to in_progress.
func (c *Client) ReopenStep(ctx context.Context, orderID int64, stepKey string, actor workflow.Actor) (*api.StepState, error) {
	var resp api.StepResponse
	path := fmt.Sprintf("/api/orders/%d/steps/%s/reopen", orderID, url.PathEscape(stepKey))
	if err := c.doAs(ctx, http.MethodPost, path, nil, &resp, actor); err != nil {
		return nil, err
	}
	return &resp.Step, nil
}

// Withdraw commits a stock withdrawal.
func (c *Client) Withdraw(ctx context.Context, orderID int64, req api.WithdrawRequest) (*api.Withdrawal, error) {
	var resp api.WithdrawalResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/orders/%d/withdrawals", orderID), req, &resp); err != nil {
		return nil, err
	}
	return &resp.Withdrawal, nil
}

// Stock fetches the requirement lines for an order.
func (c *Client) Stock(ctx context.Context, orderID int64) ([]api.StockLine, error) {
	var resp api.StockResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/orders/%d/stock", orderID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Lines, nil
}

// Withdrawals fetches the withdrawal history for an order.
func (c *Client) Withdrawals(ctx context.Context, orderID int64) ([]api.Withdrawal, error) {
	var resp api.WithdrawalListResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/orders/%d/withdrawals", orderID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Withdrawals, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	return c.doAs(ctx, method, path, body, dst, workflow.Actor{})
}

func (c *Client) doAs(ctx context.Context, method, path string, body, dst any, actor workflow.Actor) error {
	if c.base == "" {
		return fmt.Errorf("api address not configured")
	}

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if actor.ID != "" {
		req.Header.Set("X-Actor-ID", actor.ID)
	}
	if actor.Role != "" {
		req.Header.Set("X-Actor-Role", actor.Role)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode, Message: resp.Status}
	var payload struct {
		Error     string `json:"error"`
		Field     string `json:"field"`
		Retryable bool   `json:"retryable"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Field = payload.Field
		apiErr.Retryable = payload.Retryable
	}
	return apiErr
}
