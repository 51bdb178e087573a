package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"fabline/internal/api"
	"fabline/internal/logging"
	"fabline/internal/notifications"
	"fabline/internal/testsupport"
	"fabline/internal/workflow"
)

func startTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*Daemon, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	engine := workflow.NewEngine(cfg, store, logging.NewNop(), notifications.NewService(nil))

	d, err := New(cfg, store, logging.NewNop(), engine)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		d.Stop()
	})
	return d, "http://" + d.APIAddr()
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, payload)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, buf.Bytes()
}

func createTestOrder(t *testing.T, base string) api.OrderSummary {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, base+"/api/orders", api.CreateOrderRequest{
		Reference: "ORD-1001",
		Customer:  "Siam Gifts Co.",
		Stock: []api.StockLineRequest{
			{ComponentID: "frame-a", ComponentName: "Frame A", RequiredQty: 200},
		},
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create order: status %d body %s", resp.StatusCode, body)
	}
	var created api.OrderResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return created.Order
}

func TestAPIServerStatusEndpoint(t *testing.T) {
	_, base := startTestDaemon(t)

	resp, body := doJSON(t, http.MethodGet, base+"/api/status", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status endpoint: %d", resp.StatusCode)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.DatabasePath == "" || status.LockFilePath == "" {
		t.Fatalf("unexpected status payload: %+v", status)
	}
}

func TestAPIServerOrderLifecycle(t *testing.T) {
	_, base := startTestDaemon(t)
	order := createTestOrder(t, base)
	actor := map[string]string{"X-Actor-ID": "somchai", "X-Actor-Role": "production"}

	resp, body := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/orders/%d/workflow", base, order.ID), nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("workflow endpoint: %d body %s", resp.StatusCode, body)
	}
	var view api.WorkflowView
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("decode workflow: %v", err)
	}
	if len(view.Steps) != 8 || view.Steps[0].Status != "in_progress" {
		t.Fatalf("unexpected workflow view: %+v", view.Steps)
	}

	resp, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/orders/%d/steps/procurement", base, order.ID), api.StepUpdateRequest{
		Status:    "complete",
		AddImages: []string{"receipt.jpg"},
	}, actor)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("step update: %d body %s", resp.StatusCode, body)
	}
	var step api.StepResponse
	if err := json.Unmarshal(body, &step); err != nil {
		t.Fatalf("decode step: %v", err)
	}
	if step.Step.Status != "complete" || step.Step.UpdatedBy != "somchai" {
		t.Fatalf("unexpected step payload: %+v", step.Step)
	}

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/orders/%d", base, order.ID), nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("order detail: %d", resp.StatusCode)
	}
	var detail api.OrderResponse
	if err := json.Unmarshal(body, &detail); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if detail.Order.Status != "materials withdrawn" {
		t.Fatalf("order status not updated: %+v", detail.Order)
	}

	resp, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/orders/%d/steps/procurement/reopen", base, order.ID), nil, actor)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reopen: %d body %s", resp.StatusCode, body)
	}
}

func TestAPIServerValidationErrorMapping(t *testing.T) {
	_, base := startTestDaemon(t)
	order := createTestOrder(t, base)
	actor := map[string]string{"X-Actor-ID": "somchai", "X-Actor-Role": "production"}

	// Locked step rejection carries the offending field.
	resp, body := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/orders/%d/steps/qc", base, order.ID), api.StepUpdateRequest{
		Status:    "complete",
		AddImages: []string{"img.jpg"},
	}, actor)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("locked step should map to 400, got %d", resp.StatusCode)
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload["field"] != "step" {
		t.Fatalf("unexpected error payload: %v", payload)
	}

	// Unknown order maps to 404.
	resp, _ = doJSON(t, http.MethodPost, base+"/api/orders/9999/steps/procurement", api.StepUpdateRequest{
		Status: "in_progress",
	}, actor)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown order should map to 404, got %d", resp.StatusCode)
	}
}

func TestAPIServerWithdrawals(t *testing.T) {
	_, base := startTestDaemon(t)
	order := createTestOrder(t, base)

	resp, body := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/orders/%d/withdrawals", base, order.ID), api.WithdrawRequest{
		Requester: "somchai",
		Items:     []api.WithdrawItemRequest{{ComponentID: "frame-a", WithdrawnQty: 150}},
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("withdraw: %d body %s", resp.StatusCode, body)
	}
	var receipt api.WithdrawalResponse
	if err := json.Unmarshal(body, &receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if receipt.Withdrawal.ID == "" {
		t.Fatalf("missing receipt id: %+v", receipt)
	}

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/orders/%d/stock", base, order.ID), nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stock: %d", resp.StatusCode)
	}
	var stock api.StockResponse
	if err := json.Unmarshal(body, &stock); err != nil {
		t.Fatalf("decode stock: %v", err)
	}
	if len(stock.Lines) != 1 || stock.Lines[0].RemainingQty != 50 {
		t.Fatalf("unexpected stock payload: %+v", stock.Lines)
	}

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/orders/%d/withdrawals", base, order.ID), nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("withdrawal list: %d", resp.StatusCode)
	}
	var history api.WithdrawalListResponse
	if err := json.Unmarshal(body, &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.Withdrawals) != 1 {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestAPIServerBearerAuth(t *testing.T) {
	_, base := startTestDaemon(t, testsupport.WithAPIToken("secret-token"))

	resp, _ := doJSON(t, http.MethodGet, base+"/api/status", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token should be rejected, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, base+"/api/status", nil, map[string]string{
		"Authorization": "Bearer wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong token should be rejected, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, base+"/api/status", nil, map[string]string{
		"Authorization": "Bearer secret-token",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid token should pass, got %d", resp.StatusCode)
	}
}
