package notifications

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"fabline/internal/config"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var captured []capturedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		captured = append(captured, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	return server, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), captured...)
	}
}

func newNtfyConfig(topic string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	cfg.Notifications.Issues = true
	cfg.Notifications.Steps = true
	cfg.Notifications.Shipping = true
	cfg.Notifications.Stock = true
	cfg.Notifications.Errors = true
	return &cfg
}

func TestNewServiceWithoutTopicIsNoop(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	if _, ok := NewService(&cfg).(noopService); !ok {
		t.Fatal("expected noop service without a topic")
	}
	if _, ok := NewService(nil).(noopService); !ok {
		t.Fatal("expected noop service for nil config")
	}
}

func TestIssueNotificationPayload(t *testing.T) {
	server, requests := newCaptureServer(t)
	svc := NewService(newNtfyConfig(server.URL))

	if err := svc.NotifyIssueReported(context.Background(), "ORD-1001", "Assembly", "bent frame"); err != nil {
		t.Fatalf("NotifyIssueReported: %v", err)
	}

	got := requests()
	if len(got) != 1 {
		t.Fatalf("expected one request, got %d", len(got))
	}
	if got[0].title != "Fabline - Issue Reported" || got[0].priority != "high" {
		t.Fatalf("unexpected headers: %+v", got[0])
	}
	if got[0].body != "Issue on ORD-1001 / Assembly: bent frame" {
		t.Fatalf("unexpected body: %q", got[0].body)
	}
}

func TestEventTogglesSuppressSends(t *testing.T) {
	server, requests := newCaptureServer(t)
	cfg := newNtfyConfig(server.URL)
	cfg.Notifications.Steps = false
	svc := NewService(cfg)

	if err := svc.NotifyStepCompleted(context.Background(), "ORD-1001", "Assembly"); err != nil {
		t.Fatalf("NotifyStepCompleted: %v", err)
	}
	if len(requests()) != 0 {
		t.Fatal("disabled event should not send")
	}

	if err := svc.NotifyOrderShipped(context.Background(), "ORD-1001"); err != nil {
		t.Fatalf("NotifyOrderShipped: %v", err)
	}
	if len(requests()) != 1 {
		t.Fatal("enabled event should send")
	}
}

func TestSendSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic rejected", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	svc := NewService(newNtfyConfig(server.URL))
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("server rejection should surface as an error")
	}
}
