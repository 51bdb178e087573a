package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fabline/internal/config"
)

const userAgent = "Fabline/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyIssueReported(ctx context.Context, orderRef, stepTitle, remark string) error
	NotifyStepCompleted(ctx context.Context, orderRef, stepTitle string) error
	NotifyOrderShipped(ctx context.Context, orderRef string) error
	NotifyStockWithdrawn(ctx context.Context, orderRef, requester string, lineCount int) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		events:   cfg.Notifications,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	events   config.Notifications
}

func (n *ntfyService) NotifyIssueReported(ctx context.Context, orderRef, stepTitle, remark string) error {
	if !n.events.Issues {
		return nil
	}
	message := fmt.Sprintf("Issue on %s / %s", strings.TrimSpace(orderRef), strings.TrimSpace(stepTitle))
	if remark = strings.TrimSpace(remark); remark != "" {
		message = fmt.Sprintf("%s: %s", message, remark)
	}
	data := payload{
		title:    "Fabline - Issue Reported",
		message:  message,
		tags:     []string{"fabline", "issue"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyStepCompleted(ctx context.Context, orderRef, stepTitle string) error {
	if !n.events.Steps {
		return nil
	}
	data := payload{
		title:   "Fabline - Step Complete",
		message: fmt.Sprintf("%s: %s complete", strings.TrimSpace(orderRef), strings.TrimSpace(stepTitle)),
		tags:    []string{"fabline", "step", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyOrderShipped(ctx context.Context, orderRef string) error {
	if !n.events.Shipping {
		return nil
	}
	data := payload{
		title:    "Fabline - Shipped",
		message:  fmt.Sprintf("Order %s has shipped", strings.TrimSpace(orderRef)),
		tags:     []string{"fabline", "shipping", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyStockWithdrawn(ctx context.Context, orderRef, requester string, lineCount int) error {
	if !n.events.Stock {
		return nil
	}
	data := payload{
		title:   "Fabline - Stock Withdrawn",
		message: fmt.Sprintf("%s withdrew %d component(s) for order %s", strings.TrimSpace(requester), lineCount, strings.TrimSpace(orderRef)),
		tags:    []string{"fabline", "stock"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.events.Errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Fabline - Error",
		message:  builder.String(),
		tags:     []string{"fabline", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Fabline - Test",
		message:  "Notification system test",
		tags:     []string{"fabline", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyIssueReported(context.Context, string, string, string) error { return nil }

func (noopService) NotifyStepCompleted(context.Context, string, string) error { return nil }

func (noopService) NotifyOrderShipped(context.Context, string) error { return nil }

func (noopService) NotifyStockWithdrawn(context.Context, string, string, int) error { return nil }

func (noopService) NotifyError(context.Context, error, string) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }
