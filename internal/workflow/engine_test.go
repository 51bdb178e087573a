package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"fabline/internal/config"
	"fabline/internal/logging"
	"fabline/internal/orders"
	"fabline/internal/testsupport"
	"fabline/internal/workflow"
)

type recordingNotifier struct {
	mu      sync.Mutex
	issues  []string
	shipped []string
	stock   []string
}

func (r *recordingNotifier) NotifyIssueReported(_ context.Context, orderRef, stepTitle, remark string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issues = append(r.issues, fmt.Sprintf("%s/%s/%s", orderRef, stepTitle, remark))
	return nil
}

func (r *recordingNotifier) NotifyStepCompleted(context.Context, string, string) error { return nil }

func (r *recordingNotifier) NotifyOrderShipped(_ context.Context, orderRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shipped = append(r.shipped, orderRef)
	return nil
}

func (r *recordingNotifier) NotifyStockWithdrawn(_ context.Context, orderRef, requester string, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stock = append(r.stock, fmt.Sprintf("%s/%s", orderRef, requester))
	return nil
}

func (r *recordingNotifier) NotifyError(context.Context, error, string) error { return nil }

func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

type engineFixture struct {
	cfg      *config.Config
	store    *orders.Store
	engine   *workflow.Engine
	notifier *recordingNotifier
	order    *orders.Order
}

func newEngineFixture(t *testing.T, stock ...orders.StockLine) *engineFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{}
	engine := workflow.NewEngine(cfg, store, logging.NewNop(), notifier)
	order := testsupport.NewOrder(t, store, "ORD-1001", stock...)
	return &engineFixture{cfg: cfg, store: store, engine: engine, notifier: notifier, order: order}
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

var worker = workflow.Actor{ID: "somchai", Role: "production"}

func completeStep(t *testing.T, f *engineFixture, stepKey string, actor workflow.Actor) *orders.StepRecord {
	t.Helper()
	update := workflow.StepUpdate{
		Status:    orders.StepComplete,
		AddImages: []string{"img-" + stepKey},
	}
	desc, _, ok := f.engine.Definition().ByKey(stepKey)
	if !ok {
		t.Fatalf("unknown step %s", stepKey)
	}
	if desc.HasBoxCount {
		update.BoxCount = intPtr(3)
	}
	record, err := f.engine.ApplyStepUpdate(context.Background(), f.order.ID, stepKey, update, actor)
	if err != nil {
		t.Fatalf("complete %s: %v", stepKey, err)
	}
	return record
}

func TestApplyStepUpdateCompletesAndAutoAdvances(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	record, err := f.engine.ApplyStepUpdate(ctx, f.order.ID, "procurement", workflow.StepUpdate{
		Status:    orders.StepComplete,
		AddImages: []string{"img1"},
	}, worker)
	if err != nil {
		t.Fatalf("ApplyStepUpdate failed: %v", err)
	}
	if record.Status != orders.StepComplete {
		t.Fatalf("expected complete, got %s", record.Status)
	}
	if len(record.AuditLog) != 1 || record.AuditLog[0].Action != workflow.ActionMarkComplete {
		t.Fatalf("unexpected audit log: %+v", record.AuditLog)
	}

	view, err := f.engine.GetWorkflow(ctx, f.order.ID)
	if err != nil {
		t.Fatalf("GetWorkflow failed: %v", err)
	}
	if view.Records["assembly"].Status != orders.StepInProgress {
		t.Fatalf("assembly should auto-advance, got %s", view.Records["assembly"].Status)
	}
	if view.Order.Status != "materials withdrawn" {
		t.Fatalf("order status should mirror step label, got %q", view.Order.Status)
	}
	if view.Progress.Percent != 12 {
		t.Fatalf("expected 12%% progress, got %d", view.Progress.Percent)
	}
}

func TestApplyStepUpdateRejectsLockedStep(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.ApplyStepUpdate(ctx, f.order.ID, "qc", workflow.StepUpdate{
		Status:    orders.StepComplete,
		AddImages: []string{"img1"},
	}, worker)
	if err == nil {
		t.Fatal("expected locked rejection")
	}
	if !errors.Is(err, workflow.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var vErr *workflow.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "step" {
		t.Fatalf("expected step field, got %+v", err)
	}

	record, storeErr := f.store.GetStepRecord(ctx, f.order.ID, "qc")
	if storeErr != nil {
		t.Fatalf("GetStepRecord: %v", storeErr)
	}
	if record.Status != orders.StepPending || len(record.AuditLog) != 0 || len(record.Images) != 0 {
		t.Fatalf("locked rejection must not mutate the record: %+v", record)
	}
}

func TestApplyStepUpdateRequiresImage(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.ApplyStepUpdate(ctx, f.order.ID, "procurement", workflow.StepUpdate{
		Status: orders.StepComplete,
	}, worker)
	if !errors.Is(err, workflow.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var vErr *workflow.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "images" {
		t.Fatalf("expected images field, got %+v", err)
	}

	record, storeErr := f.store.GetStepRecord(ctx, f.order.ID, "procurement")
	if storeErr != nil {
		t.Fatalf("GetStepRecord: %v", storeErr)
	}
	if record.Status != orders.StepInProgress {
		t.Fatalf("rejected update must not change status, got %s", record.Status)
	}
}

func TestDeliverySlipStepCompletesWithoutImage(t *testing.T) {
	f := newEngineFixture(t)
	for _, key := range []string{"procurement", "assembly", "ribbon", "qc", "packing"} {
		completeStep(t, f, key, worker)
	}
	completeStep(t, f, "labeling", workflow.Actor{ID: "nok", Role: "design"})

	record, err := f.engine.ApplyStepUpdate(context.Background(), f.order.ID, "delivery_slip", workflow.StepUpdate{
		Status:      orders.StepComplete,
		AuditAction: "print delivery slip",
	}, worker)
	if err != nil {
		t.Fatalf("delivery slip completion failed: %v", err)
	}
	if record.Status != orders.StepComplete {
		t.Fatalf("expected complete, got %s", record.Status)
	}
}

func TestIssueRequiresRemark(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.ApplyStepUpdate(ctx, f.order.ID, "procurement", workflow.StepUpdate{
		Status:    orders.StepIssue,
		AddImages: []string{"img1"},
	}, worker)
	var vErr *workflow.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "remark" {
		t.Fatalf("expected remark validation error, got %v", err)
	}

	record, err := f.engine.ApplyStepUpdate(ctx, f.order.ID, "procurement", workflow.StepUpdate{
		Status:    orders.StepIssue,
		Remark:    "missing screws",
		AddImages: []string{"img1"},
	}, worker)
	if err != nil {
		t.Fatalf("issue report failed: %v", err)
	}
	if record.Status != orders.StepIssue || record.Remark != "missing screws" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.AuditLog[len(record.AuditLog)-1].Action != workflow.ActionReportIssue {
		t.Fatalf("expected report issue audit entry: %+v", record.AuditLog)
	}
	if len(f.notifier.issues) != 1 {
		t.Fatalf("expected one issue notification, got %d", len(f.notifier.issues))
	}
}

func TestRoleGateOnLabeling(t *testing.T) {
	f := newEngineFixture(t)
	for _, key := range []string{"procurement", "assembly", "ribbon"} {
		completeStep(t, f, key, worker)
	}
	ctx := context.Background()

	_, err := f.engine.ApplyStepUpdate(ctx, f.order.ID, "labeling", workflow.StepUpdate{
		Status:    orders.StepComplete,
		AddImages: []string{"label.jpg"},
	}, workflow.Actor{ID: "somchai", Role: "production"})
	var vErr *workflow.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "role" {
		t.Fatalf("expected role validation error, got %v", err)
	}

	if _, err := f.engine.ApplyStepUpdate(ctx, f.order.ID, "labeling", workflow.StepUpdate{
		Status:    orders.StepComplete,
		AddImages: []string{"label.jpg"},
	}, workflow.Actor{ID: "nok", Role: "design"}); err != nil {
		t.Fatalf("design role should update labeling: %v", err)
	}
}

func TestAutoAdvanceNeverOverridesIssueOrComplete(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	completeStep(t, f, "procurement", worker)
	// Report an issue on assembly, then redo procurement; assembly must stay issue.
	if _, err := f.engine.ApplyStepUpdate(ctx, f.order.ID, "assembly", workflow.StepUpdate{
		Status:    orders.StepIssue,
		Remark:    "bent frame",
		AddImages: []string{"frame.jpg"},
	}, worker); err != nil {
		t.Fatalf("issue report failed: %v", err)
	}

	if _, err := f.engine.ReopenStep(ctx, f.order.ID, "procurement", worker); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	completeStep(t, f, "procurement", worker)

	record, err := f.store.GetStepRecord(ctx, f.order.ID, "assembly")
	if err != nil {
		t.Fatalf("GetStepRecord: %v", err)
	}
	if record.Status != orders.StepIssue {
		t.Fatalf("auto-advance must not override issue, got %s", record.Status)
	}
}

func TestReopenLeavesDownstreamUntouched(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	completeStep(t, f, "procurement", worker)
	completeStep(t, f, "assembly", worker)

	record, err := f.engine.ReopenStep(ctx, f.order.ID, "procurement", worker)
	if err != nil {
		t.Fatalf("ReopenStep failed: %v", err)
	}
	if record.Status != orders.StepInProgress {
		t.Fatalf("expected in_progress after reopen, got %s", record.Status)
	}
	if record.AuditLog[len(record.AuditLog)-1].Action != workflow.ActionReopen {
		t.Fatalf("expected reopen audit entry: %+v", record.AuditLog)
	}

	downstream, err := f.store.GetStepRecord(ctx, f.order.ID, "ribbon")
	if err != nil {
		t.Fatalf("GetStepRecord: %v", err)
	}
	if downstream.Status != orders.StepInProgress {
		t.Fatalf("downstream step must keep its state, got %s", downstream.Status)
	}

	// Order status recomputes to the highest remaining complete step.
	order, err := f.store.GetOrder(ctx, f.order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.Status != "assembled" {
		t.Fatalf("order status should reflect assembly, got %q", order.Status)
	}
}

func TestReopenRejectsPendingAndInProgress(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	for _, key := range []string{"procurement", "qc"} {
		_, err := f.engine.ReopenStep(ctx, f.order.ID, key, worker)
		if !errors.Is(err, workflow.ErrValidation) {
			t.Fatalf("reopen of %s should fail validation, got %v", key, err)
		}
	}
}

func TestAuditLogIsAppendOnly(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	lengths := []int{}
	check := func() {
		record, err := f.store.GetStepRecord(ctx, f.order.ID, "procurement")
		if err != nil {
			t.Fatalf("GetStepRecord: %v", err)
		}
		lengths = append(lengths, len(record.AuditLog))
	}

	check()
	completeStep(t, f, "procurement", worker)
	check()
	if _, err := f.engine.ReopenStep(ctx, f.order.ID, "procurement", worker); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	check()
	completeStep(t, f, "procurement", worker)
	check()

	for i := 1; i < len(lengths); i++ {
		if lengths[i] < lengths[i-1] {
			t.Fatalf("audit log shrank: %v", lengths)
		}
		if lengths[i] != lengths[i-1]+1 {
			t.Fatalf("each transition appends exactly one entry: %v", lengths)
		}
	}
}

func TestIdenticalUpdateConverges(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	update := workflow.StepUpdate{
		Status:    orders.StepComplete,
		AddImages: []string{"img1"},
	}
	first, err := f.engine.ApplyStepUpdate(ctx, f.order.ID, "procurement", update, worker)
	if err != nil {
		t.Fatalf("first update failed: %v", err)
	}
	second, err := f.engine.ApplyStepUpdate(ctx, f.order.ID, "procurement", update, worker)
	if err != nil {
		t.Fatalf("retried update failed: %v", err)
	}
	if second.Status != first.Status || second.Remark != first.Remark {
		t.Fatalf("retry diverged: %+v vs %+v", first, second)
	}
}

func TestPersistenceErrorClassification(t *testing.T) {
	f := newEngineFixture(t)
	f.store.Close()

	_, err := f.engine.ApplyStepUpdate(context.Background(), f.order.ID, "procurement", workflow.StepUpdate{
		Status:    orders.StepComplete,
		AddImages: []string{"img1"},
	}, worker)
	if !errors.Is(err, workflow.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestFullPipelineShipsOrder(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	designer := workflow.Actor{ID: "nok", Role: "design"}
	for _, key := range []string{"procurement", "assembly", "ribbon"} {
		completeStep(t, f, key, worker)
	}
	completeStep(t, f, "labeling", designer)
	for _, key := range []string{"qc", "packing", "delivery_slip"} {
		completeStep(t, f, key, worker)
	}

	carrier := "Kerry Express"
	tracking := "KEX-889271"
	record, err := f.engine.ApplyStepUpdate(ctx, f.order.ID, "shipping", workflow.StepUpdate{
		Status:         orders.StepComplete,
		AddImages:      []string{"pod.jpg"},
		CarrierName:    &carrier,
		TrackingNumber: &tracking,
	}, worker)
	if err != nil {
		t.Fatalf("shipping completion failed: %v", err)
	}
	if record.CarrierName != carrier || record.TrackingNumber != tracking {
		t.Fatalf("shipping info not persisted: %+v", record)
	}

	view, err := f.engine.GetWorkflow(ctx, f.order.ID)
	if err != nil {
		t.Fatalf("GetWorkflow failed: %v", err)
	}
	if view.Order.Status != "shipped" {
		t.Fatalf("expected shipped, got %q", view.Order.Status)
	}
	if view.Progress.Percent != 100 {
		t.Fatalf("expected 100%%, got %d", view.Progress.Percent)
	}
	if len(f.notifier.shipped) != 1 {
		t.Fatalf("expected one shipped notification, got %d", len(f.notifier.shipped))
	}
}

func TestBoxCountOnlyOnPackingStep(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.ApplyStepUpdate(context.Background(), f.order.ID, "procurement", workflow.StepUpdate{
		Status:    orders.StepComplete,
		AddImages: []string{"img1"},
		BoxCount:  intPtr(4),
	}, worker)
	var vErr *workflow.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "boxCount" {
		t.Fatalf("expected boxCount rejection, got %v", err)
	}
}

func TestShippingInfoOnlyOnShippingStep(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.ApplyStepUpdate(context.Background(), f.order.ID, "procurement", workflow.StepUpdate{
		Status:      orders.StepComplete,
		AddImages:   []string{"img1"},
		CarrierName: strPtr("Kerry Express"),
	}, worker)
	var vErr *workflow.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "shipping" {
		t.Fatalf("expected shipping rejection, got %v", err)
	}
}

func TestImageRemoval(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	if _, err := f.engine.ApplyStepUpdate(ctx, f.order.ID, "procurement", workflow.StepUpdate{
		Status:    orders.StepInProgress,
		AddImages: []string{"a.jpg", "b.jpg"},
	}, worker); err != nil {
		t.Fatalf("add images failed: %v", err)
	}

	record, err := f.engine.ApplyStepUpdate(ctx, f.order.ID, "procurement", workflow.StepUpdate{
		Status:       orders.StepInProgress,
		RemoveImages: []string{"a.jpg"},
	}, worker)
	if err != nil {
		t.Fatalf("remove image failed: %v", err)
	}
	if len(record.Images) != 1 || record.Images[0] != "b.jpg" {
		t.Fatalf("unexpected images: %v", record.Images)
	}

	// Removing the last image blocks completion again.
	_, err = f.engine.ApplyStepUpdate(ctx, f.order.ID, "procurement", workflow.StepUpdate{
		Status:       orders.StepComplete,
		RemoveImages: []string{"b.jpg"},
	}, worker)
	var vErr *workflow.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "images" {
		t.Fatalf("expected images rejection, got %v", err)
	}
}

func TestUnknownOrderAndStep(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.ApplyStepUpdate(ctx, 9999, "procurement", workflow.StepUpdate{Status: orders.StepInProgress}, worker)
	if !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("expected not found for unknown order, got %v", err)
	}

	_, err = f.engine.ApplyStepUpdate(ctx, f.order.ID, "painting", workflow.StepUpdate{Status: orders.StepInProgress}, worker)
	if !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("expected not found for unknown step, got %v", err)
	}
}

func TestWithdrawStock(t *testing.T) {
	f := newEngineFixture(t,
		orders.StockLine{ComponentID: "frame-a", ComponentName: "Frame A", RequiredQty: 200},
		orders.StockLine{ComponentID: "screw-m3", ComponentName: "M3 Screw", RequiredQty: 500},
	)
	ctx := context.Background()

	// Over-quantity request is rejected and leaves inventory unchanged.
	_, err := f.engine.WithdrawStock(ctx, f.order.ID, []workflow.WithdrawalItem{
		{ComponentID: "frame-a", WithdrawnQty: 250},
	}, "somchai")
	if !errors.Is(err, workflow.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	lines, err := f.engine.StockLines(ctx, f.order.ID)
	if err != nil {
		t.Fatalf("StockLines: %v", err)
	}
	if lines[0].WithdrawnQty != 0 {
		t.Fatalf("rejected withdrawal must not change inventory: %+v", lines[0])
	}

	// Valid withdrawal records a receipt and reduces the remaining requirement.
	receipt, err := f.engine.WithdrawStock(ctx, f.order.ID, []workflow.WithdrawalItem{
		{ComponentID: "frame-a", WithdrawnQty: 150},
		{ComponentID: "screw-m3", WithdrawnQty: 0},
	}, "somchai")
	if err != nil {
		t.Fatalf("WithdrawStock failed: %v", err)
	}
	if receipt.ID == "" || len(receipt.Lines) != 1 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	lines, err = f.engine.StockLines(ctx, f.order.ID)
	if err != nil {
		t.Fatalf("StockLines: %v", err)
	}
	if lines[0].Remaining() != 50 {
		t.Fatalf("remaining requirement should be 50, got %d", lines[0].Remaining())
	}

	// Step status is untouched; only an audit entry lands on procurement.
	record, err := f.store.GetStepRecord(ctx, f.order.ID, "procurement")
	if err != nil {
		t.Fatalf("GetStepRecord: %v", err)
	}
	if record.Status != orders.StepInProgress {
		t.Fatalf("withdrawal must not change step status, got %s", record.Status)
	}
	last := record.AuditLog[len(record.AuditLog)-1]
	if last.Action != workflow.ActionWithdrawStock || last.Actor != "somchai" {
		t.Fatalf("unexpected audit entry: %+v", last)
	}

	history, err := f.engine.Withdrawals(ctx, f.order.ID)
	if err != nil {
		t.Fatalf("Withdrawals: %v", err)
	}
	if len(history) != 1 || history[0].ID != receipt.ID {
		t.Fatalf("unexpected withdrawal history: %+v", history)
	}
}

func TestWithdrawStockRequiresRequester(t *testing.T) {
	f := newEngineFixture(t, orders.StockLine{ComponentID: "frame-a", RequiredQty: 10})

	_, err := f.engine.WithdrawStock(context.Background(), f.order.ID, []workflow.WithdrawalItem{
		{ComponentID: "frame-a", WithdrawnQty: 1},
	}, "  ")
	var vErr *workflow.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "requester" {
		t.Fatalf("expected requester rejection, got %v", err)
	}
}

func TestConcurrentUpdatesSerializePerOrder(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = f.engine.ApplyStepUpdate(ctx, f.order.ID, "procurement", workflow.StepUpdate{
				Status:    orders.StepInProgress,
				AddImages: []string{fmt.Sprintf("img-%d", n)},
			}, worker)
		}(i)
	}
	wg.Wait()

	record, err := f.store.GetStepRecord(ctx, f.order.ID, "procurement")
	if err != nil {
		t.Fatalf("GetStepRecord: %v", err)
	}
	if len(record.Images) != 8 {
		t.Fatalf("expected all 8 images appended, got %d", len(record.Images))
	}
	if len(record.AuditLog) != 8 {
		t.Fatalf("expected 8 audit entries, got %d", len(record.AuditLog))
	}
}
