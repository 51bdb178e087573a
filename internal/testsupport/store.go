package testsupport

import (
	"context"
	"testing"
	"time"

	"fabline/internal/config"
	"fabline/internal/orders"
	"fabline/internal/workflow"
)

// MustOpenStore opens an orders.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *orders.Store {
	t.Helper()

	store, err := orders.Open(cfg)
	if err != nil {
		t.Fatalf("orders.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewOrder creates an order with the default pipeline and the given stock
// lines for tests.
func NewOrder(t testing.TB, store *orders.Store, reference string, stock ...orders.StockLine) *orders.Order {
	t.Helper()

	order, err := store.CreateOrder(context.Background(), orders.NewOrder{
		Reference:    reference,
		Customer:     "Test Customer",
		DeliveryDate: time.Now().UTC().Add(14 * 24 * time.Hour),
		Stock:        stock,
	}, workflow.Default().Keys())
	if err != nil {
		t.Fatalf("store.CreateOrder: %v", err)
	}
	return order
}
