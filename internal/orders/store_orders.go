package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NewOrder describes an order entering the production workflow.
type NewOrder struct {
	Reference    string
	Customer     string
	DeliveryDate time.Time
	Stock        []StockLine
}

// CreateOrder inserts an order together with one step record per pipeline
// step. The first step starts in_progress, every other step pending.
func (s *Store) CreateOrder(ctx context.Context, in NewOrder, stepKeys []string) (*Order, error) {
	reference := strings.TrimSpace(in.Reference)
	if reference == "" {
		return nil, errors.New("order reference is required")
	}
	if len(stepKeys) == 0 {
		return nil, errors.New("at least one workflow step is required")
	}

	now := time.Now().UTC()
	timestamp := formatTime(now)

	var orderID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO orders (reference, customer, delivery_date, status, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?)`,
			reference,
			nullableString(strings.TrimSpace(in.Customer)),
			nullableDate(in.DeliveryDate),
			StatusLabelNotStarted,
			timestamp,
			timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		orderID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		for i, key := range stepKeys {
			status := StepPending
			if i == 0 {
				status = StepInProgress
			}
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO step_records (order_id, step_key, status, updated_at) VALUES (?, ?, ?, ?)`,
				orderID, key, status, timestamp,
			); err != nil {
				return fmt.Errorf("insert step record %s: %w", key, err)
			}
		}

		for _, line := range in.Stock {
			componentID := strings.TrimSpace(line.ComponentID)
			if componentID == "" {
				return errors.New("stock line component id is required")
			}
			if line.RequiredQty <= 0 {
				return fmt.Errorf("stock line %s: required quantity must be positive", componentID)
			}
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO stock_lines (order_id, component_id, component_name, required_qty, withdrawn_qty)
                 VALUES (?, ?, ?, ?, 0)`,
				orderID, componentID, nullableString(strings.TrimSpace(line.ComponentName)), line.RequiredQty,
			); err != nil {
				return fmt.Errorf("insert stock line %s: %w", componentID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}

// GetOrder fetches an order by identifier. Returns nil when absent.
func (s *Store) GetOrder(ctx context.Context, id int64) (*Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// GetOrderByReference fetches an order by its unique reference.
func (s *Store) GetOrderByReference(ctx context.Context, reference string) (*Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE reference = ?`, strings.TrimSpace(reference))
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order by reference: %w", err)
	}
	return order, nil
}

// ListOrders returns orders filtered by status label (or all orders when no
// label is provided), ordered by creation time.
func (s *Store) ListOrders(ctx context.Context, statuses ...string) ([]*Order, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + orderColumns + ` FROM orders`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var result []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, order)
	}
	return result, rows.Err()
}

// SetOrderStatus updates the mirrored completion label on an order.
func (s *Store) SetOrderStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`,
		status, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("set order status: %w", err)
	}
	return nil
}

// Stats returns a count of orders grouped by status label.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates order state for diagnostic output. WithIssues overlaps
// with InProgress; the other buckets are disjoint.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	health := HealthSummary{}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM orders`)
	if err := row.Scan(&health.Total); err != nil {
		return HealthSummary{}, fmt.Errorf("count orders: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM orders WHERE status = ?`, StatusLabelNotStarted)
	if err := row.Scan(&health.NotStarted); err != nil {
		return HealthSummary{}, fmt.Errorf("count not started: %w", err)
	}

	row = s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM orders o WHERE EXISTS
           (SELECT 1 FROM step_records r WHERE r.order_id = o.id AND r.status = ?)`,
		StepIssue,
	)
	if err := row.Scan(&health.WithIssues); err != nil {
		return HealthSummary{}, fmt.Errorf("count orders with issues: %w", err)
	}

	row = s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM orders o WHERE NOT EXISTS
           (SELECT 1 FROM step_records r WHERE r.order_id = o.id AND r.status != ?)`,
		StepComplete,
	)
	if err := row.Scan(&health.Shipped); err != nil {
		return HealthSummary{}, fmt.Errorf("count shipped orders: %w", err)
	}

	health.InProgress = health.Total - health.NotStarted - health.Shipped
	if health.InProgress < 0 {
		health.InProgress = 0
	}
	return health, nil
}

const orderColumns = "id, reference, customer, delivery_date, status, created_at, updated_at"

func scanOrder(scanner interface{ Scan(dest ...any) error }) (*Order, error) {
	var (
		id         int64
		reference  string
		customer   sql.NullString
		delivery   sql.NullString
		status     string
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&id, &reference, &customer, &delivery, &status, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	order := &Order{
		ID:        id,
		Reference: reference,
		Customer:  customer.String,
		Status:    status,
	}
	if delivery.Valid {
		if parsed, err := parseTimeString(delivery.String); err == nil {
			order.DeliveryDate = parsed
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		order.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		order.UpdatedAt = updated
	}
	return order, nil
}

func nullableDate(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return formatTime(value)
}
