package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrOverWithdrawal is returned when a withdrawal would exceed a line's
// remaining requirement. The engine validates before committing, so hitting
// this at the store layer means a concurrent writer won the race.
var ErrOverWithdrawal = errors.New("withdrawal exceeds remaining requirement")

// StockLinesForOrder returns the required components for an order ordered by
// component id.
func (s *Store) StockLinesForOrder(ctx context.Context, orderID int64) ([]StockLine, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT order_id, component_id, component_name, required_qty, withdrawn_qty
         FROM stock_lines WHERE order_id = ? ORDER BY component_id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stock lines: %w", err)
	}
	defer rows.Close()

	var lines []StockLine
	for rows.Next() {
		var (
			line StockLine
			name sql.NullString
		)
		if err := rows.Scan(&line.OrderID, &line.ComponentID, &name, &line.RequiredQty, &line.WithdrawnQty); err != nil {
			return nil, err
		}
		line.ComponentName = name.String
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ApplyWithdrawal records a withdrawal receipt and bumps the withdrawn
// quantity on each affected line, all in one transaction. The per-line guard
// keeps withdrawn_qty at or below required_qty even under concurrent writers.
func (s *Store) ApplyWithdrawal(ctx context.Context, w *Withdrawal, audit AuditEntry) error {
	if w == nil {
		return errors.New("withdrawal is nil")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO withdrawals (id, order_id, requester, created_at) VALUES (?, ?, ?, ?)`,
			w.ID, w.OrderID, w.Requester, formatTime(w.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert withdrawal: %w", err)
		}
		for _, line := range w.Lines {
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO withdrawal_lines (withdrawal_id, component_id, quantity) VALUES (?, ?, ?)`,
				w.ID, line.ComponentID, line.Quantity,
			); err != nil {
				return fmt.Errorf("insert withdrawal line %s: %w", line.ComponentID, err)
			}
			res, err := tx.ExecContext(
				ctx,
				`UPDATE stock_lines
                 SET withdrawn_qty = withdrawn_qty + ?
                 WHERE order_id = ? AND component_id = ? AND withdrawn_qty + ? <= required_qty`,
				line.Quantity, w.OrderID, line.ComponentID, line.Quantity,
			)
			if err != nil {
				return fmt.Errorf("update stock line %s: %w", line.ComponentID, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			if affected == 0 {
				return fmt.Errorf("component %s: %w", line.ComponentID, ErrOverWithdrawal)
			}
		}
		return insertAuditEntry(ctx, tx, audit)
	})
}

// WithdrawalsForOrder returns the withdrawal history for an order, newest last.
func (s *Store) WithdrawalsForOrder(ctx context.Context, orderID int64) ([]Withdrawal, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, order_id, requester, created_at FROM withdrawals WHERE order_id = ? ORDER BY created_at`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []Withdrawal
	for rows.Next() {
		var (
			w          Withdrawal
			createdRaw string
		)
		if err := rows.Scan(&w.ID, &w.OrderID, &w.Requester, &createdRaw); err != nil {
			return nil, err
		}
		if created, err := parseTimeString(createdRaw); err == nil {
			w.CreatedAt = created
		}
		withdrawals = append(withdrawals, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range withdrawals {
		lines, err := s.withdrawalLines(ctx, withdrawals[i].ID)
		if err != nil {
			return nil, err
		}
		withdrawals[i].Lines = lines
	}
	return withdrawals, nil
}

func (s *Store) withdrawalLines(ctx context.Context, withdrawalID string) ([]WithdrawalLine, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT component_id, quantity FROM withdrawal_lines WHERE withdrawal_id = ? ORDER BY component_id`,
		withdrawalID,
	)
	if err != nil {
		return nil, fmt.Errorf("list withdrawal lines: %w", err)
	}
	defer rows.Close()

	var lines []WithdrawalLine
	for rows.Next() {
		var line WithdrawalLine
		if err := rows.Scan(&line.ComponentID, &line.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
