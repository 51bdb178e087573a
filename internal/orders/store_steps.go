package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StepTransition describes one committed engine transition: the rewritten
// primary record, audit entries to append, an optional auto-advanced record,
// and an optional new order status label. Everything is applied in one
// database transaction.
type StepTransition struct {
	Record      *StepRecord
	Audit       []AuditEntry
	Advance     *StepRecord
	OrderStatus string
}

// GetStepRecord fetches one step record with its audit log attached.
// Returns nil when the record does not exist.
func (s *Store) GetStepRecord(ctx context.Context, orderID int64, stepKey string) (*StepRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+stepColumns+` FROM step_records WHERE order_id = ? AND step_key = ?`,
		orderID, stepKey,
	)
	record, err := scanStepRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get step record: %w", err)
	}
	if err := s.attachAuditLog(ctx, orderID, []*StepRecord{record}); err != nil {
		return nil, err
	}
	return record, nil
}

// StepRecordsForOrder returns every step record for an order keyed by step,
// audit logs attached.
func (s *Store) StepRecordsForOrder(ctx context.Context, orderID int64) (map[string]*StepRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+stepColumns+` FROM step_records WHERE order_id = ?`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list step records: %w", err)
	}
	defer rows.Close()

	var records []*StepRecord
	for rows.Next() {
		record, err := scanStepRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachAuditLog(ctx, orderID, records); err != nil {
		return nil, err
	}

	result := make(map[string]*StepRecord, len(records))
	for _, record := range records {
		result[record.StepKey] = record
	}
	return result, nil
}

// CommitStepTransition applies a validated transition atomically. A rejected
// transition never reaches this method; any error here leaves the database
// unchanged.
func (s *Store) CommitStepTransition(ctx context.Context, t StepTransition) error {
	if t.Record == nil {
		return errors.New("transition record is nil")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateStepRecord(ctx, tx, t.Record); err != nil {
			return err
		}
		if t.Advance != nil {
			if err := updateStepRecord(ctx, tx, t.Advance); err != nil {
				return err
			}
		}
		for _, entry := range t.Audit {
			if err := insertAuditEntry(ctx, tx, entry); err != nil {
				return err
			}
		}
		if t.OrderStatus != "" {
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`,
				t.OrderStatus, formatTime(time.Now()), t.Record.OrderID,
			); err != nil {
				return fmt.Errorf("update order status: %w", err)
			}
		}
		return nil
	})
}

// AuditLogForStep returns the ordered audit trail for one step.
func (s *Store) AuditLogForStep(ctx context.Context, orderID int64, stepKey string) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, order_id, step_key, action, actor, detail, created_at
         FROM audit_entries WHERE order_id = ? AND step_key = ? ORDER BY id`,
		orderID, stepKey,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()
	return collectAuditEntries(rows)
}

func (s *Store) attachAuditLog(ctx context.Context, orderID int64, records []*StepRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, order_id, step_key, action, actor, detail, created_at
         FROM audit_entries WHERE order_id = ? ORDER BY id`,
		orderID,
	)
	if err != nil {
		return fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries, err := collectAuditEntries(rows)
	if err != nil {
		return err
	}
	byStep := make(map[string][]AuditEntry)
	for _, entry := range entries {
		byStep[entry.StepKey] = append(byStep[entry.StepKey], entry)
	}
	for _, record := range records {
		record.AuditLog = byStep[record.StepKey]
	}
	return nil
}

func updateStepRecord(ctx context.Context, tx *sql.Tx, record *StepRecord) error {
	imagesJSON, err := marshalImages(record.Images)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(
		ctx,
		`UPDATE step_records
         SET status = ?, remark = ?, images_json = ?, box_count = ?,
             carrier_name = ?, tracking_number = ?, updated_at = ?, updated_by = ?
         WHERE order_id = ? AND step_key = ?`,
		record.Status,
		nullableString(record.Remark),
		imagesJSON,
		record.BoxCount,
		nullableString(record.CarrierName),
		nullableString(record.TrackingNumber),
		formatTime(record.UpdatedAt),
		nullableString(record.UpdatedBy),
		record.OrderID,
		record.StepKey,
	)
	if err != nil {
		return fmt.Errorf("update step record %s: %w", record.StepKey, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("step record %s for order %d does not exist", record.StepKey, record.OrderID)
	}
	return nil
}

func insertAuditEntry(ctx context.Context, tx *sql.Tx, entry AuditEntry) error {
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO audit_entries (order_id, step_key, action, actor, detail, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		entry.OrderID,
		entry.StepKey,
		entry.Action,
		nullableString(entry.Actor),
		nullableString(entry.Detail),
		formatTime(entry.Timestamp),
	); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func collectAuditEntries(rows *sql.Rows) ([]AuditEntry, error) {
	var entries []AuditEntry
	for rows.Next() {
		var (
			entry      AuditEntry
			actor      sql.NullString
			detail     sql.NullString
			createdRaw string
		)
		if err := rows.Scan(&entry.ID, &entry.OrderID, &entry.StepKey, &entry.Action, &actor, &detail, &createdRaw); err != nil {
			return nil, err
		}
		entry.Actor = actor.String
		entry.Detail = detail.String
		if created, err := parseTimeString(createdRaw); err == nil {
			entry.Timestamp = created
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

const stepColumns = "order_id, step_key, status, remark, images_json, box_count, carrier_name, tracking_number, updated_at, updated_by"

func scanStepRecord(scanner interface{ Scan(dest ...any) error }) (*StepRecord, error) {
	var (
		orderID    int64
		stepKey    string
		statusStr  string
		remark     sql.NullString
		imagesJSON sql.NullString
		boxCount   sql.NullInt64
		carrier    sql.NullString
		tracking   sql.NullString
		updatedRaw sql.NullString
		updatedBy  sql.NullString
	)
	if err := scanner.Scan(&orderID, &stepKey, &statusStr, &remark, &imagesJSON, &boxCount, &carrier, &tracking, &updatedRaw, &updatedBy); err != nil {
		return nil, err
	}

	record := &StepRecord{
		OrderID:        orderID,
		StepKey:        stepKey,
		Status:         StepStatus(statusStr),
		Remark:         remark.String,
		CarrierName:    carrier.String,
		TrackingNumber: tracking.String,
		UpdatedBy:      updatedBy.String,
	}
	if boxCount.Valid {
		record.BoxCount = int(boxCount.Int64)
	}
	if imagesJSON.Valid && imagesJSON.String != "" {
		if err := json.Unmarshal([]byte(imagesJSON.String), &record.Images); err != nil {
			return nil, fmt.Errorf("decode images for step %s: %w", stepKey, err)
		}
	}
	if updatedRaw.Valid {
		if updated, err := parseTimeString(updatedRaw.String); err == nil {
			record.UpdatedAt = updated
		}
	}
	return record, nil
}

func marshalImages(images []string) (any, error) {
	if len(images) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("encode images: %w", err)
	}
	return string(data), nil
}
