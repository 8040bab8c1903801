package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tabletap/payqr/internal/payqr/domain"
)

type auditRepo struct {
	db dbtx
}

const auditColumns = `id, order_id, token_id, short_code, action, status,
	device_id, user_id, error_message, payment_method, payment_amount,
	transaction_id, scan_timestamp, processing_time_ms`

func (r *auditRepo) AppendAuditEntry(ctx context.Context, e domain.AuditEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_entries (
			order_id, token_id, short_code, action, status,
			device_id, user_id, error_message, payment_method,
			payment_amount, transaction_id, scan_timestamp, processing_time_ms
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mapStringNull(e.OrderID),
		mapStringNull(e.TokenID),
		mapStringNull(e.ShortCode),
		string(e.Action),
		string(e.Status),
		mapStringNull(e.DeviceID),
		mapStringNull(e.UserID),
		mapStringNull(e.ErrorMessage),
		mapStringNull(e.PaymentMethod),
		e.PaymentAmount,
		mapStringNull(e.TransactionID),
		e.ScanTimestamp,
		e.ProcessingTimeMS,
	)
	return err
}

func (r *auditRepo) ListAuditByOrder(ctx context.Context, orderID string) ([]domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+auditColumns+`
		FROM audit_entries
		WHERE order_id = ?
		ORDER BY id DESC`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAuditEntries(rows)
}

func (r *auditRepo) ListAuditByToken(ctx context.Context, tokenID string) ([]domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+auditColumns+`
		FROM audit_entries
		WHERE token_id = ?
		ORDER BY id DESC`,
		tokenID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAuditEntries(rows)
}

func (r *auditRepo) DeleteAuditBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM audit_entries
		WHERE scan_timestamp < ?`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func collectAuditEntries(rows *sql.Rows) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry

	for rows.Next() {
		var (
			e             domain.AuditEntry
			orderID       sql.NullString
			tokenID       sql.NullString
			shortCode     sql.NullString
			deviceID      sql.NullString
			userID        sql.NullString
			errorMessage  sql.NullString
			paymentMethod sql.NullString
			transactionID sql.NullString
			action        string
			status        string
		)

		err := rows.Scan(
			&e.ID,
			&orderID,
			&tokenID,
			&shortCode,
			&action,
			&status,
			&deviceID,
			&userID,
			&errorMessage,
			&paymentMethod,
			&e.PaymentAmount,
			&transactionID,
			&e.ScanTimestamp,
			&e.ProcessingTimeMS,
		)
		if err != nil {
			return nil, err
		}

		e.OrderID = mapNullString(orderID)
		e.TokenID = mapNullString(tokenID)
		e.ShortCode = mapNullString(shortCode)
		e.Action = domain.AuditAction(action)
		e.Status = domain.AuditStatus(status)
		e.DeviceID = mapNullString(deviceID)
		e.UserID = mapNullString(userID)
		e.ErrorMessage = mapNullString(errorMessage)
		e.PaymentMethod = mapNullString(paymentMethod)
		e.TransactionID = mapNullString(transactionID)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
