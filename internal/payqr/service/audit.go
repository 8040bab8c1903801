package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tabletap/payqr/internal/payqr/domain"
	"github.com/tabletap/payqr/internal/payqr/store"
	"github.com/tabletap/payqr/pkg/slogx"
)

// AuditRecorder appends audit entries on a best-effort basis. A failed
// audit write is logged and swallowed: the audit trail must never decide
// the outcome of the operation it records.
type AuditRecorder struct {
	Store store.Store
}

// Record appends one audit entry. It never returns an error.
func (a *AuditRecorder) Record(ctx context.Context, entry domain.AuditEntry) {
	if err := a.Store.Audit().AppendAuditEntry(ctx, entry); err != nil {
		slogx.FromContext(ctx).Warn("audit entry write failed",
			slog.String("order_id", entry.OrderID),
			slog.String("token_id", entry.TokenID),
			slog.String("action", string(entry.Action)),
			slog.String("status", string(entry.Status)),
			slog.Any("error", err),
		)
	}
}

// ListByOrder returns the audit trail for an order, newest first.
func (a *AuditRecorder) ListByOrder(ctx context.Context, orderID string) ([]domain.AuditEntry, error) {
	return a.Store.Audit().ListAuditByOrder(ctx, orderID)
}

// ListByToken returns the audit trail for a token id, newest first.
func (a *AuditRecorder) ListByToken(ctx context.Context, tokenID string) ([]domain.AuditEntry, error) {
	return a.Store.Audit().ListAuditByToken(ctx, tokenID)
}

// auditStatus classifies an operation outcome into the audit taxonomy.
func auditStatus(err error) domain.AuditStatus {
	switch {
	case err == nil:
		return domain.AuditStatusSuccess
	case errors.Is(err, ErrAlreadyUsed), errors.Is(err, ErrOrderAlreadyPaid):
		return domain.AuditStatusDuplicate
	case errors.Is(err, ErrExpired):
		return domain.AuditStatusExpired
	case errors.Is(err, ErrReplay):
		return domain.AuditStatusReplay
	case errors.Is(err, ErrSignatureInvalid),
		errors.Is(err, ErrCredentialNotFound),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrInvalidRequest):
		return domain.AuditStatusInvalid
	default:
		return domain.AuditStatusFailed
	}
}
