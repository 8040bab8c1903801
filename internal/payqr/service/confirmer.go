package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tabletap/payqr/internal/payqr/domain"
	"github.com/tabletap/payqr/internal/payqr/store"
	"github.com/tabletap/payqr/pkg/slogx"
)

// Notifier broadcasts order updates to subscribers (kitchen and dashboard
// displays). Implementations are best-effort: the confirmer logs and
// swallows any failure.
type Notifier interface {
	BroadcastOrderUpdated(ctx context.Context, order domain.Order) error
}

// ConfirmRequest carries everything the cashier terminal supplies when
// recording an out-of-band payment against a previously validated
// credential.
type ConfirmRequest struct {
	OrderID        string
	TokenID        string
	UserID         string
	DeviceID       string
	PaymentMethod  string
	TransactionRef string
}

// ConfirmerService records a verified payment: it consumes the credential
// exactly once, updates the order's payment state in the same transaction,
// notifies subscribers best-effort, and always writes one audit entry.
type ConfirmerService struct {
	Store    store.Store
	Audit    *AuditRecorder
	Notifier Notifier

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *ConfirmerService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Confirm marks the credential used and the order paid as one atomic
// transition. A validation result that went stale in the scan-to-confirm
// gap is caught here: the order's paid state and the credential's used
// flag are both re-checked under the transaction.
func (s *ConfirmerService) Confirm(ctx context.Context, req ConfirmRequest) (domain.Order, error) {
	start := s.now()

	order, entry, err := s.confirm(ctx, req, start)

	entry.Action = domain.AuditActionConfirm
	entry.Status = auditStatus(err)
	entry.OrderID = req.OrderID
	entry.TokenID = req.TokenID
	entry.UserID = req.UserID
	entry.DeviceID = req.DeviceID
	entry.ScanTimestamp = start
	entry.ProcessingTimeMS = s.now().Sub(start).Milliseconds()
	if err != nil {
		entry.ErrorMessage = err.Error()
	}
	s.Audit.Record(ctx, entry)

	if err != nil {
		return domain.Order{}, err
	}

	// Best-effort broadcast after the transaction commits. A notification
	// failure must not unwind a recorded payment.
	s.notifyOrderUpdated(ctx, order)

	return order, nil
}

func (s *ConfirmerService) confirm(ctx context.Context, req ConfirmRequest, now time.Time) (domain.Order, domain.AuditEntry, error) {
	var entry domain.AuditEntry
	log := slogx.FromContext(ctx)

	// 1. Validate input.
	if req.OrderID == "" || req.TokenID == "" || req.UserID == "" || req.DeviceID == "" {
		return domain.Order{}, entry, ErrInvalidRequest
	}
	method := strings.ToUpper(strings.TrimSpace(req.PaymentMethod))
	switch method {
	case domain.PaymentMethodCash, domain.PaymentMethodCard, domain.PaymentMethodMobile:
	default:
		return domain.Order{}, entry, ErrInvalidRequest
	}

	// Cash payments carry no gateway reference; assign one so every
	// confirmation is still individually traceable in the audit trail.
	transactionRef := strings.TrimSpace(req.TransactionRef)
	if transactionRef == "" {
		transactionRef = uuid.NewString()
	}
	entry.PaymentMethod = method
	entry.TransactionID = transactionRef

	var confirmed domain.Order

	// 2. Consume the credential and update the order inside one
	// transaction, so the two can never disagree.
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		order, err := tx.Orders().GetOrderByID(ctx, req.OrderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		entry.PaymentAmount = order.TotalAmount

		cred, err := tx.Credentials().GetCredentialByTokenID(ctx, req.TokenID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrCredentialNotFound
			}
			return err
		}
		if cred.OrderID != order.ID {
			return ErrCredentialNotFound
		}

		// A re-confirm of the same credential reports ALREADY_USED; a
		// different credential against an already-paid order reports
		// ALREADY_PAID. Both preconditions are re-checked here because a
		// validation result may be stale by confirmation time.
		if cred.Used {
			return ErrAlreadyUsed
		}
		if order.Paid() {
			return ErrOrderAlreadyPaid
		}
		if cred.SupersededAt != nil {
			return ErrCredentialNotFound
		}
		if !now.Before(cred.ExpiresAt) {
			return ErrExpired
		}

		// The conditional update is the single-use gate: zero affected
		// rows means another confirm won the race.
		if err := tx.Credentials().MarkCredentialUsed(ctx, cred.TokenID, req.UserID, req.DeviceID, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrAlreadyUsed
			}
			return err
		}

		if err := tx.Orders().UpdateOrderPayment(ctx, order.ID, domain.PaymentStatusPaid, method, transactionRef, now); err != nil {
			return err
		}
		if err := tx.Orders().AdvanceOrderStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusConfirmed, now); err != nil {
			return err
		}

		confirmed, err = tx.Orders().GetOrderByID(ctx, order.ID)
		return err
	})
	if err != nil {
		if isClientError(err) {
			log.Warn("payment confirmation rejected",
				slog.String("order_id", req.OrderID),
				slog.String("token_id", req.TokenID),
				slog.Any("reason", err),
			)
		} else {
			log.Error("payment confirmation failed",
				slog.String("order_id", req.OrderID),
				slog.String("token_id", req.TokenID),
				slog.Any("error", err),
			)
		}
		return domain.Order{}, entry, err
	}

	log.Info("payment confirmed",
		slog.String("order_id", confirmed.ID),
		slog.String("token_id", req.TokenID),
		slog.String("method", method),
		slog.Int64("amount", confirmed.TotalAmount),
		slog.String("user_id", req.UserID),
		slog.String("device_id", req.DeviceID),
	)

	return confirmed, entry, nil
}

// notifyOrderUpdated is fire-and-forget with logged failure, per the
// side-effect policy: only the durable stores decide outcomes.
func (s *ConfirmerService) notifyOrderUpdated(ctx context.Context, order domain.Order) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.BroadcastOrderUpdated(ctx, order); err != nil {
		slogx.FromContext(ctx).Warn("order update broadcast failed",
			slog.String("order_id", order.ID),
			slog.Any("error", err),
		)
	}
}

// isClientError reports whether err is an expected precondition failure
// rather than an internal fault.
func isClientError(err error) bool {
	return errors.Is(err, ErrAlreadyUsed) ||
		errors.Is(err, ErrOrderAlreadyPaid) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrCredentialNotFound) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrInvalidRequest)
}
