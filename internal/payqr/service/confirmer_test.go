package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tabletap/payqr/internal/payqr/domain"
	"github.com/tabletap/payqr/internal/payqr/notify"
	"github.com/tabletap/payqr/internal/payqr/store"
)

func newTestConfirmer(st store.Store, notifier Notifier) *ConfirmerService {
	return &ConfirmerService{
		Store:    st,
		Audit:    &AuditRecorder{Store: st},
		Notifier: notifier,
	}
}

func TestConfirmPayment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	signer := newTestSigner(t)
	order := seedOrder(t, st, 4200)

	issued, err := newTestIssuer(st, signer, nil).Issue(ctx, order.ID)
	require.NoError(t, err)

	hub := notify.NewHub()
	events, cancel := hub.Subscribe()
	defer cancel()

	svc := newTestConfirmer(st, hub)

	confirmed, err := svc.Confirm(ctx, ConfirmRequest{
		OrderID:       order.ID,
		TokenID:       issued.TokenID,
		UserID:        "cashier-1",
		DeviceID:      "terminal-1",
		PaymentMethod: "cash",
	})
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusPaid, confirmed.PaymentStatus)
	require.Equal(t, domain.PaymentMethodCash, confirmed.PaymentMethod)
	require.Equal(t, domain.OrderStatusConfirmed, confirmed.Status)
	require.NotEmpty(t, confirmed.TransactionRef)
	require.NotNil(t, confirmed.PaidAt)
	require.NotNil(t, confirmed.ConfirmedAt)

	cred, err := st.Credentials().GetCredentialByTokenID(ctx, issued.TokenID)
	require.NoError(t, err)
	require.True(t, cred.Used)
	require.Equal(t, "cashier-1", cred.UsedByUserID)
	require.Equal(t, "terminal-1", cred.UsedByDeviceID)
	require.NotNil(t, cred.UsedAt)

	select {
	case ev := <-events:
		require.Equal(t, notify.EventOrderUpdated, ev.Type)
		require.Equal(t, order.ID, ev.Order.ID)
		require.Equal(t, domain.PaymentStatusPaid, ev.Order.PaymentStatus)
	case <-time.After(time.Second):
		t.Fatal("no order update broadcast")
	}

	entries, err := st.Audit().ListAuditByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, domain.AuditActionConfirm, entries[0].Action)
	require.Equal(t, domain.AuditStatusSuccess, entries[0].Status)
	require.Equal(t, domain.PaymentMethodCash, entries[0].PaymentMethod)
	require.Equal(t, order.TotalAmount, entries[0].PaymentAmount)
	require.Equal(t, confirmed.TransactionRef, entries[0].TransactionID)
}

func TestConfirmTwiceRejectsSecond(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	signer := newTestSigner(t)
	order := seedOrder(t, st, 1000)

	issued, err := newTestIssuer(st, signer, nil).Issue(ctx, order.ID)
	require.NoError(t, err)

	svc := newTestConfirmer(st, nil)
	req := ConfirmRequest{
		OrderID:        order.ID,
		TokenID:        issued.TokenID,
		UserID:         "cashier-1",
		DeviceID:       "terminal-1",
		PaymentMethod:  domain.PaymentMethodCard,
		TransactionRef: "gw-123",
	}

	_, err = svc.Confirm(ctx, req)
	require.NoError(t, err)

	// A straight duplicate of the same confirm reports ALREADY_USED so the
	// cashier knows this exact code was already redeemed.
	_, err = svc.Confirm(ctx, req)
	require.ErrorIs(t, err, ErrAlreadyUsed)

	entries, err := st.Audit().ListAuditByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, domain.AuditStatusDuplicate, entries[0].Status)
}

func TestConfirmSecondCredentialAfterPayment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	signer := newTestSigner(t)
	order := seedOrder(t, st, 1000)

	issuer := newTestIssuer(st, signer, nil)
	first, err := issuer.Issue(ctx, order.ID)
	require.NoError(t, err)
	second, err := issuer.Issue(ctx, order.ID)
	require.NoError(t, err)

	svc := newTestConfirmer(st, nil)

	_, err = svc.Confirm(ctx, ConfirmRequest{
		OrderID:       order.ID,
		TokenID:       second.TokenID,
		UserID:        "cashier-1",
		DeviceID:      "terminal-1",
		PaymentMethod: domain.PaymentMethodMobile,
	})
	require.NoError(t, err)

	// A lingering credential for the now-paid order cannot pay it again.
	_, err = svc.Confirm(ctx, ConfirmRequest{
		OrderID:       order.ID,
		TokenID:       first.TokenID,
		UserID:        "cashier-2",
		DeviceID:      "terminal-2",
		PaymentMethod: domain.PaymentMethodCash,
	})
	require.ErrorIs(t, err, ErrOrderAlreadyPaid)
}

func TestConfirmValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	signer := newTestSigner(t)
	order := seedOrder(t, st, 1000)

	issued, err := newTestIssuer(st, signer, nil).Issue(ctx, order.ID)
	require.NoError(t, err)

	svc := newTestConfirmer(st, nil)

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Confirm(ctx, ConfirmRequest{OrderID: order.ID, TokenID: issued.TokenID})
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("unknown payment method", func(t *testing.T) {
		_, err := svc.Confirm(ctx, ConfirmRequest{
			OrderID: order.ID, TokenID: issued.TokenID,
			UserID: "u", DeviceID: "d", PaymentMethod: "CHEQUE",
		})
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := svc.Confirm(ctx, ConfirmRequest{
			OrderID: "nope", TokenID: issued.TokenID,
			UserID: "u", DeviceID: "d", PaymentMethod: domain.PaymentMethodCash,
		})
		require.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("credential for different order", func(t *testing.T) {
		other := seedOrder(t, st, 500)
		_, err := svc.Confirm(ctx, ConfirmRequest{
			OrderID: other.ID, TokenID: issued.TokenID,
			UserID: "u", DeviceID: "d", PaymentMethod: domain.PaymentMethodCash,
		})
		require.ErrorIs(t, err, ErrCredentialNotFound)
	})
}

func TestConfirmExpiredCredential(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	signer := newTestSigner(t)
	order := seedOrder(t, st, 1000)

	issued, err := newTestIssuer(st, signer, nil).Issue(ctx, order.ID)
	require.NoError(t, err)

	svc := newTestConfirmer(st, nil)
	svc.Now = func() time.Time { return time.Now().UTC().Add(time.Hour) }

	_, err = svc.Confirm(ctx, ConfirmRequest{
		OrderID: order.ID, TokenID: issued.TokenID,
		UserID: "u", DeviceID: "d", PaymentMethod: domain.PaymentMethodCash,
	})
	require.ErrorIs(t, err, ErrExpired)

	// The order stays unpaid after a rejected confirm.
	got, err := st.Orders().GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.False(t, got.Paid())
}

func TestConcurrentConfirmsExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	signer := newTestSigner(t)
	order := seedOrder(t, st, 2600)

	issued, err := newTestIssuer(st, signer, nil).Issue(ctx, order.ID)
	require.NoError(t, err)

	svc := newTestConfirmer(st, nil)

	const workers = 10
	results := make([]error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Confirm(ctx, ConfirmRequest{
				OrderID:       order.ID,
				TokenID:       issued.TokenID,
				UserID:        "cashier-1",
				DeviceID:      "terminal-1",
				PaymentMethod: domain.PaymentMethodCash,
			})
		}(i)
	}
	wg.Wait()

	var wins, rejects int
	for _, res := range results {
		switch {
		case res == nil:
			wins++
		case errors.Is(res, ErrAlreadyUsed), errors.Is(res, ErrOrderAlreadyPaid):
			rejects++
		default:
			t.Fatalf("unexpected confirm error: %v", res)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, workers-1, rejects)

	got, err := st.Orders().GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, got.Paid())

	entries, err := st.Audit().ListAuditByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, workers)
}
