package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tabletap/payqr/internal/payqr/domain"
)

func TestCreateOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	svc := &OrderService{Store: st}

	order, err := svc.Create(ctx, CreateOrderRequest{
		OrderNumber: " B-007 ",
		TotalAmount: 1850,
		Currency:    "usd",
	})
	require.NoError(t, err)
	require.NotEmpty(t, order.ID)
	require.Equal(t, "B-007", order.OrderNumber)
	require.Equal(t, "USD", order.Currency)
	require.Equal(t, domain.OrderStatusPending, order.Status)
	require.Equal(t, domain.PaymentStatusUnpaid, order.PaymentStatus)

	got, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, got.ID)
	require.False(t, got.Paid())
}

func TestCreateOrderValidation(t *testing.T) {
	t.Parallel()
	svc := &OrderService{Store: newTestStore(t)}

	cases := []CreateOrderRequest{
		{OrderNumber: "", TotalAmount: 100, Currency: "USD"},
		{OrderNumber: "A-1", TotalAmount: 0, Currency: "USD"},
		{OrderNumber: "A-1", TotalAmount: -5, Currency: "USD"},
		{OrderNumber: "A-1", TotalAmount: 100, Currency: "US"},
	}
	for _, req := range cases {
		_, err := svc.Create(context.Background(), req)
		require.ErrorIs(t, err, ErrInvalidRequest)
	}
}

func TestGetUnknownOrder(t *testing.T) {
	t.Parallel()
	svc := &OrderService{Store: newTestStore(t)}

	_, err := svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrOrderNotFound)
}
