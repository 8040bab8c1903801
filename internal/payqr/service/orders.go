package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tabletap/payqr/internal/payqr/domain"
	"github.com/tabletap/payqr/internal/payqr/store"
	"github.com/tabletap/payqr/pkg/idx"
	"github.com/tabletap/payqr/pkg/slogx"
)

// CreateOrderRequest is the order intake payload from the POS front of
// house. Amount is in minor currency units.
type CreateOrderRequest struct {
	OrderNumber string
	TotalAmount int64
	Currency    string
}

// OrderService registers orders so credentials can be issued against them
// and exposes order reads for the cashier surfaces.
type OrderService struct {
	Store store.Store

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Create registers a new pending, unpaid order.
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (domain.Order, error) {
	req.OrderNumber = strings.TrimSpace(req.OrderNumber)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))

	if req.OrderNumber == "" || req.TotalAmount <= 0 || len(req.Currency) != 3 {
		return domain.Order{}, ErrInvalidRequest
	}

	now := s.now()
	order := domain.Order{
		ID:            idx.New().String(),
		OrderNumber:   req.OrderNumber,
		TotalAmount:   req.TotalAmount,
		Currency:      req.Currency,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.Store.Orders().CreateOrder(ctx, order); err != nil {
		slogx.FromContext(ctx).Error("failed to create order",
			slog.String("order_number", req.OrderNumber),
			slog.Any("error", err),
		)
		return domain.Order{}, err
	}

	slogx.FromContext(ctx).Info("order created",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.Int64("amount", order.TotalAmount),
	)
	return order, nil
}

// Get returns one order by id.
func (s *OrderService) Get(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.Store.Orders().GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Order{}, ErrOrderNotFound
		}
		return domain.Order{}, err
	}
	return order, nil
}
