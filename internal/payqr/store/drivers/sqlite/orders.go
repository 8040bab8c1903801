package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tabletap/payqr/internal/payqr/domain"
)

type ordersRepo struct {
	db dbtx
}

func (r *ordersRepo) CreateOrder(ctx context.Context, o domain.Order) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, total_amount, currency, status, payment_status,
			payment_method, transaction_ref, paid_at, confirmed_at,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID,
		o.OrderNumber,
		o.TotalAmount,
		o.Currency,
		o.Status,
		o.PaymentStatus,
		mapStringNull(o.PaymentMethod),
		mapStringNull(o.TransactionRef),
		mapOptionalTime(o.PaidAt),
		mapOptionalTime(o.ConfirmedAt),
		o.CreatedAt,
		o.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *ordersRepo) GetOrderByID(ctx context.Context, id string) (domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, order_number, total_amount, currency, status, payment_status,
		       payment_method, transaction_ref, paid_at, confirmed_at,
		       created_at, updated_at
		FROM orders
		WHERE id = ?`,
		id,
	)

	var (
		o              domain.Order
		paymentMethod  sql.NullString
		transactionRef sql.NullString
		paidAt         sql.NullTime
		confirmedAt    sql.NullTime
	)

	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.TotalAmount,
		&o.Currency,
		&o.Status,
		&o.PaymentStatus,
		&paymentMethod,
		&transactionRef,
		&paidAt,
		&confirmedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, mapNotFound(err)
	}

	o.PaymentMethod = mapNullString(paymentMethod)
	o.TransactionRef = mapNullString(transactionRef)
	o.PaidAt = mapNullTimePtr(paidAt)
	o.ConfirmedAt = mapNullTimePtr(confirmedAt)
	return o, nil
}

func (r *ordersRepo) UpdateOrderPayment(ctx context.Context, id, paymentStatus, method, transactionRef string, paidAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = ?,
		    payment_method = ?,
		    transaction_ref = ?,
		    paid_at = ?,
		    updated_at = ?
		WHERE id = ?`,
		paymentStatus,
		mapStringNull(method),
		mapStringNull(transactionRef),
		paidAt,
		paidAt,
		id,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *ordersRepo) AdvanceOrderStatus(ctx context.Context, id, from, to string, at time.Time) error {
	// Conditional on the current status; a no-op when the order already
	// moved on is not an error.
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?,
		    confirmed_at = ?,
		    updated_at = ?
		WHERE id = ?
		  AND status = ?`,
		to, at, at, id, from,
	)
	return err
}
