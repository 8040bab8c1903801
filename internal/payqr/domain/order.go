package domain

import "time"

// Order statuses. The wider order lifecycle belongs to the order
// management service; this subsystem only advances pending orders to
// confirmed when payment is verified.
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusClosed    = "closed"
)

// Payment statuses.
const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
)

// Accepted out-of-band payment methods recorded at confirmation.
const (
	PaymentMethodCash   = "CASH"
	PaymentMethodCard   = "CARD"
	PaymentMethodMobile = "MOBILE_MONEY"
)

// Order is the narrow view of an order this subsystem works with.
// TotalAmount is in minor currency units.
type Order struct {
	ID             string     `json:"id"`
	OrderNumber    string     `json:"order_number"`
	TotalAmount    int64      `json:"total_amount"`
	Currency       string     `json:"currency"`
	Status         string     `json:"status"`
	PaymentStatus  string     `json:"payment_status"`
	PaymentMethod  string     `json:"payment_method,omitempty"`
	TransactionRef string     `json:"transaction_ref,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	ConfirmedAt    *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Paid reports whether payment has already been confirmed for the order.
func (o Order) Paid() bool { return o.PaymentStatus == PaymentStatusPaid }
