package domain

import "time"

// AuditAction identifies which operation an audit entry records.
type AuditAction string

const (
	AuditActionScan    AuditAction = "SCAN"
	AuditActionConfirm AuditAction = "CONFIRM_PAYMENT"
)

// AuditStatus classifies the outcome of one attempt.
type AuditStatus string

const (
	AuditStatusSuccess   AuditStatus = "SUCCESS"
	AuditStatusFailed    AuditStatus = "FAILED"
	AuditStatusDuplicate AuditStatus = "DUPLICATE"
	AuditStatusExpired   AuditStatus = "EXPIRED"
	AuditStatusInvalid   AuditStatus = "INVALID"
	AuditStatusReplay    AuditStatus = "REPLAY"
)

// AuditEntry is one immutable record of a validation or confirmation
// attempt. TokenID and ShortCode are empty when the presented value could
// not be resolved to an issued credential.
type AuditEntry struct {
	ID               int64       `json:"id"`
	OrderID          string      `json:"order_id,omitempty"`
	TokenID          string      `json:"token_id,omitempty"`
	ShortCode        string      `json:"short_code,omitempty"`
	Action           AuditAction `json:"action"`
	Status           AuditStatus `json:"status"`
	DeviceID         string      `json:"device_id,omitempty"`
	UserID           string      `json:"user_id,omitempty"`
	ErrorMessage     string      `json:"error_message,omitempty"`
	PaymentMethod    string      `json:"payment_method,omitempty"`
	PaymentAmount    int64       `json:"payment_amount,omitempty"`
	TransactionID    string      `json:"transaction_id,omitempty"`
	ScanTimestamp    time.Time   `json:"scan_timestamp"`
	ProcessingTimeMS int64       `json:"processing_time_ms"`
}
