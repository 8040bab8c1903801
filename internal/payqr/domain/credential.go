package domain

import "time"

// Credential is the persisted metadata for one issued payment credential.
// The signed token itself is never stored; TokenHash is a SHA-256
// fingerprint kept for audit correlation.
type Credential struct {
	TokenID        string
	OrderID        string
	Nonce          string
	ShortCode      string
	TokenHash      string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	Used           bool
	UsedByUserID   string
	UsedByDeviceID string
	UsedAt         *time.Time
	SupersededAt   *time.Time
	CreatedAt      time.Time
}

// Active reports whether the credential can still be redeemed at t:
// not used, not superseded by a re-issuance, and not past its expiry.
func (c Credential) Active(t time.Time) bool {
	return !c.Used && c.SupersededAt == nil && t.Before(c.ExpiresAt)
}

// IssuedCredential is what issuance returns to the caller. Token is the
// raw signed JWS and is the only copy that ever leaves the service.
type IssuedCredential struct {
	Token      string    `json:"token"`
	TokenID    string    `json:"token_id"`
	ShortCode  string    `json:"short_code"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	TTLSeconds int64     `json:"ttl_seconds"`
}

// ValidationResult is the verified view of a credential returned by both
// validation paths, enough for the terminal to fetch the associated order.
type ValidationResult struct {
	OrderID   string    `json:"order_id"`
	TokenID   string    `json:"token_id"`
	ShortCode string    `json:"short_code"`
	ExpiresAt time.Time `json:"expires_at"`
}
