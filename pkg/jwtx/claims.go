package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenFormatVersion is embedded in every credential so terminals can
// reject tokens minted under an older claim layout after an upgrade.
const TokenFormatVersion = 1

// DefaultCredentialTTL is the default lifetime for payment credentials.
// Short-lived on purpose: a QR code left on a table should go stale
// before the next seating.
const DefaultCredentialTTL = 5 * time.Minute

// Claims are the payment-credential claims. The registered claim set
// carries identity and validity (jti is the token id); the custom fields
// bind the credential to one order so a terminal can render the amount
// without a store lookup.
type Claims struct {
	jwt.RegisteredClaims

	// OrderID this credential authorizes payment for.
	OrderID string `json:"oid"`

	// OrderNumber is the human-facing order reference shown on receipts.
	OrderNumber string `json:"ono,omitempty"`

	// Nonce is duplicated in the credential store. A structurally valid
	// token whose nonce disagrees with the stored row is a replay.
	Nonce string `json:"nce"`

	// Amount in minor currency units (cents).
	Amount int64 `json:"amt"`

	// Currency is an ISO 4217 code.
	Currency string `json:"cur,omitempty"`

	// ShortCode is the typeable fallback for this credential.
	ShortCode string `json:"sc,omitempty"`

	// Version is the token format version.
	Version int `json:"ver"`
}

// NewCredentialClaims builds minimally-correct claims for a payment credential.
func NewCredentialClaims(
	tokenID, orderID, orderNumber, nonce string,
	amount int64,
	currency, shortCode string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   orderID,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        tokenID,
		},
		OrderID:     orderID,
		OrderNumber: orderNumber,
		Nonce:       nonce,
		Amount:      amount,
		Currency:    currency,
		ShortCode:   shortCode,
		Version:     TokenFormatVersion,
	}
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used
// before it is valid (nbf).
func (c *Claims) ValidateExpiry(now time.Time) error {
	now = now.UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}
