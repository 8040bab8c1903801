package store

import (
	"context"
	"errors"
	"time"

	"github.com/tabletap/payqr/internal/payqr/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for
// now) implement this. It exposes sub-repositories to keep concerns tidy
// and testable.
type Store interface {
	Credentials() Credentials
	Orders() Orders
	Audit() Audit

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. This is the
	// recommended way to handle multi-step operations that must be atomic
	// (e.g., mark-used plus order payment update).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Credentials interface {
	// CreateCredential inserts a new credential row. Returns
	// ErrAlreadyExists when the token id or an active short code collides.
	CreateCredential(ctx context.Context, c domain.Credential) error

	// GetCredentialByTokenID returns a credential regardless of state.
	GetCredentialByTokenID(ctx context.Context, tokenID string) (domain.Credential, error)

	// GetLatestCredentialByShortCode returns the most recently issued
	// credential carrying the short code, regardless of state. Short codes
	// recycle once a credential dies, so the newest row is the one a
	// cashier is typing in.
	GetLatestCredentialByShortCode(ctx context.Context, shortCode string) (domain.Credential, error)

	// ShortCodeInUse reports whether any currently-valid credential holds
	// the short code at time now.
	ShortCodeInUse(ctx context.Context, shortCode string, now time.Time) (bool, error)

	// MarkCredentialUsed flips used=1 and records who consumed the
	// credential, but only when it is still unused. Returns ErrNotFound
	// when no unused row matched (already used or never issued); the
	// caller distinguishes the two by a follow-up read.
	MarkCredentialUsed(ctx context.Context, tokenID, userID, deviceID string, usedAt time.Time) error

	// SupersedeActiveCredentials marks every still-active credential for
	// the order as superseded at time at. Returns the number of rows
	// affected.
	SupersedeActiveCredentials(ctx context.Context, orderID string, at time.Time) (int64, error)

	// CountExpiredUnused returns how many credentials expired without
	// being redeemed. Operational analytics for housekeeping logs.
	CountExpiredUnused(ctx context.Context, now time.Time) (int64, error)
}

type Orders interface {
	// CreateOrder inserts a new order (id is provided by app via ULID).
	CreateOrder(ctx context.Context, o domain.Order) error

	// GetOrderByID returns an order by id.
	GetOrderByID(ctx context.Context, id string) (domain.Order, error)

	// UpdateOrderPayment records a confirmed payment: status, method,
	// transaction reference and paid timestamp, bumping updated_at.
	UpdateOrderPayment(ctx context.Context, id, paymentStatus, method, transactionRef string, paidAt time.Time) error

	// AdvanceOrderStatus moves an order from one lifecycle status to
	// another, recording the confirmation timestamp. No-op (nil) when the
	// order is not currently in from.
	AdvanceOrderStatus(ctx context.Context, id, from, to string, at time.Time) error
}

type Audit interface {
	// AppendAuditEntry writes one audit row. Entries are append-only.
	AppendAuditEntry(ctx context.Context, e domain.AuditEntry) error

	// ListAuditByOrder returns entries for an order, newest first.
	ListAuditByOrder(ctx context.Context, orderID string) ([]domain.AuditEntry, error)

	// ListAuditByToken returns entries for a token id, newest first.
	ListAuditByToken(ctx context.Context, tokenID string) ([]domain.AuditEntry, error)

	// DeleteAuditBefore removes entries older than cutoff (retention
	// housekeeping). Returns the number of rows deleted.
	DeleteAuditBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
