package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tabletap/payqr/internal/payqr/domain"
	"github.com/tabletap/payqr/internal/payqr/store"
	"github.com/tabletap/payqr/internal/payqr/store/drivers/sqlite"
	"github.com/tabletap/payqr/pkg/idx"
	"github.com/tabletap/payqr/pkg/jwtx"
)

const (
	testIssuer   = "payqr-test"
	testAudience = "payqr-scanner"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// newTestStore opens a file-backed database so concurrent tests share one
// database across pooled connections, which :memory: does not guarantee.
func newTestStore(t *testing.T) store.Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "payqr.db") + "?_pragma=busy_timeout(5000)"
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func newTestSigner(t *testing.T) *jwtx.HS256 {
	t.Helper()

	signer, err := jwtx.NewHS256(testSecret, testIssuer, []string{testAudience})
	require.NoError(t, err)
	return signer
}

func seedOrder(t *testing.T, st store.Store, amount int64) domain.Order {
	t.Helper()

	now := time.Now().UTC()
	order := domain.Order{
		ID:            idx.New().String(),
		OrderNumber:   "A-042",
		TotalAmount:   amount,
		Currency:      "USD",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, st.Orders().CreateOrder(context.Background(), order))
	return order
}

func newTestIssuer(st store.Store, signer *jwtx.HS256, now func() time.Time) *IssuerService {
	return &IssuerService{
		Store:    st,
		Signer:   signer,
		TTL:      5 * time.Minute,
		Audience: []string{testAudience},
		Now:      now,
	}
}
