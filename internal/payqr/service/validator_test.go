package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tabletap/payqr/internal/payqr/domain"
	"github.com/tabletap/payqr/internal/payqr/store"
	"github.com/tabletap/payqr/pkg/jwtx"
)

func newTestValidator(st store.Store, signer *jwtx.HS256, now func() time.Time) *ValidatorService {
	return &ValidatorService{
		Store:  st,
		Signer: signer,
		Audit:  &AuditRecorder{Store: st},
		Now:    now,
	}
}

func TestValidateToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	signer := newTestSigner(t)
	order := seedOrder(t, st, 1500)

	issued, err := newTestIssuer(st, signer, nil).Issue(ctx, order.ID)
	require.NoError(t, err)

	svc := newTestValidator(st, signer, nil)

	result, err := svc.ValidateToken(ctx, issued.Token, "device-1")
	require.NoError(t, err)
	require.Equal(t, order.ID, result.OrderID)
	require.Equal(t, issued.TokenID, result.TokenID)
	require.Equal(t, issued.ShortCode, result.ShortCode)

	// Validation is read-only: the credential stays redeemable.
	cred, err := st.Credentials().GetCredentialByTokenID(ctx, issued.TokenID)
	require.NoError(t, err)
	require.False(t, cred.Used)

	entries, err := st.Audit().ListAuditByToken(ctx, issued.TokenID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, domain.AuditActionScan, entries[0].Action)
	require.Equal(t, domain.AuditStatusSuccess, entries[0].Status)
	require.Equal(t, "device-1", entries[0].DeviceID)
}

func TestValidateTokenTampered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	signer := newTestSigner(t)
	order := seedOrder(t, st, 1500)

	issued, err := newTestIssuer(st, signer, nil).Issue(ctx, order.ID)
	require.NoError(t, err)

	svc := newTestValidator(st, signer, nil)

	parts := strings.Split(issued.Token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	_, err = svc.ValidateToken(ctx, tampered, "device-1")
	require.ErrorIs(t, err, ErrSignatureInvalid)

	// A forged token resolves to no credential, so the audit entry carries
	// no token id and is found on the order trail only after a valid scan.
	entries, err := st.Audit().ListAuditByToken(ctx, issued.TokenID)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestValidateTokenExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	signer := newTestSigner(t)
	order := seedOrder(t, st, 700)

	issued, err := newTestIssuer(st, signer, nil).Issue(ctx, order.ID)
	require.NoError(t, err)

	// The store freshness check trips even when the signature layer has
	// not: simulate the clock moving past expiry.
	future := func() time.Time { return time.Now().UTC().Add(6 * time.Minute) }
	svc := newTestValidator(st, signer, future)

	_, err = svc.ValidateToken(ctx, issued.Token, "device-1")
	require.ErrorIs(t, err, ErrExpired)

	entries, err := st.Audit().ListAuditByToken(ctx, issued.TokenID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, domain.AuditStatusExpired, entries[0].Status)
}

func TestValidateTokenAlreadyUsed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	signer := newTestSigner(t)
	order := seedOrder(t, st, 700)

	issued, err := newTestIssuer(st, signer, nil).Issue(ctx, order.ID)
	require.NoError(t, err)
	require.NoError(t, st.Credentials().MarkCredentialUsed(ctx, issued.TokenID, "user-1", "device-1", time.Now().UTC()))

	svc := newTestValidator(st, signer, nil)
	_, err = svc.ValidateToken(ctx, issued.Token, "device-2")
	require.ErrorIs(t, err, ErrAlreadyUsed)

	entries, err := st.Audit().ListAuditByToken(ctx, issued.TokenID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, domain.AuditStatusDuplicate, entries[0].Status)
}

func TestValidateTokenSuperseded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	signer := newTestSigner(t)
	order := seedOrder(t, st, 700)

	issuer := newTestIssuer(st, signer, nil)
	first, err := issuer.Issue(ctx, order.ID)
	require.NoError(t, err)
	_, err = issuer.Issue(ctx, order.ID)
	require.NoError(t, err)

	svc := newTestValidator(st, signer, nil)
	_, err = svc.ValidateToken(ctx, first.Token, "device-1")
	require.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestValidateTokenNonceMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	signer := newTestSigner(t)
	order := seedOrder(t, st, 700)

	issued, err := newTestIssuer(st, signer, nil).Issue(ctx, order.ID)
	require.NoError(t, err)

	// A validly signed token whose nonce disagrees with the stored row
	// must be rejected as a replay.
	claims := jwtx.NewCredentialClaims(
		issued.TokenID, order.ID, order.OrderNumber,
		"forged-nonce", order.TotalAmount, order.Currency,
		issued.ShortCode, 5*time.Minute, testIssuer, []string{testAudience},
		time.Now().UTC(),
	)
	forged, err := signer.Sign(claims)
	require.NoError(t, err)

	svc := newTestValidator(st, signer, nil)
	_, err = svc.ValidateToken(ctx, forged, "device-1")
	require.ErrorIs(t, err, ErrReplay)

	entries, err := st.Audit().ListAuditByToken(ctx, issued.TokenID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, domain.AuditStatusReplay, entries[0].Status)
}

func TestValidateShortCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	signer := newTestSigner(t)
	order := seedOrder(t, st, 3100)

	issued, err := newTestIssuer(st, signer, nil).Issue(ctx, order.ID)
	require.NoError(t, err)

	svc := newTestValidator(st, signer, nil)

	// Codes are matched case-insensitively with surrounding whitespace
	// ignored, so a cashier can type them loosely.
	result, err := svc.ValidateShortCode(ctx, "  "+strings.ToLower(issued.ShortCode)+" ", "device-1")
	require.NoError(t, err)
	require.Equal(t, order.ID, result.OrderID)
	require.Equal(t, issued.TokenID, result.TokenID)

	entries, err := st.Audit().ListAuditByToken(ctx, issued.TokenID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, domain.AuditStatusSuccess, entries[0].Status)
}

func TestValidateShortCodeUnknown(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	svc := newTestValidator(st, newTestSigner(t), nil)

	_, err := svc.ValidateShortCode(context.Background(), "ZZZZ99", "device-1")
	require.ErrorIs(t, err, ErrCredentialNotFound)

	// Malformed codes are rejected before any lookup.
	_, err = svc.ValidateShortCode(context.Background(), "AB!", "device-1")
	require.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestValidateShortCodeExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	signer := newTestSigner(t)
	order := seedOrder(t, st, 800)

	issued, err := newTestIssuer(st, signer, nil).Issue(ctx, order.ID)
	require.NoError(t, err)

	future := func() time.Time { return time.Now().UTC().Add(10 * time.Minute) }
	svc := newTestValidator(st, signer, future)

	_, err = svc.ValidateShortCode(ctx, issued.ShortCode, "device-1")
	require.ErrorIs(t, err, ErrExpired)
}
