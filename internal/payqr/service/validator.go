package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tabletap/payqr/internal/payqr/domain"
	"github.com/tabletap/payqr/internal/payqr/store"
	"github.com/tabletap/payqr/pkg/jwtx"
	"github.com/tabletap/payqr/pkg/slogx"
)

// ValidatorService answers "is this credential currently valid". Both
// entry points are read-only with respect to credential state and write
// exactly one audit entry per call, on every exit path.
type ValidatorService struct {
	Store  store.Store
	Signer *jwtx.HS256
	Audit  *AuditRecorder

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *ValidatorService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ValidateToken verifies a presented signed token. Signature, issuer,
// audience and expiry come from the token itself before any store lookup;
// the stored row then supplies the single-use, freshness and nonce checks.
func (s *ValidatorService) ValidateToken(ctx context.Context, token, deviceID string) (domain.ValidationResult, error) {
	start := s.now()

	result, entry, err := s.validateToken(ctx, token)
	s.record(ctx, entry, deviceID, start, err)
	return result, err
}

func (s *ValidatorService) validateToken(ctx context.Context, token string) (domain.ValidationResult, domain.AuditEntry, error) {
	var entry domain.AuditEntry
	log := slogx.FromContext(ctx)

	if strings.TrimSpace(token) == "" {
		return domain.ValidationResult{}, entry, ErrInvalidRequest
	}

	// 1. Cryptographic validity first: no store access for a forged token.
	claims, err := s.Signer.Verify(token)
	if err != nil {
		switch {
		case errors.Is(err, jwtx.ErrExpired):
			return domain.ValidationResult{}, entry, ErrExpired
		default:
			return domain.ValidationResult{}, entry, ErrSignatureInvalid
		}
	}

	entry.TokenID = claims.ID
	entry.OrderID = claims.OrderID
	entry.ShortCode = claims.ShortCode

	// 2. The credential row must exist and be live.
	cred, err := s.Store.Credentials().GetCredentialByTokenID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ValidationResult{}, entry, ErrCredentialNotFound
		}
		log.Error("credential lookup failed", slog.Any("error", err))
		return domain.ValidationResult{}, entry, err
	}

	if cred.SupersededAt != nil {
		return domain.ValidationResult{}, entry, ErrCredentialNotFound
	}
	if cred.Used {
		return domain.ValidationResult{}, entry, ErrAlreadyUsed
	}
	// Defense in depth beyond the signature's own expiry claim.
	if !s.now().Before(cred.ExpiresAt) {
		return domain.ValidationResult{}, entry, ErrExpired
	}

	// 3. The embedded nonce must match the stored one. A signed token
	// whose nonce disagrees was not minted with this credential row:
	// either a forged claim set under a leaked key or store tampering.
	if claims.Nonce != cred.Nonce {
		log.Warn("credential nonce mismatch",
			slog.String("token_id", cred.TokenID),
			slog.String("order_id", cred.OrderID),
		)
		return domain.ValidationResult{}, entry, ErrReplay
	}

	return domain.ValidationResult{
		OrderID:   cred.OrderID,
		TokenID:   cred.TokenID,
		ShortCode: cred.ShortCode,
		ExpiresAt: cred.ExpiresAt,
	}, entry, nil
}

// ValidateShortCode verifies a typed fallback code. The distinct internal
// failure reasons exist for the audit trail; callers surface NOT_FOUND,
// EXPIRED and SIGNATURE_INVALID as one generic message so the code channel
// does not leak which applied.
func (s *ValidatorService) ValidateShortCode(ctx context.Context, code, deviceID string) (domain.ValidationResult, error) {
	start := s.now()

	result, entry, err := s.validateShortCode(ctx, code)
	s.record(ctx, entry, deviceID, start, err)
	return result, err
}

func (s *ValidatorService) validateShortCode(ctx context.Context, code string) (domain.ValidationResult, domain.AuditEntry, error) {
	var entry domain.AuditEntry
	log := slogx.FromContext(ctx)

	code = strings.ToUpper(strings.TrimSpace(code))
	entry.ShortCode = code

	if len(code) != ShortCodeLength || !fromShortCodeAlphabet(code) {
		return domain.ValidationResult{}, entry, ErrCredentialNotFound
	}

	cred, err := s.Store.Credentials().GetLatestCredentialByShortCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ValidationResult{}, entry, ErrCredentialNotFound
		}
		log.Error("credential lookup failed", slog.Any("error", err))
		return domain.ValidationResult{}, entry, err
	}

	entry.TokenID = cred.TokenID
	entry.OrderID = cred.OrderID

	if cred.SupersededAt != nil {
		return domain.ValidationResult{}, entry, ErrCredentialNotFound
	}
	if cred.Used {
		return domain.ValidationResult{}, entry, ErrAlreadyUsed
	}
	if !s.now().Before(cred.ExpiresAt) {
		return domain.ValidationResult{}, entry, ErrExpired
	}

	return domain.ValidationResult{
		OrderID:   cred.OrderID,
		TokenID:   cred.TokenID,
		ShortCode: cred.ShortCode,
		ExpiresAt: cred.ExpiresAt,
	}, entry, nil
}

func (s *ValidatorService) record(ctx context.Context, entry domain.AuditEntry, deviceID string, start time.Time, err error) {
	entry.Action = domain.AuditActionScan
	entry.Status = auditStatus(err)
	entry.DeviceID = deviceID
	entry.ScanTimestamp = start
	entry.ProcessingTimeMS = s.now().Sub(start).Milliseconds()
	if err != nil {
		entry.ErrorMessage = err.Error()
	}
	s.Audit.Record(ctx, entry)
}

func fromShortCodeAlphabet(code string) bool {
	for _, r := range code {
		if !strings.ContainsRune(ShortCodeAlphabet, r) {
			return false
		}
	}
	return true
}
