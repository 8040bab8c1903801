package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tabletap/payqr/internal/payqr/domain"
	"github.com/tabletap/payqr/internal/payqr/store"
	"github.com/tabletap/payqr/pkg/cryptox"
	"github.com/tabletap/payqr/pkg/idx"
	"github.com/tabletap/payqr/pkg/jwtx"
	"github.com/tabletap/payqr/pkg/slogx"
)

// IssuerService mints signed, time-bounded, single-use payment credentials.
type IssuerService struct {
	Store      store.Store
	Signer     *jwtx.HS256
	TTL        time.Duration
	Audience   []string
	ShortCodes ShortCodeGenerator

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *IssuerService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Issue creates a credential for the order. Re-issuing for an order that
// still holds a valid credential supersedes the prior one: the raw signed
// token is never retained, so the old credential cannot be handed out
// again and must die instead. Issuance failures are fatal to the caller.
func (s *IssuerService) Issue(ctx context.Context, orderID string) (domain.IssuedCredential, error) {
	log := slogx.FromContext(ctx)

	// 1. The order must exist and must not already be paid.
	order, err := s.Store.Orders().GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.IssuedCredential{}, ErrOrderNotFound
		}
		log.Error("failed to fetch order", slog.Any("error", err))
		return domain.IssuedCredential{}, err
	}
	if order.Paid() {
		return domain.IssuedCredential{}, ErrOrderAlreadyPaid
	}

	now := s.now()
	ttl := s.TTL
	if ttl <= 0 {
		ttl = jwtx.DefaultCredentialTTL
	}

	// 2. Generate identity material: token id, nonce, short code.
	tokenID := idx.New().String()
	nonce := uuid.NewString()

	shortCode, err := s.ShortCodes.Generate(ctx, s.Store.Credentials(), now)
	if err != nil {
		log.Error("short code generation failed",
			slog.String("order_id", orderID),
			slog.Any("error", err),
		)
		return domain.IssuedCredential{}, err
	}

	// 3. Sign the credential claims.
	claims := jwtx.NewCredentialClaims(
		tokenID,
		order.ID,
		order.OrderNumber,
		nonce,
		order.TotalAmount,
		order.Currency,
		shortCode,
		ttl,
		s.Signer.Issuer(),
		s.Audience,
		now,
	)

	token, err := s.Signer.Sign(claims)
	if err != nil {
		log.Error("credential signing failed",
			slog.String("order_id", orderID),
			slog.Any("error", err),
		)
		return domain.IssuedCredential{}, fmt.Errorf("sign credential: %w", err)
	}

	credential := domain.Credential{
		TokenID:   tokenID,
		OrderID:   order.ID,
		Nonce:     nonce,
		ShortCode: shortCode,
		TokenHash: cryptox.FingerprintToken(token),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	// 4. Supersede any prior active credential and persist the new row
	// atomically, so the order never briefly holds two live credentials.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		superseded, err := tx.Credentials().SupersedeActiveCredentials(ctx, order.ID, now)
		if err != nil {
			return err
		}
		if superseded > 0 {
			log.Info("superseded prior credentials",
				slog.String("order_id", order.ID),
				slog.Int64("count", superseded),
			)
		}
		return tx.Credentials().CreateCredential(ctx, credential)
	})
	if err != nil {
		log.Error("failed to persist credential",
			slog.String("order_id", orderID),
			slog.String("token_id", tokenID),
			slog.Any("error", err),
		)
		return domain.IssuedCredential{}, fmt.Errorf("persist credential: %w", err)
	}

	log.Debug("credential issued",
		slog.String("order_id", order.ID),
		slog.String("token_id", tokenID),
		slog.Time("expires_at", credential.ExpiresAt),
	)

	return domain.IssuedCredential{
		Token:      token,
		TokenID:    tokenID,
		ShortCode:  shortCode,
		IssuedAt:   credential.IssuedAt,
		ExpiresAt:  credential.ExpiresAt,
		TTLSeconds: int64(ttl.Seconds()),
	}, nil
}
