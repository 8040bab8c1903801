package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/tabletap/payqr/internal/payqr/store"
)

// ShortCodeAlphabet excludes visually ambiguous characters (0/O, 1/I/L)
// so a code read over a noisy counter survives transcription.
const ShortCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	// ShortCodeLength gives ~29 bits of entropy, plenty for codes that
	// live five minutes and are rate limited at the endpoint.
	ShortCodeLength = 6

	// DefaultShortCodeAttempts caps the regeneration loop. Collisions are
	// rare at this entropy, so exhausting the cap means something is
	// structurally wrong and issuance should fail loudly.
	DefaultShortCodeAttempts = 8
)

// ShortCodeGenerator produces typeable fallback codes that are unique
// among currently-valid credentials at issuance time.
type ShortCodeGenerator struct {
	Length      int
	MaxAttempts int
}

// Generate returns a fresh short code that no active credential holds at
// time now. It retries on collision up to MaxAttempts before returning
// ErrShortCodeSpaceExhausted.
func (g ShortCodeGenerator) Generate(ctx context.Context, credentials store.Credentials, now time.Time) (string, error) {
	length := g.Length
	if length <= 0 {
		length = ShortCodeLength
	}
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultShortCodeAttempts
	}

	for i := 0; i < attempts; i++ {
		code, err := randomShortCode(length)
		if err != nil {
			return "", err
		}

		inUse, err := credentials.ShortCodeInUse(ctx, code, now)
		if err != nil {
			return "", fmt.Errorf("short code uniqueness check: %w", err)
		}
		if !inUse {
			return code, nil
		}
	}

	return "", ErrShortCodeSpaceExhausted
}

func randomShortCode(length int) (string, error) {
	alphabetSize := big.NewInt(int64(len(ShortCodeAlphabet)))

	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to generate short code: %w", err)
		}
		code[i] = ShortCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
