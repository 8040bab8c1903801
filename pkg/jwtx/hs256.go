package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrVersion     = errors.New("jwtx: unsupported token format version")
)

// MinSecretBytes is the smallest HMAC secret accepted. HS256 with a short
// secret is brute-forceable offline from a single captured token.
const MinSecretBytes = 32

// HS256 signs and verifies payment-credential JWTs with a single symmetric
// key. Issuer and audience are fixed at construction and enforced on every
// Verify, so a token minted for another deployment never validates here.
type HS256 struct {
	secret   []byte
	issuer   string
	audience []string
}

// NewHS256 creates a signer/verifier from a shared secret.
func NewHS256(secret []byte, issuer string, audience []string) (*HS256, error) {
	if len(secret) < MinSecretBytes {
		return nil, fmt.Errorf("jwtx: secret must be at least %d bytes, got %d", MinSecretBytes, len(secret))
	}
	return &HS256{secret: secret, issuer: issuer, audience: audience}, nil
}

// Issuer returns the issuer claim stamped on signed tokens.
func (h *HS256) Issuer() string { return h.issuer }

// Sign produces a compact HS256 JWS for the claims.
func (h *HS256) Sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: signing failed: %w", err)
	}
	return signed, nil
}

// Verify parses the token, checks the signature and registered claims, and
// returns the claims. Signature and structural checks happen before any
// caller-side store lookup; classification follows the package sentinels.
func (h *HS256) Verify(raw string) (Claims, error) {
	var claims Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return h.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return Claims{}, ErrNotYetValid
		case errors.Is(err, jwt.ErrTokenSignatureInvalid),
			errors.Is(err, jwt.ErrTokenUnverifiable),
			errors.Is(err, jwt.ErrSignatureInvalid):
			return Claims{}, ErrInvalidSig
		default:
			return Claims{}, ErrMalformed
		}
	}
	if !token.Valid {
		return Claims{}, ErrInvalidSig
	}

	if err := claims.ValidateIssuer(h.issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateAudience(h.audience); err != nil {
		return Claims{}, err
	}
	if claims.Version != TokenFormatVersion {
		return Claims{}, ErrVersion
	}

	return claims, nil
}
