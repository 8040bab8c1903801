package service

import "errors"

// Credential validation/confirmation error taxonomy. Handlers classify
// these with errors.Is and must not tell a scanning terminal which of
// ErrSignatureInvalid / ErrCredentialNotFound / ErrExpired applied.
var (
	ErrSignatureInvalid   = errors.New("credential signature invalid")
	ErrExpired            = errors.New("credential expired")
	ErrAlreadyUsed        = errors.New("credential already used")
	ErrCredentialNotFound = errors.New("credential not found")
	ErrReplay             = errors.New("credential nonce mismatch")

	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderAlreadyPaid = errors.New("order already paid")

	ErrInvalidRequest = errors.New("invalid request")

	// ErrShortCodeSpaceExhausted indicates the bounded regeneration loop
	// ran out of attempts. This is an issuance-side fault, never a
	// validation outcome.
	ErrShortCodeSpaceExhausted = errors.New("short code space exhausted")
)
