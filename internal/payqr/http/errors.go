package http

import (
	"errors"
	"net/http"

	"github.com/tabletap/payqr/internal/payqr/service"
	"github.com/tabletap/payqr/pkg/httpx"
)

// writeScanError maps validation failures for scanning terminals. A
// terminal must not learn whether a rejected code was unknown, expired or
// carried a bad signature; only ALREADY_USED is surfaced distinctly so
// staff can tell "get a fresh code" apart from "this was redeemed".
func writeScanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "missing or malformed fields")
	case errors.Is(err, service.ErrAlreadyUsed):
		httpx.WriteError(w, http.StatusConflict, "already_used", "this code has already been redeemed")
	case errors.Is(err, service.ErrSignatureInvalid),
		errors.Is(err, service.ErrExpired),
		errors.Is(err, service.ErrCredentialNotFound),
		errors.Is(err, service.ErrReplay):
		httpx.WriteError(w, http.StatusNotFound, "invalid_code", "invalid or expired code")
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "unexpected error")
	}
}

// writeConfirmError maps confirmation failures for the cashier terminal.
// ALREADY_PAID is distinct so a cashier never re-charges a customer.
func writeConfirmError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "missing or malformed fields")
	case errors.Is(err, service.ErrOrderAlreadyPaid):
		httpx.WriteError(w, http.StatusConflict, "already_paid", "this order has already been paid")
	case errors.Is(err, service.ErrAlreadyUsed):
		httpx.WriteError(w, http.StatusConflict, "already_used", "this code has already been redeemed")
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrCredentialNotFound),
		errors.Is(err, service.ErrExpired):
		httpx.WriteError(w, http.StatusNotFound, "invalid_code", "invalid or expired code")
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "unexpected error")
	}
}
