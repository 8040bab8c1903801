package http

import (
	"errors"
	"net/http"

	"github.com/tabletap/payqr/internal/payqr/service"
	"github.com/tabletap/payqr/pkg/httpx"
)

// IssueCredentialHandler serves POST /v1/orders/{id}/credential. The
// response carries the raw signed token exactly once; only its fingerprint
// is retained server side.
type IssueCredentialHandler struct {
	IssuerService *service.IssuerService
}

func (h *IssueCredentialHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")
	if orderID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "order id is required")
		return
	}

	issued, err := h.IssuerService.Issue(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			httpx.WriteError(w, http.StatusNotFound, "not_found", "order not found")
		case errors.Is(err, service.ErrOrderAlreadyPaid):
			httpx.WriteError(w, http.StatusConflict, "already_paid", "this order has already been paid")
		default:
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "unexpected error")
		}
		return
	}

	// The token is a bearer secret; keep it out of shared caches.
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, issued)
}
