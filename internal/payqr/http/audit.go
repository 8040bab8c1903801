package http

import (
	"errors"
	"net/http"

	"github.com/tabletap/payqr/internal/payqr/domain"
	"github.com/tabletap/payqr/internal/payqr/service"
	"github.com/tabletap/payqr/pkg/httpx"
)

// AuditHandler serves GET /v1/orders/{id}/audit for dispute investigation.
type AuditHandler struct {
	Audit  *service.AuditRecorder
	Orders *service.OrderService
}

type auditResponse struct {
	OrderID string              `json:"order_id"`
	Entries []domain.AuditEntry `json:"entries"`
}

func (h *AuditHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")
	if orderID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "order id is required")
		return
	}

	if _, err := h.Orders.Get(r.Context(), orderID); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "order not found")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "unexpected error")
		return
	}

	entries, err := h.Audit.ListByOrder(r.Context(), orderID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "unexpected error")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}

	httpx.WriteJSON(w, http.StatusOK, auditResponse{OrderID: orderID, Entries: entries})
}
