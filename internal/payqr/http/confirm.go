package http

import (
	"encoding/json"
	"net/http"

	"github.com/tabletap/payqr/internal/payqr/service"
	"github.com/tabletap/payqr/pkg/httpx"
)

// ConfirmHandler serves POST /v1/payments/confirm, the cashier terminal's
// commit step after a successful scan.
type ConfirmHandler struct {
	Confirmer *service.ConfirmerService
}

type confirmRequest struct {
	OrderID        string `json:"order_id"`
	TokenID        string `json:"token_id"`
	UserID         string `json:"user_id"`
	DeviceID       string `json:"device_id"`
	PaymentMethod  string `json:"payment_method"`
	TransactionRef string `json:"transaction_ref"`
}

func (h *ConfirmHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	order, err := h.Confirmer.Confirm(r.Context(), service.ConfirmRequest{
		OrderID:        req.OrderID,
		TokenID:        req.TokenID,
		UserID:         req.UserID,
		DeviceID:       deviceID(r, req.DeviceID),
		PaymentMethod:  req.PaymentMethod,
		TransactionRef: req.TransactionRef,
	})
	if err != nil {
		writeConfirmError(w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, order)
}
