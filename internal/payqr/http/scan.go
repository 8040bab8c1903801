package http

import (
	"encoding/json"
	"net/http"

	"github.com/tabletap/payqr/internal/payqr/domain"
	"github.com/tabletap/payqr/internal/payqr/service"
	"github.com/tabletap/payqr/pkg/httpx"
)

// ScanHandler serves the two validation endpoints. Both are read-only and
// return the order view the cashier needs to take payment.
type ScanHandler struct {
	Validator *service.ValidatorService
	Orders    *service.OrderService
}

type scanTokenRequest struct {
	Token    string `json:"token"`
	DeviceID string `json:"device_id"`
}

type scanCodeRequest struct {
	Code     string `json:"code"`
	DeviceID string `json:"device_id"`
}

type scanResponse struct {
	domain.ValidationResult
	Order orderSummary `json:"order"`
}

// orderSummary is the cashier-facing slice of an order: enough to state
// the amount owed, nothing about payment plumbing.
type orderSummary struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	TotalAmount int64  `json:"total_amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

func (h *ScanHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req scanTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	result, err := h.Validator.ValidateToken(r.Context(), req.Token, deviceID(r, req.DeviceID))
	if err != nil {
		writeScanError(w, err)
		return
	}

	h.respond(w, r, result)
}

func (h *ScanHandler) HandleShortCode(w http.ResponseWriter, r *http.Request) {
	var req scanCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	result, err := h.Validator.ValidateShortCode(r.Context(), req.Code, deviceID(r, req.DeviceID))
	if err != nil {
		writeScanError(w, err)
		return
	}

	h.respond(w, r, result)
}

func (h *ScanHandler) respond(w http.ResponseWriter, r *http.Request, result domain.ValidationResult) {
	order, err := h.Orders.Get(r.Context(), result.OrderID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "unexpected error")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, scanResponse{
		ValidationResult: result,
		Order: orderSummary{
			ID:          order.ID,
			OrderNumber: order.OrderNumber,
			TotalAmount: order.TotalAmount,
			Currency:    order.Currency,
			Status:      order.Status,
		},
	})
}

// deviceID prefers the X-Device-ID header (which also keys the rate
// limiter) over the body field.
func deviceID(r *http.Request, fromBody string) string {
	if id := r.Header.Get("X-Device-ID"); id != "" {
		return id
	}
	return fromBody
}
