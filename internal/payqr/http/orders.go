package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tabletap/payqr/internal/payqr/service"
	"github.com/tabletap/payqr/pkg/httpx"
)

// OrdersHandler serves POST /v1/orders, the order intake used by the POS
// front of house to register an order before a credential can be issued.
type OrdersHandler struct {
	OrderService *service.OrderService
}

type createOrderRequest struct {
	OrderNumber string `json:"order_number"`
	TotalAmount int64  `json:"total_amount"`
	Currency    string `json:"currency"`
}

func (h *OrdersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	order, err := h.OrderService.Create(r.Context(), service.CreateOrderRequest{
		OrderNumber: req.OrderNumber,
		TotalAmount: req.TotalAmount,
		Currency:    req.Currency,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "order_number, positive total_amount and 3-letter currency are required")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "unexpected error")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, order)
}
