package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/benx421/payment-reconciler/internal/service"
)

type checkoutRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Amount string `json:"amount"`
}

type checkoutResponse struct {
	TransactionID string `json:"transaction_id"`
	RedirectURL   string `json:"redirect_url"`
	Status        string `json:"status"`
}

// Checkout handles POST /api/v1/checkout
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
		return
	}

	result, err := h.checkout.Checkout(r.Context(), service.CheckoutInput{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Amount: req.Amount,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, checkoutResponse{
		TransactionID: result.Order.MerchantTransactionID,
		RedirectURL:   result.RedirectURL,
		Status:        string(result.Order.Status),
	})
}
