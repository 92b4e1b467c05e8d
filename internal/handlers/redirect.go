package handlers

import (
	"net/http"

	"github.com/benx421/payment-reconciler/internal/models"
)

type redirectResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	OutcomeCode   string `json:"outcome_code"`
	Message       string `json:"message"`
	Paid          bool   `json:"paid"`
	Verified      bool   `json:"verified"`
}

// Redirect handles GET and POST /api/v1/redirect, the browser's return
// from the gateway (pull path). Any status claim in the redirect itself is
// ignored; only the transaction id is read and the real outcome is
// re-derived from the gateway.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	transactionID := r.FormValue("transactionId")
	if transactionID == "" {
		transactionID = r.FormValue("merchantTransactionId")
	}

	res, err := h.protocol.HandleRedirect(r.Context(), transactionID)
	if err != nil {
		h.writeProtocolError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, redirectResponse{
		TransactionID: res.Order.MerchantTransactionID,
		Status:        string(res.Order.Status),
		OutcomeCode:   res.Outcome.Code,
		Message:       userMessage(res.Order.Status, res.Verified),
		Paid:          res.Order.Status == models.OrderStatusPaid,
		Verified:      res.Verified,
	})
}

// userMessage collapses every terminal path to exactly one of three
// notices, defaulting to failure when success cannot be confirmed.
func userMessage(status models.OrderStatus, verified bool) string {
	if !verified && status != models.OrderStatusPaid {
		return "We could not confirm your payment. If you were charged, it will be reconciled shortly."
	}

	switch status {
	case models.OrderStatusPaid:
		return "Payment confirmed. Thank you!"
	case models.OrderStatusPending:
		return "Payment is still pending. Please check back in a moment."
	default:
		return "Payment failed. You have not been charged."
	}
}
