package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/benx421/payment-reconciler/internal/models"
)

// GetOrder handles GET /api/v1/orders/{transactionID}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")

	order, err := h.ledger.Get(r.Context(), transactionID)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			h.writeError(w, http.StatusNotFound, "order_not_found", "no order exists for this transaction id")
			return
		}
		h.logger.Error("failed to load order", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to load order")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

// ListOrders handles GET /api/v1/orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.ledger.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to list orders")
		return
	}

	if orders == nil {
		orders = []*models.Order{}
	}
	h.writeJSON(w, http.StatusOK, orders)
}
