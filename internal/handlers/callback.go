package handlers

import (
	"io"
	"net/http"
)

const verifyHeader = "X-VERIFY"

// maxCallbackBody bounds how much of an inbound callback is read
const maxCallbackBody = 1 << 20

type callbackResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Applied       bool   `json:"applied"`
	Conflict      bool   `json:"conflict,omitempty"`
}

// Callback handles POST /api/v1/callback, the gateway's server-to-server
// push path.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "failed to read request body")
		return
	}

	res, err := h.protocol.HandleCallback(r.Context(), body, r.Header.Get(verifyHeader))
	if err != nil {
		h.writeProtocolError(w, err)
		return
	}

	// A duplicate or conflicting delivery still answers 200 so the gateway
	// stops retrying; the conflict is audited server-side.
	h.writeJSON(w, http.StatusOK, callbackResponse{
		TransactionID: res.Order.MerchantTransactionID,
		Status:        string(res.Order.Status),
		Applied:       res.Applied,
		Conflict:      res.Conflict,
	})
}
