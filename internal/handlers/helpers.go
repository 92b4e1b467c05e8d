package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/benx421/payment-reconciler/internal/reconcile"
	"github.com/benx421/payment-reconciler/internal/service"
)

// errorResponse is the JSON error body shared by all endpoints
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeServiceError maps checkout errors onto HTTP statuses
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var svcErr *service.ServiceError
	if !errors.As(err, &svcErr) {
		h.logger.Error("unexpected checkout error", "error", err)
		h.writeError(w, http.StatusInternalServerError, service.ErrCodeInternalError, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch svcErr.Code {
	case service.ErrCodeInvalidAmount, service.ErrCodeInvalidCustomer:
		status = http.StatusBadRequest
	case service.ErrCodeDuplicateTransaction:
		status = http.StatusConflict
	case service.ErrCodeGatewayUnavailable, service.ErrCodeGatewayRejected:
		status = http.StatusBadGateway
	}

	h.writeError(w, status, svcErr.Code, svcErr.Message)
}

// writeProtocolError maps reconciliation rejections onto HTTP statuses
func (h *Handler) writeProtocolError(w http.ResponseWriter, err error) {
	var protoErr *reconcile.ProtocolError
	if !errors.As(err, &protoErr) {
		h.logger.Error("unexpected protocol error", "error", err)
		h.writeError(w, http.StatusInternalServerError, reconcile.ErrCodeInternalError, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch protoErr.Code {
	case reconcile.ErrCodeMissingSignature, reconcile.ErrCodeInvalidSignature:
		status = http.StatusUnauthorized
	case reconcile.ErrCodeMalformedPayload:
		status = http.StatusBadRequest
	case reconcile.ErrCodeOrderNotFound:
		status = http.StatusNotFound
	}

	h.writeError(w, status, protoErr.Code, protoErr.Message)
}
