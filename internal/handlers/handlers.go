// Package handlers implements HTTP handlers for the reconciler API.
package handlers

import (
	"log/slog"

	"github.com/benx421/payment-reconciler/internal/ledger"
	"github.com/benx421/payment-reconciler/internal/reconcile"
	"github.com/benx421/payment-reconciler/internal/service"
)

// Handler holds the injected service dependencies for all endpoints
type Handler struct {
	checkout *service.CheckoutService
	protocol *reconcile.Protocol
	ledger   ledger.Ledger
	logger   *slog.Logger
}

// NewHandler creates a new Handler with injected service dependencies.
func NewHandler(
	checkout *service.CheckoutService,
	protocol *reconcile.Protocol,
	l ledger.Ledger,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		checkout: checkout,
		protocol: protocol,
		ledger:   l,
		logger:   logger,
	}
}
