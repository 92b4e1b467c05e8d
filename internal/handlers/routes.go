package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/benx421/payment-reconciler/internal/config"
	"github.com/benx421/payment-reconciler/internal/gateway"
	"github.com/benx421/payment-reconciler/internal/ledger"
	"github.com/benx421/payment-reconciler/internal/middleware"
	"github.com/benx421/payment-reconciler/internal/reconcile"
	"github.com/benx421/payment-reconciler/internal/service"
	"github.com/benx421/payment-reconciler/internal/signature"
	"github.com/benx421/payment-reconciler/internal/sink"
)

// NewRouter creates and configures the HTTP router with all routes and
// middleware.
func NewRouter(
	cfg *config.Config,
	l ledger.Ledger,
	fanout *sink.Fanout,
	logger *slog.Logger,
) http.Handler {
	codec := signature.NewCodec(cfg.Gateway.SaltKey, cfg.Gateway.SaltIndex, logger)
	gatewayClient := gateway.NewClient(&cfg.Gateway, codec, logger)

	checkoutService := service.NewCheckoutService(l, gatewayClient, fanout, logger)
	protocol := reconcile.NewProtocol(l, gatewayClient, codec, fanout, logger)

	handler := NewHandler(checkoutService, protocol, l, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger))

	r.Get("/health", handler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", handler.Checkout)
		r.Post("/callback", handler.Callback)
		r.Get("/redirect", handler.Redirect)
		r.Post("/redirect", handler.Redirect)
		r.Get("/orders", handler.ListOrders)
		r.Get("/orders/{transactionID}", handler.GetOrder)
	})

	return r
}
