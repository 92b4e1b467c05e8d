package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benx421/payment-reconciler/internal/config"
	"github.com/benx421/payment-reconciler/internal/db"
	"github.com/benx421/payment-reconciler/internal/handlers"
	"github.com/benx421/payment-reconciler/internal/ledger"
	"github.com/benx421/payment-reconciler/internal/sink"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting payment reconciler",
		"port", cfg.Server.Port,
		"ledger_backend", cfg.Ledger.Backend,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()

	var orderLedger ledger.Ledger
	switch cfg.Ledger.Backend {
	case config.LedgerBackendPostgres:
		database, err := db.Connect(ctx, &cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer database.Close()

		pg := ledger.NewPostgres(database, logger)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure ledger schema", "error", err)
			os.Exit(1)
		}
		orderLedger = pg
	default:
		orderLedger = ledger.NewMemory(logger)
	}

	jsonSink, err := sink.NewJSONFile(cfg.Sink.OrdersFile)
	if err != nil {
		logger.Error("failed to open orders file sink", "error", err)
		os.Exit(1)
	}

	fanout := sink.NewFanout(logger, cfg.Sink.QueueSize,
		jsonSink,
		sink.NewSpreadsheet(cfg.Sink.SpreadsheetFile),
	)
	defer fanout.Close()

	router := handlers.NewRouter(cfg, orderLedger, fanout, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}
