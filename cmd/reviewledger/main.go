package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/reviewledger/internal/adapter/driving/contract"
	httphandler "github.com/ericfisherdev/reviewledger/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/reviewledger/internal/adapter/driving/web"
	"github.com/ericfisherdev/reviewledger/internal/bootstrap"
	"github.com/ericfisherdev/reviewledger/internal/config"
	"github.com/ericfisherdev/reviewledger/internal/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid values).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(logger.NewLogger(cfg.Log, os.Stderr))
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"store", cfg.Store,
		"db_path", cfg.DBPath,
		"github_repo", cfg.GitHubRepo,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the ledger store and run migrations.
	backend, err := bootstrap.OpenBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := backend.Close(); closeErr != nil {
			slog.Error("error closing store", "error", closeErr)
		}
	}()

	// 4. Create the ledger service and confirm the store answers.
	ledgerSvc := bootstrap.NewLedgerService(ctx, cfg, backend)
	if err := ledgerSvc.InitLedger(ctx); err != nil {
		return err
	}

	// 5. Create HTTP handler and register API routes.
	apiHandler := httphandler.NewHandler(ledgerSvc, contract.New(ledgerSvc), slog.Default())
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, apiHandler)

	// 6. Create web handler and register GUI routes.
	webHandler := webhandler.NewHandler(ledgerSvc, slog.Default())
	webhandler.RegisterRoutes(mux, webHandler)

	// Apply middleware.
	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	slog.Info("reviewledger started", "listen_addr", cfg.ListenAddr, "store", cfg.Store)

	// 7. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		return err
	}

	// 8. Graceful shutdown.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
