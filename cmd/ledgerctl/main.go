// Command ledgerctl inspects and edits the review ledger directly, without a
// running server.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ericfisherdev/reviewledger/internal/adapter/driving/contract"
	"github.com/ericfisherdev/reviewledger/internal/application"
	"github.com/ericfisherdev/reviewledger/internal/bootstrap"
	"github.com/ericfisherdev/reviewledger/internal/config"
	"github.com/ericfisherdev/reviewledger/internal/domain/port/driven"
	"github.com/ericfisherdev/reviewledger/internal/logger"
)

// app bundles what the commands operate on.
type app struct {
	ledger   *application.LedgerService
	contract *contract.Contract
	creds    driven.CredentialStore // nil when the store has no credential table.
	close    func() error
}

// appOpener opens the app for one command invocation.
type appOpener func(ctx context.Context) (*app, error)

func main() {
	if err := newRootCmd(openApp).Execute(); err != nil {
		os.Exit(1)
	}
}

// openApp loads configuration and opens the configured store.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger.NewLogger(cfg.Log, os.Stderr))

	backend, err := bootstrap.OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc := bootstrap.NewLedgerService(ctx, cfg, backend)
	return &app{
		ledger:   svc,
		contract: contract.New(svc),
		creds:    backend.Credentials,
		close:    backend.Close,
	}, nil
}
