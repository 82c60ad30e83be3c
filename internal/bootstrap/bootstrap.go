// Package bootstrap opens the configured ledger backend and assembles the
// LedgerService. It is shared by the server and the CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	githubadapter "github.com/ericfisherdev/reviewledger/internal/adapter/driven/github"
	"github.com/ericfisherdev/reviewledger/internal/adapter/driven/memory"
	pgadapter "github.com/ericfisherdev/reviewledger/internal/adapter/driven/postgres"
	sqliteadapter "github.com/ericfisherdev/reviewledger/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/reviewledger/internal/application"
	"github.com/ericfisherdev/reviewledger/internal/config"
	"github.com/ericfisherdev/reviewledger/internal/domain/model"
	"github.com/ericfisherdev/reviewledger/internal/domain/port/driven"
)

// GitHubCredentialService is the credential-store service name of the GitHub
// token.
const GitHubCredentialService = "github"

// ErrCredentialsUnsupported is returned by credential operations on backends
// without a credential table.
var ErrCredentialsUnsupported = errors.New("credential storage requires the sqlite store")

// Backend is an opened ledger store plus the resources behind it.
type Backend struct {
	Store       driven.StateStore
	Credentials driven.CredentialStore // nil unless the store is sqlite.

	closers []func() error
}

// Close releases the backend's connections.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// OpenBackend opens the store selected by cfg.Store and applies pending
// migrations.
func OpenBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.Store {
	case config.StoreMemory:
		slog.Warn("using in-memory store, the ledger is lost on exit")
		return &Backend{Store: memory.NewStore()}, nil

	case config.StorePostgres:
		db, err := pgadapter.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := pgadapter.RunMigrations(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		slog.Info("postgres store opened")
		return &Backend{
			Store:   pgadapter.NewStateStore(db),
			closers: []func() error{db.Close},
		}, nil

	case config.StoreSQLite:
		// Open database (dual reader/writer with WAL mode).
		db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
		if err != nil {
			return nil, err
		}
		// Run migrations on writer connection.
		if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
			_ = db.Close()
			return nil, err
		}
		creds, err := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		slog.Info("sqlite store opened", "path", cfg.DBPath)
		return &Backend{
			Store:       sqliteadapter.NewStateStore(db),
			Credentials: creds,
			closers:     []func() error{db.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store %q", cfg.Store)
	}
}

// GitHubCredentialKey is the key of the token used against repo. The
// service-wide token backs it when no repo-specific one is stored.
func GitHubCredentialKey(repo string) model.CredentialKey {
	return model.CredentialKey{Service: GitHubCredentialService, Scope: repo}
}

// ResolveGitHubToken returns the stored token for cfg.GitHubRepo, else the
// stored service-wide token, else GITHUB_TOKEN.
func ResolveGitHubToken(ctx context.Context, cfg *config.Config, creds driven.CredentialStore) string {
	if creds == nil {
		return cfg.GitHubToken
	}

	stored, err := creds.Resolve(ctx, GitHubCredentialKey(cfg.GitHubRepo))
	switch {
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
	case err != nil:
		slog.Warn("failed to read stored github token, falling back to config", "error", err)
	case stored != "":
		return stored
	}
	return cfg.GitHubToken
}

// NewLedgerService builds the service over backend, with commit lookup wired
// when a repository is configured.
func NewLedgerService(ctx context.Context, cfg *config.Config, backend *Backend) *application.LedgerService {
	opts := []application.LedgerOption{application.WithUpdateRetries(cfg.UpdateRetries)}

	if cfg.HasCommitLookup() {
		token := ResolveGitHubToken(ctx, cfg, backend.Credentials)
		opts = append(opts, application.WithCommitSource(githubadapter.NewClient(token), cfg.GitHubRepo))
		slog.Info("commit lookup enabled", "repo", cfg.GitHubRepo, "authenticated", token != "")
	} else {
		slog.Info("no github repo configured, commit lookup disabled")
	}

	return application.NewLedgerService(backend.Store, opts...)
}
