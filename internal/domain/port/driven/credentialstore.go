package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/reviewledger/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// REVIEWLEDGER_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set REVIEWLEDGER_SECRET_KEY")

// CredentialStore defines the driven port for encrypted credential persistence.
// Values cross this boundary as plaintext; encryption belongs to the adapter.
type CredentialStore interface {
	// Set stores or replaces the credential under key.
	Set(ctx context.Context, key model.CredentialKey, plaintext string) error

	// Get returns the credential stored under exactly key, or ("", nil).
	Get(ctx context.Context, key model.CredentialKey) (string, error)

	// Resolve returns the credential under key, falling back to key.Global().
	// It returns ("", nil) when neither exists.
	Resolve(ctx context.Context, key model.CredentialKey) (string, error)

	// List returns all stored credentials with decrypted values, ordered by
	// service then scope.
	List(ctx context.Context) ([]model.Credential, error)

	// Delete removes the credential stored under exactly key.
	Delete(ctx context.Context, key model.CredentialKey) error
}
