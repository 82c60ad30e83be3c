package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/reviewledger/internal/domain/model"
	"github.com/ericfisherdev/reviewledger/internal/domain/port/driven"
)

var _ driven.CredentialStore = (*CredentialRepo)(nil)

// ErrCredentialTampered is returned when a stored ciphertext does not open
// under its own row key, e.g. after being copied from another row.
var ErrCredentialTampered = errors.New("credential ciphertext does not match its key")

// CredentialRepo stores secrets keyed by (service, scope), sealed with
// AES-256-GCM. The row key is the additional data of every seal, so a
// ciphertext only opens under the key it was written for.
type CredentialRepo struct {
	db   *DB
	aead cipher.AEAD // nil when no secret key is configured.
}

// NewCredentialRepo builds the repo. A nil key yields a repo whose
// reads and writes fail with driven.ErrEncryptionKeyNotSet.
func NewCredentialRepo(db *DB, key []byte) (*CredentialRepo, error) {
	repo := &CredentialRepo{db: db}
	if key == nil {
		return repo, nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("credential cipher: %w", err)
	}
	repo.aead, err = cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("credential cipher: %w", err)
	}
	return repo, nil
}

// Set stores or replaces the credential under key.
func (r *CredentialRepo) Set(ctx context.Context, key model.CredentialKey, plaintext string) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if r.aead == nil {
		return driven.ErrEncryptionKeyNotSet
	}

	nonce := make([]byte, r.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("credential nonce: %w", err)
	}
	sealed := r.aead.Seal(nil, nonce, []byte(plaintext), []byte(key.String()))

	const query = `
		INSERT INTO credentials (service, scope, nonce, ciphertext, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(service, scope) DO UPDATE SET
			nonce = excluded.nonce,
			ciphertext = excluded.ciphertext,
			updated_at = excluded.updated_at
	`
	_, err := r.db.Writer.ExecContext(ctx, query,
		key.Service, key.Scope, nonce, sealed, time.Now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("set credential %s: %w", key, err)
	}
	return nil
}

// Get returns the credential stored under exactly key, or ("", nil).
func (r *CredentialRepo) Get(ctx context.Context, key model.CredentialKey) (string, error) {
	if r.aead == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT nonce, ciphertext FROM credentials WHERE service = ? AND scope = ?`
	var nonce, sealed []byte
	err := r.db.Reader.QueryRowContext(ctx, query, key.Service, key.Scope).Scan(&nonce, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get credential %s: %w", key, err)
	}
	return r.open(key, nonce, sealed)
}

// Resolve returns the credential under key, else the service-wide one.
func (r *CredentialRepo) Resolve(ctx context.Context, key model.CredentialKey) (string, error) {
	if r.aead == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	// Scoped rows sort before the '' row.
	const query = `
		SELECT scope, nonce, ciphertext FROM credentials
		WHERE service = ? AND scope IN (?, '')
		ORDER BY scope = '' LIMIT 1
	`
	found := model.CredentialKey{Service: key.Service}
	var nonce, sealed []byte
	err := r.db.Reader.QueryRowContext(ctx, query, key.Service, key.Scope).Scan(&found.Scope, &nonce, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve credential %s: %w", key, err)
	}
	return r.open(found, nonce, sealed)
}

// List returns all stored credentials with decrypted values.
func (r *CredentialRepo) List(ctx context.Context) ([]model.Credential, error) {
	if r.aead == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT service, scope, nonce, ciphertext, updated_at FROM credentials ORDER BY service, scope`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []model.Credential
	for rows.Next() {
		var (
			cred          model.Credential
			nonce, sealed []byte
			updatedAt     string
		)
		if err := rows.Scan(&cred.Key.Service, &cred.Key.Scope, &nonce, &sealed, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		if cred.Value, err = r.open(cred.Key, nonce, sealed); err != nil {
			return nil, err
		}
		if cred.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("credential %s updated_at: %w", cred.Key, err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return creds, nil
}

// Delete removes the credential stored under exactly key.
func (r *CredentialRepo) Delete(ctx context.Context, key model.CredentialKey) error {
	const query = `DELETE FROM credentials WHERE service = ? AND scope = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, key.Service, key.Scope); err != nil {
		return fmt.Errorf("delete credential %s: %w", key, err)
	}
	return nil
}

func (r *CredentialRepo) open(key model.CredentialKey, nonce, sealed []byte) (string, error) {
	if len(nonce) != r.aead.NonceSize() {
		return "", fmt.Errorf("credential %s: %w", key, ErrCredentialTampered)
	}
	plaintext, err := r.aead.Open(nil, nonce, sealed, []byte(key.String()))
	if err != nil {
		return "", fmt.Errorf("credential %s: %w", key, ErrCredentialTampered)
	}
	return string(plaintext), nil
}
