package model

import (
	"fmt"
	"strings"
	"time"
)

// CredentialKey identifies a stored secret. Scope is an owner/repo pair
// matching GITHUB_REPO, or empty for a secret shared by every repository of
// the service.
type CredentialKey struct {
	Service string
	Scope   string
}

// Global returns the service-wide key that backs k when nothing is stored
// under k itself.
func (k CredentialKey) Global() CredentialKey {
	return CredentialKey{Service: k.Service}
}

// String renders the key as service or service:owner/repo.
func (k CredentialKey) String() string {
	if k.Scope == "" {
		return k.Service
	}
	return k.Service + ":" + k.Scope
}

// Validate rejects keys that cannot be stored.
func (k CredentialKey) Validate() error {
	if strings.TrimSpace(k.Service) == "" || strings.ContainsAny(k.Service, ":/") {
		return fmt.Errorf("%w: credential service %q", ErrInvalidField, k.Service)
	}
	if k.Scope == "" {
		return nil
	}
	owner, name, ok := strings.Cut(k.Scope, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: credential scope must be owner/repo, got %q", ErrInvalidField, k.Scope)
	}
	return nil
}

// Credential holds a stored secret for an external service ("github").
type Credential struct {
	Key       CredentialKey
	Value     string
	UpdatedAt time.Time
}
