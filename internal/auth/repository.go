package auth

import (
	"context"
	"errors"
)

// ErrCredentialNotFound is returned when no active credential matches a lookup.
// Backends also return it when the lookup itself failed.
var ErrCredentialNotFound = errors.New("credential not found")

// ErrMalformedCredential is returned when a credential entry lacks required fields.
var ErrMalformedCredential = errors.New("malformed credential")

// CredentialStore resolves identities to credential records. Inactive records
// are invisible to both lookups.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*Credential, error)
	// FindByCompany returns at most one record. When several active records
	// share a company, the backend's ordering picks the first one.
	FindByCompany(ctx context.Context, company string) (*Credential, error)
}
