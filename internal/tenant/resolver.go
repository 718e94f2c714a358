// Package tenant maps verified identities and company slugs to tenant routes.
package tenant

import (
	"context"
	"errors"
	"strings"

	"github.com/daap14/tenantgate/internal/auth"
)

// ErrTenantNotFound is returned when a company slug has no active credential.
var ErrTenantNotFound = errors.New("tenant not found")

// Access is the outcome of matching an identity against a tenant route.
type Access int

const (
	// AccessGranted means the identity belongs to the requested tenant.
	AccessGranted Access = iota
	// AccessNotFound means the slug does not resolve to any tenant.
	AccessNotFound
	// AccessForeign means the tenant exists but belongs to another company.
	AccessForeign
)

func (a Access) String() string {
	switch a {
	case AccessGranted:
		return "granted"
	case AccessNotFound:
		return "not_found"
	case AccessForeign:
		return "foreign"
	default:
		return "unknown"
	}
}

// Resolver resolves landing routes and tenant records.
type Resolver struct {
	store auth.CredentialStore
}

// NewResolver creates a Resolver over store.
func NewResolver(store auth.CredentialStore) *Resolver {
	return &Resolver{store: store}
}

// LandingPathFor returns the dashboard path of identity.
func (r *Resolver) LandingPathFor(identity *auth.Identity) string {
	if identity.Dashboard != "" {
		return identity.Dashboard
	}
	return auth.NormalizePath("/dashboard/" + identity.Company)
}

// TenantFor returns the credential configured for slug.
func (r *Resolver) TenantFor(ctx context.Context, slug string) (*auth.Credential, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrTenantNotFound
	}
	c, err := r.store.FindByCompany(ctx, slug)
	if err != nil {
		return nil, ErrTenantNotFound
	}
	return c, nil
}

// Authorize matches identity against the tenant addressed by slug. The
// credential is returned when the tenant exists, whatever the access outcome.
func (r *Resolver) Authorize(ctx context.Context, identity *auth.Identity, slug string) (Access, *auth.Credential) {
	c, err := r.TenantFor(ctx, slug)
	if err != nil {
		return AccessNotFound, nil
	}
	if identity == nil || identity.Company != c.Company {
		return AccessForeign, c
	}
	return AccessGranted, c
}
