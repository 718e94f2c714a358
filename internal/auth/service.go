package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinBcryptCost is the lowest cost HashPassword will produce.
const MinBcryptCost = 12

// ErrInvalidCredentials is returned for any failed verification. It does not
// distinguish an unknown user from a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

var adaptiveHashPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// IsAdaptiveHash reports whether hash looks like a bcrypt output.
func IsAdaptiveHash(hash string) bool {
	for _, p := range adaptiveHashPrefixes {
		if strings.HasPrefix(hash, p) {
			return true
		}
	}
	return false
}

// HashPassword returns a bcrypt hash of password. Costs below MinBcryptCost are raised.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// Service verifies passwords against a CredentialStore.
type Service struct {
	store          CredentialStore
	allowPlaintext bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPlaintextFallback enables exact-match comparison for stored values that
// are not bcrypt hashes. It exists to migrate legacy static tables and must
// not be enabled for the database source.
func WithPlaintextFallback(enabled bool) ServiceOption {
	return func(s *Service) {
		s.allowPlaintext = enabled
	}
}

// NewService creates a new auth Service.
func NewService(store CredentialStore, opts ...ServiceOption) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the CredentialStore the service verifies against.
func (s *Service) Store() CredentialStore {
	return s.store
}

// Verify resolves username and checks password against the stored hash.
func (s *Service) Verify(ctx context.Context, username, password string) (*Identity, error) {
	c, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	switch {
	case IsAdaptiveHash(c.PasswordHash):
		if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) != nil {
			return nil, ErrInvalidCredentials
		}
	case s.allowPlaintext:
		if subtle.ConstantTimeCompare([]byte(c.PasswordHash), []byte(password)) != 1 {
			return nil, ErrInvalidCredentials
		}
	default:
		return nil, ErrInvalidCredentials
	}

	return c.Identity(), nil
}
