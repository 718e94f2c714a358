// Package session issues and verifies stateless, HMAC-signed session tokens.
//
// A token has the form "subject:expiresAtMillis.signature" where signature is
// the unpadded base64url HMAC-SHA-256 of everything before the last dot.
package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"hash"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/daap14/tenantgate/internal/auth"
)

// DefaultTTL is the session lifetime used when none is configured.
const DefaultTTL = 8 * time.Hour

var (
	// ErrNotConfigured is returned when no signing secret is available.
	ErrNotConfigured = errors.New("session secret is not configured")
	// ErrMalformedToken is returned for tokens that do not parse.
	ErrMalformedToken = errors.New("malformed session token")
	// ErrTokenExpired is returned when the token deadline has passed.
	ErrTokenExpired = errors.New("session token expired")
	// ErrBadSignature is returned when the signature does not verify.
	ErrBadSignature = errors.New("session signature mismatch")
	// ErrUnknownSubject is returned when the subject no longer resolves to an active credential.
	ErrUnknownSubject = errors.New("session subject is unknown or inactive")
	// ErrEmptySubject is returned when a token is requested for an empty username.
	ErrEmptySubject = errors.New("session subject is empty")
)

var signatureEncoding = base64.RawURLEncoding.Strict()

// EncodeSignature encodes sig as unpadded base64url.
func EncodeSignature(sig []byte) string {
	return signatureEncoding.EncodeToString(sig)
}

// DecodeSignature decodes an unpadded base64url signature. Non-canonical
// encodings are rejected so every character of the segment is significant.
func DecodeSignature(s string) ([]byte, error) {
	return signatureEncoding.DecodeString(s)
}

// ParseTTL interprets raw as a number of seconds. Empty, non-numeric and
// non-positive values fall back to DefaultTTL.
func ParseTTL(raw string) time.Duration {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 || n > math.MaxInt64/int64(time.Second) {
		return DefaultTTL
	}
	return time.Duration(n) * time.Second
}

// Token is an issued session token and its deadline.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// SecretSource returns the current signing secret. An empty secret disables
// issuance and verification.
type SecretSource func() string

// StaticSecret returns a SecretSource that always yields secret.
func StaticSecret(secret string) SecretSource {
	return func() string { return secret }
}

// signingKey caches HMAC instances for one secret value.
type signingKey struct {
	secret string
	macs   sync.Pool
}

func newSigningKey(secret string) *signingKey {
	key := []byte(secret)
	k := &signingKey{secret: secret}
	k.macs.New = func() any { return hmac.New(sha256.New, key) }
	return k
}

func (k *signingKey) sign(payload string) []byte {
	mac := k.macs.Get().(hash.Hash)
	defer k.macs.Put(mac)

	mac.Reset()
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

// Codec issues and verifies session tokens. It is safe for concurrent use.
type Codec struct {
	secret SecretSource
	store  auth.CredentialStore
	ttl    time.Duration
	now    func() time.Time
	key    atomic.Pointer[signingKey]
}

// Option configures a Codec.
type Option func(*Codec)

// WithTTL sets the token lifetime. Non-positive values keep DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec creates a Codec that signs with secret and re-resolves subjects in store.
func NewCodec(secret SecretSource, store auth.CredentialStore, opts ...Option) *Codec {
	c := &Codec{
		secret: secret,
		store:  store,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a signing secret is available.
func (c *Codec) Configured() bool {
	return c.secret != nil && c.secret() != ""
}

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// signingKey returns the key for the current secret, deriving a new one when
// the secret changed. Concurrent derivations for the same secret are equivalent.
func (c *Codec) signingKey() (*signingKey, error) {
	if c.secret == nil {
		return nil, ErrNotConfigured
	}
	secret := c.secret()
	if secret == "" {
		return nil, ErrNotConfigured
	}
	if k := c.key.Load(); k != nil && k.secret == secret {
		return k, nil
	}
	k := newSigningKey(secret)
	c.key.Store(k)
	return k, nil
}

// Issue creates a token for username that expires after the configured TTL.
func (c *Codec) Issue(username string) (*Token, error) {
	k, err := c.signingKey()
	if err != nil {
		return nil, err
	}
	if username == "" {
		return nil, ErrEmptySubject
	}

	expiresAt := c.now().Add(c.ttl).UnixMilli()
	payload := username + ":" + strconv.FormatInt(expiresAt, 10)

	return &Token{
		Value:     payload + "." + EncodeSignature(k.sign(payload)),
		ExpiresAt: time.UnixMilli(expiresAt),
	}, nil
}

// Verify authenticates token and returns the identity of its subject as
// currently recorded in the credential store. Structure and expiry are
// checked before the signature.
func (c *Codec) Verify(ctx context.Context, token string) (*auth.Identity, error) {
	k, err := c.signingKey()
	if err != nil {
		return nil, err
	}

	dot := strings.LastIndexByte(token, '.')
	if dot <= 0 || dot == len(token)-1 {
		return nil, ErrMalformedToken
	}
	payload, encodedSig := token[:dot], token[dot+1:]

	colon := strings.LastIndexByte(payload, ':')
	if colon <= 0 || colon == len(payload)-1 {
		return nil, ErrMalformedToken
	}
	subject, rawExpiry := payload[:colon], payload[colon+1:]

	expiresAt, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		return nil, ErrMalformedToken
	}
	if expiresAt <= c.now().UnixMilli() {
		return nil, ErrTokenExpired
	}

	provided, err := DecodeSignature(encodedSig)
	if err != nil {
		return nil, ErrBadSignature
	}
	if !hmac.Equal(k.sign(payload), provided) {
		return nil, ErrBadSignature
	}

	cred, err := c.store.FindByUsername(ctx, subject)
	if err != nil {
		return nil, ErrUnknownSubject
	}
	return cred.Identity(), nil
}
