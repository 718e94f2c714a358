package gate_test

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/daap14/tenantgate/internal/auth"
	"github.com/daap14/tenantgate/internal/gate"
	"github.com/daap14/tenantgate/internal/session"
	"github.com/daap14/tenantgate/internal/tenant"
)

const validToken = "valid-token"

var alice = &auth.Identity{Username: "alice", Company: "acme", Dashboard: "/dashboard/acme", Label: "acme"}

type stubVerifier struct {
	mu    sync.Mutex
	calls int
}

func (v *stubVerifier) Verify(_ context.Context, token string) (*auth.Identity, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	if token == validToken {
		return alice, nil
	}
	return nil, session.ErrBadSignature
}

func (v *stubVerifier) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

type landing struct{}

func (landing) LandingPathFor(id *auth.Identity) string { return id.Dashboard }

var enabled = gate.Snapshot{CredentialsConfigured: true, SecretConfigured: true}

func newGate(snap gate.Snapshot) (*gate.Gate, *stubVerifier) {
	v := &stubVerifier{}
	return gate.New(v, landing{}, gate.DefaultPaths(), func() gate.Snapshot { return snap }), v
}

func TestSnapshot_Enabled(t *testing.T) {
	assert.True(t, enabled.Enabled())
	assert.False(t, gate.Snapshot{SecretConfigured: true}.Enabled())
	assert.False(t, gate.Snapshot{CredentialsConfigured: true}.Enabled())
	assert.False(t, gate.Snapshot{Disabled: true, CredentialsConfigured: true, SecretConfigured: true}.Enabled())
}

func TestGate_Enabled(t *testing.T) {
	on, _ := newGate(enabled)
	off, _ := newGate(gate.Snapshot{SecretConfigured: true})

	assert.True(t, on.Enabled())
	assert.False(t, off.Enabled())
}

func TestDecide_UnconfiguredPassesEverything(t *testing.T) {
	for _, snap := range []gate.Snapshot{
		{CredentialsConfigured: true},
		{SecretConfigured: true},
		{Disabled: true, CredentialsConfigured: true, SecretConfigured: true},
	} {
		g, v := newGate(snap)
		for _, p := range []string{"/admin/secret-page", "/api/usage", "/login", "/dashboard"} {
			d := g.Decide(context.Background(), gate.Request{Path: p})
			assert.Equal(t, gate.Pass, d.Action, p)
			assert.False(t, d.Inspected)
		}
		assert.Zero(t, v.Calls())
	}
}

func TestDecide_PublicPathsSkipCookie(t *testing.T) {
	g, v := newGate(enabled)

	for _, p := range []string{"/health", "/favicon.ico", "/_next/static/x.js", "/logo.svg"} {
		d := g.Decide(context.Background(), gate.Request{Path: p, Cookie: "garbage"})
		assert.Equal(t, gate.Pass, d.Action, p)
		assert.False(t, d.Inspected, p)
	}
	assert.Zero(t, v.Calls())
}

func TestDecide_ValidSession(t *testing.T) {
	g, _ := newGate(enabled)

	tests := []struct {
		name     string
		path     string
		action   gate.Action
		location string
	}{
		{name: "login redirects to landing", path: "/login", action: gate.Redirect, location: "/dashboard/acme"},
		{name: "dashboard alias redirects to tenant", path: "/dashboard", action: gate.Redirect, location: "/dashboard/acme"},
		{name: "dashboard alias with slash", path: "/dashboard/", action: gate.Redirect, location: "/dashboard/acme"},
		{name: "tenant dashboard passes", path: "/dashboard/acme", action: gate.Pass},
		{name: "api passes", path: "/api/usage", action: gate.Pass},
		{name: "other page passes", path: "/reports", action: gate.Pass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Decide(context.Background(), gate.Request{Path: tt.path, Cookie: validToken})

			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.location, d.Location)
			assert.Equal(t, alice, d.Identity)
			assert.True(t, d.Inspected)
			assert.NoError(t, d.Err)
		})
	}
}

func TestDecide_AliasEqualToLandingPasses(t *testing.T) {
	v := &stubVerifier{}
	home := landingFunc(func(*auth.Identity) string { return "/dashboard" })
	g := gate.New(v, home, gate.DefaultPaths(), func() gate.Snapshot { return enabled })

	d := g.Decide(context.Background(), gate.Request{Path: "/dashboard", Cookie: validToken})

	assert.Equal(t, gate.Pass, d.Action)
}

type landingFunc func(*auth.Identity) string

func (f landingFunc) LandingPathFor(id *auth.Identity) string { return f(id) }

func TestDecide_APIWithoutSessionRejects(t *testing.T) {
	g, _ := newGate(enabled)

	for _, cookie := range []string{"", "tampered"} {
		d := g.Decide(context.Background(), gate.Request{Path: "/api/usage", Cookie: cookie})

		assert.Equal(t, gate.Reject, d.Action)
		assert.Equal(t, http.StatusUnauthorized, d.Status)
		require.NotNil(t, d.Body)
		assert.NotEmpty(t, d.Body.Error)
		assert.Nil(t, d.Identity)
		assert.Error(t, d.Err)
	}
}

func TestDecide_PageWithoutSessionRedirectsToLogin(t *testing.T) {
	g, _ := newGate(enabled)

	d := g.Decide(context.Background(), gate.Request{Path: "/dashboard/acme", RawQuery: "range=7d&tab=usage"})

	assert.Equal(t, gate.Redirect, d.Action)
	assert.ErrorIs(t, d.Err, gate.ErrNoSession)
	u, err := url.Parse(d.Location)
	require.NoError(t, err)
	assert.Equal(t, "/login", u.Path)
	assert.Equal(t, "/dashboard/acme?range=7d&tab=usage", u.Query().Get("next"))
}

func TestDecide_LoginWithoutSessionPasses(t *testing.T) {
	g, _ := newGate(enabled)

	d := g.Decide(context.Background(), gate.Request{Path: "/login", Cookie: "tampered"})

	assert.Equal(t, gate.Pass, d.Action)
	assert.Nil(t, d.Identity)
	assert.ErrorIs(t, d.Err, session.ErrBadSignature)
}

func TestDecide_Idempotent(t *testing.T) {
	g, _ := newGate(enabled)

	for _, req := range []gate.Request{
		{Path: "/login", Cookie: validToken},
		{Path: "/api/usage"},
		{Path: "/reports", RawQuery: "a=1"},
		{Path: "/favicon.ico"},
	} {
		first := g.Decide(context.Background(), req)
		second := g.Decide(context.Background(), req)
		assert.Equal(t, first, second, req.Path)
	}
}

func TestDecide_Concurrent(t *testing.T) {
	defer goleak.VerifyNone(t)
	g, _ := newGate(enabled)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				d := g.Decide(context.Background(), gate.Request{Path: "/login", Cookie: validToken})
				assert.Equal(t, gate.Redirect, d.Action)
				assert.Equal(t, "/dashboard/acme", d.Location)
				return
			}
			d := g.Decide(context.Background(), gate.Request{Path: "/api/usage"})
			assert.Equal(t, gate.Reject, d.Action)
		}(i)
	}
	wg.Wait()
}

func TestDecide_WithCodec(t *testing.T) {
	store := auth.NewStaticRepository([]byte(`[{"username":"alice","password":"pw","company":"acme","dashboard":"/dashboard/acme"}]`), nil)
	codec := session.NewCodec(session.StaticSecret("s3cret"), store)
	g := gate.New(codec, tenant.NewResolver(store), gate.DefaultPaths(), func() gate.Snapshot { return enabled })

	token, err := codec.Issue("alice")
	require.NoError(t, err)

	d := g.Decide(context.Background(), gate.Request{Path: "/login", Cookie: token.Value})
	assert.Equal(t, gate.Redirect, d.Action)
	assert.Equal(t, "/dashboard/acme", d.Location)

	d = g.Decide(context.Background(), gate.Request{Path: "/api/usage"})
	assert.Equal(t, gate.Reject, d.Action)
	assert.Equal(t, http.StatusUnauthorized, d.Status)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "pass", gate.Pass.String())
	assert.Equal(t, "redirect", gate.Redirect.String())
	assert.Equal(t, "reject", gate.Reject.String())
	assert.Equal(t, "unknown", gate.Action(9).String())
}
