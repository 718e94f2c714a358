// Package gate decides, per request, whether a request passes, is redirected
// or is rejected based on its session token and path.
//
// Decide holds no state between calls and is safe for unlimited concurrent use.
package gate

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/daap14/tenantgate/internal/auth"
)

// ErrNoSession is the decision error when the request carries no session cookie.
var ErrNoSession = errors.New("no session cookie")

// Action is the terminal outcome of a gate decision.
type Action int

const (
	// Pass lets the request through.
	Pass Action = iota
	// Redirect sends the client to Decision.Location.
	Redirect
	// Reject answers with Decision.Status and Decision.Body.
	Reject
)

func (a Action) String() string {
	switch a {
	case Pass:
		return "pass"
	case Redirect:
		return "redirect"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// RejectBody is the machine-readable body of a rejection.
type RejectBody struct {
	Error string `json:"error"`
}

// Decision is the result of evaluating one request.
type Decision struct {
	Action   Action
	Location string
	Status   int
	Body     *RejectBody

	// Identity is set when the session verified.
	Identity *auth.Identity
	// Inspected is true when the session cookie was checked.
	Inspected bool
	// Err is the verification failure, if any.
	Err error
}

// Request is the request metadata the gate consults.
type Request struct {
	Path     string
	RawQuery string
	Cookie   string
}

// Snapshot is the process-wide configuration state at decision time.
type Snapshot struct {
	// Disabled is the explicit operator switch that turns authentication off.
	Disabled bool
	// CredentialsConfigured is false when the static source holds no active users.
	CredentialsConfigured bool
	// SecretConfigured is false when no signing secret is set.
	SecretConfigured bool
}

// Enabled reports whether requests must be authenticated. Missing
// configuration turns the gate off, so that every request passes.
func (s Snapshot) Enabled() bool {
	return !s.Disabled && s.CredentialsConfigured && s.SecretConfigured
}

// Verifier authenticates a session token.
type Verifier interface {
	Verify(ctx context.Context, token string) (*auth.Identity, error)
}

// Landing resolves the landing route of an identity.
type Landing interface {
	LandingPathFor(identity *auth.Identity) string
}

// Gate evaluates requests against a Verifier and the classification tables.
type Gate struct {
	verifier Verifier
	landing  Landing
	paths    Paths
	snapshot func() Snapshot
}

// New creates a Gate. snapshot is consulted on every request.
func New(verifier Verifier, landing Landing, paths Paths, snapshot func() Snapshot) *Gate {
	return &Gate{
		verifier: verifier,
		landing:  landing,
		paths:    paths,
		snapshot: snapshot,
	}
}

// Paths returns the classification tables of the gate.
func (g *Gate) Paths() Paths {
	return g.paths
}

// Enabled reports whether the gate currently requires a session.
func (g *Gate) Enabled() bool {
	return g.snapshot().Enabled()
}

// Decide evaluates req.
func (g *Gate) Decide(ctx context.Context, req Request) Decision {
	return Evaluate(ctx, req, g.snapshot(), g.paths, g.verifier, g.landing)
}

// Evaluate is the decision function behind Gate.Decide.
func Evaluate(ctx context.Context, req Request, snap Snapshot, paths Paths, verifier Verifier, landing Landing) Decision {
	if !snap.Enabled() {
		return Decision{Action: Pass}
	}

	class := paths.Classify(req.Path)
	if class == ClassPublic && !inspectsSession(paths, req.Path) {
		return Decision{Action: Pass}
	}

	var (
		identity *auth.Identity
		err      = ErrNoSession
	)
	if req.Cookie != "" {
		identity, err = verifier.Verify(ctx, req.Cookie)
	}

	if err == nil {
		clean := cleanPath(req.Path)
		target := landing.LandingPathFor(identity)
		switch {
		case clean == cleanPath(paths.Login):
			return Decision{Action: Redirect, Location: target, Identity: identity, Inspected: true}
		case clean == cleanPath(paths.DashboardAlias) && clean != cleanPath(target):
			return Decision{Action: Redirect, Location: target, Identity: identity, Inspected: true}
		}
		return Decision{Action: Pass, Identity: identity, Inspected: true}
	}

	// The login page itself stays reachable without a session.
	if class == ClassPublic {
		return Decision{Action: Pass, Inspected: true, Err: err}
	}

	if class == ClassAPI {
		return Decision{
			Action:    Reject,
			Status:    http.StatusUnauthorized,
			Body:      &RejectBody{Error: "invalid or expired session"},
			Inspected: true,
			Err:       err,
		}
	}

	return Decision{
		Action:    Redirect,
		Location:  loginLocation(paths, req),
		Inspected: true,
		Err:       err,
	}
}

// inspectsSession reports whether a public path still needs the session:
// the login page redirects signed-in users to their landing page.
func inspectsSession(paths Paths, requestPath string) bool {
	return cleanPath(requestPath) == cleanPath(paths.Login)
}

func loginLocation(paths Paths, req Request) string {
	target := req.Path
	if target == "" {
		target = "/"
	}
	if req.RawQuery != "" {
		target += "?" + req.RawQuery
	}
	q := url.Values{}
	q.Set(paths.ReturnParam, target)
	return paths.Login + "?" + q.Encode()
}
