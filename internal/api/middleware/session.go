package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/daap14/tenantgate/internal/api/response"
	"github.com/daap14/tenantgate/internal/auth"
	"github.com/daap14/tenantgate/internal/gate"
	"github.com/daap14/tenantgate/internal/observability"
	"github.com/daap14/tenantgate/internal/session"
)

const identityKey contextKey = "identity"

// Session is middleware that runs every request through the gate. Passing
// requests carry the verified Identity, if any, in their context.
func Session(g *gate.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Decide(r.Context(), gate.Request{
				Path:     r.URL.Path,
				RawQuery: r.URL.RawQuery,
				Cookie:   session.FromRequest(r),
			})

			observability.GateDecisionsTotal.WithLabelValues(d.Action.String()).Inc()
			if d.Inspected {
				observability.TokenVerificationsTotal.WithLabelValues(tokenResult(d.Err)).Inc()
			}

			switch d.Action {
			case gate.Redirect:
				http.Redirect(w, r, d.Location, http.StatusFound)
			case gate.Reject:
				slog.Debug("session rejected", "path", r.URL.Path, "reason", d.Err)
				response.Err(w, d.Status, "UNAUTHORIZED", d.Body.Error, GetRequestID(r.Context()))
			default:
				ctx := r.Context()
				if d.Identity != nil {
					ctx = WithIdentity(ctx, d.Identity)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentity retrieves the authenticated Identity from the request context.
func GetIdentity(ctx context.Context) *auth.Identity {
	if id, ok := ctx.Value(identityKey).(*auth.Identity); ok {
		return id
	}
	return nil
}

func tokenResult(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, gate.ErrNoSession):
		return "missing"
	case errors.Is(err, session.ErrMalformedToken):
		return "malformed"
	case errors.Is(err, session.ErrTokenExpired):
		return "expired"
	case errors.Is(err, session.ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, session.ErrUnknownSubject):
		return "unknown_subject"
	default:
		return "error"
	}
}
