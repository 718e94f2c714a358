package handler

import (
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/daap14/tenantgate/internal/api/middleware"
	"github.com/daap14/tenantgate/internal/api/response"
	"github.com/daap14/tenantgate/internal/auth"
	"github.com/daap14/tenantgate/internal/observability"
	"github.com/daap14/tenantgate/internal/session"
	"github.com/daap14/tenantgate/internal/tenant"
)

var loginPage = template.Must(template.New("login").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Sign in</title></head>
<body>
<form method="post" action="{{.Action}}">
{{if .Failed}}<p role="alert">Invalid username or password.</p>{{end}}
<input type="hidden" name="next" value="{{.Next}}">
<label>Username <input name="username" autocomplete="username" required></label>
<label>Password <input name="password" type="password" autocomplete="current-password" required></label>
<button type="submit">Sign in</button>
</form>
</body>
</html>
`))

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Next     string `json:"next"`
}

// LoginHandler serves the login form, verifies credentials and issues session cookies.
type LoginHandler struct {
	authService   *auth.Service
	codec         *session.Codec
	resolver      *tenant.Resolver
	loginPath     string
	secureCookies bool
}

// NewLoginHandler creates a new LoginHandler.
func NewLoginHandler(authService *auth.Service, codec *session.Codec, resolver *tenant.Resolver, loginPath string, secureCookies bool) *LoginHandler {
	return &LoginHandler{
		authService:   authService,
		codec:         codec,
		resolver:      resolver,
		loginPath:     loginPath,
		secureCookies: secureCookies,
	}
}

// Page handles GET /login.
func (h *LoginHandler) Page(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Action string
		Next   string
		Failed bool
	}{
		Action: h.loginPath,
		Next:   SafeReturnPath(r.URL.Query().Get("next"), h.loginPath),
		Failed: r.URL.Query().Get("error") != "",
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := loginPage.Execute(w, data); err != nil {
		slog.Error("failed to render login page", "error", err)
	}
}

// Submit handles POST /login with either a form or a JSON body.
func (h *LoginHandler) Submit(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	asJSON := isJSON(r)

	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	var req loginRequest
	if asJSON {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			response.Err(w, http.StatusBadRequest, "INVALID_FORM", "Request body must be a valid form", requestID)
			return
		}
		req = loginRequest{
			Username: r.PostForm.Get("username"),
			Password: r.PostForm.Get("password"),
			Next:     r.PostForm.Get("next"),
		}
	}

	if !h.codec.Configured() {
		observability.LoginAttemptsTotal.WithLabelValues("unconfigured").Inc()
		response.Err(w, http.StatusServiceUnavailable, "AUTH_NOT_CONFIGURED", "Authentication is not configured", requestID)
		return
	}

	identity, err := h.authService.Verify(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		observability.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		slog.Info("login failed", "requestId", requestID)
		if asJSON {
			response.Err(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", requestID)
			return
		}
		q := url.Values{"error": {"1"}}
		if next := SafeReturnPath(req.Next, h.loginPath); next != "" {
			q.Set("next", next)
		}
		http.Redirect(w, r, h.loginPath+"?"+q.Encode(), http.StatusSeeOther)
		return
	}

	token, err := h.codec.Issue(identity.Username)
	if err != nil {
		if errors.Is(err, session.ErrNotConfigured) {
			observability.LoginAttemptsTotal.WithLabelValues("unconfigured").Inc()
			response.Err(w, http.StatusServiceUnavailable, "AUTH_NOT_CONFIGURED", "Authentication is not configured", requestID)
			return
		}
		slog.Error("failed to issue session token", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create session", requestID)
		return
	}

	observability.LoginAttemptsTotal.WithLabelValues("success").Inc()
	slog.Info("login succeeded", "username", identity.Username, "company", identity.Company, "requestId", requestID)
	http.SetCookie(w, session.NewCookie(token, h.secureCookies))

	if asJSON {
		response.Success(w, http.StatusOK, identity, requestID)
		return
	}

	target := SafeReturnPath(req.Next, h.loginPath)
	if target == "" {
		target = h.resolver.LandingPathFor(identity)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Logout handles GET and POST /logout. Only the client's cookie is cleared;
// the token itself stays valid until it expires.
func (h *LoginHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, session.ClearCookie(h.secureCookies))
	if isJSON(r) {
		response.NoContent(w)
		return
	}
	http.Redirect(w, r, h.loginPath, http.StatusSeeOther)
}

// SafeReturnPath returns next if it is a local absolute path other than the
// login page, and "" otherwise.
func SafeReturnPath(next, loginPath string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.ContainsAny(next, "\\\r\n") {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	if u.Path == loginPath {
		return ""
	}
	return next
}

func isJSON(r *http.Request) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil && mediaType == "application/json" {
			return true
		}
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
