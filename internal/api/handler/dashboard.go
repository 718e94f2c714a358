package handler

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/daap14/tenantgate/internal/api/middleware"
	"github.com/daap14/tenantgate/internal/api/response"
	"github.com/daap14/tenantgate/internal/auth"
	"github.com/daap14/tenantgate/internal/tenant"
)

type tenantResponse struct {
	Company   string `json:"company"`
	Label     string `json:"label"`
	Dashboard string `json:"dashboard"`
	ProjectID string `json:"projectId,omitempty"`
}

func newTenantResponse(c *auth.Credential) tenantResponse {
	return tenantResponse{
		Company:   c.Company,
		Label:     c.Label,
		Dashboard: c.DashboardPath,
		ProjectID: c.ProjectID,
	}
}

// DashboardHandler resolves tenant dashboard routes. Rendering the dashboard
// itself is left to downstream collaborators; this handler returns the
// tenant the route resolved to.
type DashboardHandler struct {
	resolver     *tenant.Resolver
	authRequired func() bool
	loginPath    string
}

// NewDashboardHandler creates a new DashboardHandler. authRequired reports
// whether requests must carry a session; tenant records are served without
// one only while it returns false.
func NewDashboardHandler(resolver *tenant.Resolver, authRequired func() bool, loginPath string) *DashboardHandler {
	return &DashboardHandler{
		resolver:     resolver,
		authRequired: authRequired,
		loginPath:    loginPath,
	}
}

// redirectToLogin sends a request without a session to the login page. The
// gate lets some tenant paths through unchecked, such as slugs that end in
// a static-asset extension.
func (h *DashboardHandler) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Path
	if r.URL.RawQuery != "" {
		next += "?" + r.URL.RawQuery
	}
	q := url.Values{"next": {next}}
	http.Redirect(w, r, h.loginPath+"?"+q.Encode(), http.StatusFound)
}

// Alias handles GET /dashboard. With a session the gate has already
// redirected; this only runs when authentication is off.
func (h *DashboardHandler) Alias(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())
	if identity == nil && h.authRequired() {
		h.redirectToLogin(w, r)
		return
	}
	if identity == nil {
		response.Err(w, http.StatusNotFound, "NO_SESSION", "No tenant is associated with this request", requestID)
		return
	}

	target := h.resolver.LandingPathFor(identity)
	if target == r.URL.Path {
		response.Success(w, http.StatusOK, identity, requestID)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Tenant handles GET /dashboard/{company}.
func (h *DashboardHandler) Tenant(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	slug := chi.URLParam(r, "company")

	identity := middleware.GetIdentity(r.Context())
	if identity == nil && h.authRequired() {
		h.redirectToLogin(w, r)
		return
	}
	if identity == nil {
		c, err := h.resolver.TenantFor(r.Context(), slug)
		if err != nil {
			response.Err(w, http.StatusNotFound, "TENANT_NOT_FOUND", "Tenant not found", requestID)
			return
		}
		response.Success(w, http.StatusOK, newTenantResponse(c), requestID)
		return
	}

	access, c := h.resolver.Authorize(r.Context(), identity, slug)
	switch access {
	case tenant.AccessNotFound:
		response.Err(w, http.StatusNotFound, "TENANT_NOT_FOUND", "Tenant not found", requestID)
	case tenant.AccessForeign:
		target := h.resolver.LandingPathFor(identity)
		if target == r.URL.Path {
			response.Err(w, http.StatusForbidden, "FORBIDDEN", "Tenant belongs to another company", requestID)
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
	default:
		response.Success(w, http.StatusOK, newTenantResponse(c), requestID)
	}
}

// Me handles GET /api/me.
func (h *DashboardHandler) Me(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Err(w, http.StatusNotFound, "NO_SESSION", "No session is associated with this request", requestID)
		return
	}
	response.Success(w, http.StatusOK, identity, requestID)
}
