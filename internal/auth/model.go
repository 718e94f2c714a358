package auth

import (
	"strings"
)

// Credential represents one registered identity as held by a CredentialStore.
type Credential struct {
	Username      string
	PasswordHash  string
	Company       string
	DashboardPath string
	Label         string
	ProjectID     string
	Active        bool
}

// Identity is the Credential minus its secret. It is stored in the request
// context after a session has been verified and must be treated as read-only.
type Identity struct {
	Username  string `json:"username"`
	Company   string `json:"company"`
	Dashboard string `json:"dashboard"`
	Label     string `json:"label"`
	ProjectID string `json:"projectId,omitempty"`
}

// Identity returns the public view of the credential.
func (c *Credential) Identity() *Identity {
	return &Identity{
		Username:  c.Username,
		Company:   c.Company,
		Dashboard: c.DashboardPath,
		Label:     c.Label,
		ProjectID: c.ProjectID,
	}
}

// Normalize trims every field and derives the defaults for company, dashboard
// path and label. It returns ErrMalformedCredential when the record has no
// username or when no company can be derived.
func (c *Credential) Normalize() error {
	c.Username = strings.TrimSpace(c.Username)
	c.Company = strings.TrimSpace(c.Company)
	c.DashboardPath = strings.TrimSpace(c.DashboardPath)
	c.Label = strings.TrimSpace(c.Label)
	c.ProjectID = strings.TrimSpace(c.ProjectID)

	if c.Username == "" {
		return ErrMalformedCredential
	}

	if c.Company == "" {
		c.Company = lastSegment(c.DashboardPath)
	}
	if c.Company == "" {
		return ErrMalformedCredential
	}

	if c.DashboardPath == "" {
		c.DashboardPath = "/dashboard/" + c.Company
	}
	c.DashboardPath = NormalizePath(c.DashboardPath)

	if c.Label == "" {
		c.Label = c.Company
	}
	return nil
}

// NormalizePath makes p absolute and strips trailing slashes, keeping "/" as is.
func NormalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func lastSegment(p string) string {
	segments := strings.Split(p, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(segments[i]); s != "" {
			return s
		}
	}
	return ""
}
