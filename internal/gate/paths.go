package gate

import (
	"path"
	"strings"
)

// Class is the category a request path falls into.
type Class int

const (
	// ClassProtected paths require a valid session and redirect to login without one.
	ClassProtected Class = iota
	// ClassPublic paths are served without inspecting the session.
	ClassPublic
	// ClassAPI paths require a valid session and are rejected with 401 without one.
	ClassAPI
)

// Default routes.
const (
	DefaultLoginPath      = "/login"
	DefaultDashboardAlias = "/dashboard"
	DefaultAPIPrefix      = "/api/"
	DefaultReturnParam    = "next"
)

// DefaultPublicPaths are served without a session.
var DefaultPublicPaths = []string{
	DefaultLoginPath,
	"/logout",
	"/health",
	"/favicon.ico",
	"/robots.txt",
	"/manifest.json",
	"/site.webmanifest",
	"/apple-touch-icon.png",
}

// DefaultPublicPrefixes hold build and static assets.
var DefaultPublicPrefixes = []string{
	"/_next/",
	"/static/",
	"/assets/",
	"/images/",
}

// DefaultPublicExtensions are static file types served without a session
// outside the API prefix.
var DefaultPublicExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".webp",
	".txt", ".css", ".js", ".map", ".woff", ".woff2",
}

// Paths holds the classification tables and fixed routes consulted by the Gate.
type Paths struct {
	Login          string
	DashboardAlias string
	APIPrefix      string
	ReturnParam    string

	public     map[string]bool
	prefixes   []string
	extensions map[string]bool
}

// DefaultPaths returns the default classification tables.
func DefaultPaths() Paths {
	p := Paths{
		Login:          DefaultLoginPath,
		DashboardAlias: DefaultDashboardAlias,
		APIPrefix:      DefaultAPIPrefix,
		ReturnParam:    DefaultReturnParam,
		public:         make(map[string]bool),
		extensions:     make(map[string]bool),
	}
	p = p.WithPublicPaths(DefaultPublicPaths...)
	p = p.WithPublicPrefixes(DefaultPublicPrefixes...)
	return p.WithPublicExtensions(DefaultPublicExtensions...)
}

// WithPublicPaths returns a copy of p with extra exact-match public paths.
func (p Paths) WithPublicPaths(paths ...string) Paths {
	public := make(map[string]bool, len(p.public)+len(paths))
	for k := range p.public {
		public[k] = true
	}
	for _, v := range paths {
		if v = strings.TrimSpace(v); v != "" {
			public[cleanPath(v)] = true
		}
	}
	p.public = public
	return p
}

// WithPublicPrefixes returns a copy of p with extra public prefixes.
func (p Paths) WithPublicPrefixes(prefixes ...string) Paths {
	out := append([]string(nil), p.prefixes...)
	for _, v := range prefixes {
		if v = strings.TrimSpace(v); v != "" {
			if !strings.HasPrefix(v, "/") {
				v = "/" + v
			}
			out = append(out, v)
		}
	}
	p.prefixes = out
	return p
}

// WithPublicExtensions returns a copy of p with extra public file extensions.
func (p Paths) WithPublicExtensions(exts ...string) Paths {
	extensions := make(map[string]bool, len(p.extensions)+len(exts))
	for k := range p.extensions {
		extensions[k] = true
	}
	for _, v := range exts {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			if !strings.HasPrefix(v, ".") {
				v = "." + v
			}
			extensions[v] = true
		}
	}
	p.extensions = extensions
	return p
}

// Classify returns the class of the request path.
func (p Paths) Classify(requestPath string) Class {
	clean := cleanPath(requestPath)

	if p.public[clean] {
		return ClassPublic
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(clean, prefix) {
			return ClassPublic
		}
	}
	if p.isAPI(clean) {
		return ClassAPI
	}
	if p.extensions[strings.ToLower(path.Ext(clean))] {
		return ClassPublic
	}
	return ClassProtected
}

func (p Paths) isAPI(clean string) bool {
	prefix := strings.TrimSuffix(p.APIPrefix, "/")
	return prefix != "" && (clean == prefix || strings.HasPrefix(clean, prefix+"/"))
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
