package session

import (
	"net/http"
	"time"
)

// CookieName is the name of the session cookie.
const CookieName = "tenantgate_session"

// NewCookie builds the session cookie carrying t.
func NewCookie(t *Token, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    t.Value,
		Path:     "/",
		Expires:  t.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie builds a cookie that removes the session from the client.
func ClearCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// FromRequest returns the session cookie value, or "" when absent.
func FromRequest(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
