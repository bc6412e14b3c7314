package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/givehub-core/internal/infrastructure/config"
	"github.com/nerrad567/givehub-core/internal/session"
)

const (
	defaultSessionCookie = "givehub_session"

	// xsrfCookie is readable by scripts so the console can mirror it in X-XSRF-TOKEN.
	xsrfCookie = "XSRF-TOKEN"
)

// cookieJar writes and reads the web session cookies.
type cookieJar struct {
	name   string
	secure bool
	domain string
}

func newCookieJar(cfg config.SessionConfig) cookieJar {
	name := cfg.CookieName
	if name == "" {
		name = defaultSessionCookie
	}
	return cookieJar{name: name, secure: cfg.Secure, domain: cfg.Domain}
}

// sessionID returns the session ID presented by the browser, if any.
func (j cookieJar) sessionID(r *http.Request) string {
	c, err := r.Cookie(j.name)
	if err != nil {
		return ""
	}
	return c.Value
}

// set hands the session and its CSRF token back to the browser.
func (j cookieJar) set(w http.ResponseWriter, s *session.Session) {
	maxAge := int(time.Until(s.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}

	http.SetCookie(w, &http.Cookie{
		Name:     j.name,
		Value:    s.ID,
		Path:     "/",
		Domain:   j.domain,
		MaxAge:   maxAge,
		Secure:   j.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     xsrfCookie,
		Value:    s.CSRFToken,
		Path:     "/",
		Domain:   j.domain,
		MaxAge:   maxAge,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
