package cookie

import (
	"net/http"
	"time"

	"github.com/dgellow/gsession/internal/envutil"
	"github.com/dgellow/gsession/internal/log"
)

// Cookie names shared by authd and calendar-front
const (
	SessionCookie      = "__streamlit_session"
	AccessTokenCookie  = "__streamlit_access_token"
	RefreshTokenCookie = "__streamlit_refresh_token"
	IDTokenCookie      = "__streamlit_id_token"
	CSRFCookie         = "csrf_token"
)

// SessionCookieNames lists the cookies written after a successful login
var SessionCookieNames = []string{SessionCookie, AccessTokenCookie, RefreshTokenCookie, IDTokenCookie}

// CookieSet is the value of each session cookie
type CookieSet struct {
	Session      string
	AccessToken  string
	RefreshToken string
	IDToken      string
}

func (c CookieSet) values() []string {
	return []string{c.Session, c.AccessToken, c.RefreshToken, c.IDToken}
}

// Options controls the attributes shared by the session cookies
type Options struct {
	Domain string
	TTL    time.Duration
	Secure bool
}

// NewOptions returns options for domain and ttl. Secure is on unless running
// in development mode.
func NewOptions(domain string, ttl time.Duration) Options {
	return Options{Domain: domain, TTL: ttl, Secure: !envutil.IsDev()}
}

// SetSessionCookies writes the four session cookies with one shared expiry.
// The refresh token cookie is written even when empty.
func SetSessionCookies(w http.ResponseWriter, set CookieSet, opts Options, now time.Time) {
	expires := now.Add(opts.TTL)
	for i, value := range set.values() {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookieNames[i],
			Value:    value,
			Domain:   opts.Domain,
			Path:     "/",
			Expires:  expires,
			Secure:   opts.Secure,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	log.LogTraceWithFields("cookie", "Session cookies set", map[string]any{
		"domain":  opts.Domain,
		"expires": expires.UTC().Format(time.RFC3339),
		"secure":  opts.Secure,
	})
}

// ReadSessionCookies returns the session cookie values. ok is false when the
// session cookie itself is absent; the token fields may still be empty.
func ReadSessionCookies(r *http.Request) (set CookieSet, ok bool) {
	session, err := Get(r, SessionCookie)
	if err != nil || session == "" {
		return CookieSet{}, false
	}
	set.Session = session
	set.AccessToken, _ = Get(r, AccessTokenCookie)
	set.RefreshToken, _ = Get(r, RefreshTokenCookie)
	set.IDToken, _ = Get(r, IDTokenCookie)
	return set, true
}

// ClearSessionCookies expires the four session cookies on the configured domain
func ClearSessionCookies(w http.ResponseWriter, opts Options) {
	for _, name := range SessionCookieNames {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Domain:   opts.Domain,
			Path:     "/",
			MaxAge:   -1,
			Secure:   opts.Secure,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	log.LogTraceWithFields("cookie", "Session cookies cleared", nil)
}

// SetCSRF sets the CSRF token cookie used by the login and logout forms
func SetCSRF(w http.ResponseWriter, value string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int((24 * time.Hour).Seconds()),
	})
}

// Get retrieves a cookie value from the request
func Get(r *http.Request, name string) (string, error) {
	cookie, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}
