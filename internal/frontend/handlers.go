// Package frontend serves the calendar page. It never talks to Google about
// identity on its own: the session comes from the cookies authd sets.
package frontend

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dgellow/gsession/internal/calendar"
	"github.com/dgellow/gsession/internal/client"
	"github.com/dgellow/gsession/internal/cookie"
	"github.com/dgellow/gsession/internal/crypto"
	"github.com/dgellow/gsession/internal/idp"
	jsonwriter "github.com/dgellow/gsession/internal/json"
	"github.com/dgellow/gsession/internal/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

const (
	msgSessionExpired = "Your session has expired. Please sign in again."
	msgVerifyFailed   = "We could not verify your sign-in. Please sign in again."
	msgBackendDown    = "Sign-in is unavailable right now. Please try again."
)

// SessionBackend is the part of authd the front-end depends on
type SessionBackend interface {
	CreateSession(ctx context.Context) (*client.SessionResponse, error)
	DeleteSession(ctx context.Context, state string) error
}

var _ SessionBackend = (*client.BackendClient)(nil)

// Config holds the front-end settings that are not collaborators
type Config struct {
	Cookies cookie.Options
	// OAuth enables refreshing an expired access token. Nil disables it.
	OAuth *oauth2.Config
}

// Handlers serves the login, home and logout pages
type Handlers struct {
	backend  SessionBackend
	verifier idp.IDTokenVerifier
	lister   calendar.Lister
	csrf     crypto.CSRFProtection
	cfg      Config
	now      func() time.Time
}

// NewHandlers creates the front-end handlers
func NewHandlers(backend SessionBackend, verifier idp.IDTokenVerifier, lister calendar.Lister, csrf crypto.CSRFProtection, cfg Config) *Handlers {
	return &Handlers{
		backend:  backend,
		verifier: verifier,
		lister:   lister,
		csrf:     csrf,
		cfg:      cfg,
		now:      time.Now,
	}
}

// RegisterRoutes mounts the handlers on mux
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.HomeHandler)
	mux.HandleFunc("POST /login", h.LoginHandler)
	mux.HandleFunc("POST /logout", h.LogoutHandler)
}

// HomeHandler shows the login page to anonymous visitors and the event list
// to signed-in users.
func (h *Handlers) HomeHandler(w http.ResponseWriter, r *http.Request) {
	set, ok := cookie.ReadSessionCookies(r)
	if !ok {
		h.renderLogin(w, http.StatusOK, "")
		return
	}
	if set.AccessToken == "" || set.IDToken == "" {
		log.LogDebugWithFields("frontend", "Session cookie without tokens", map[string]any{
			"state": set.Session,
		})
		h.renderLogin(w, http.StatusOK, msgSessionExpired)
		return
	}

	var (
		claims  *idp.Claims
		events  []calendar.Event
		listErr error
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		claims, err = h.verifier.Verify(ctx, set.IDToken)
		return err
	})
	g.Go(func() error {
		events, listErr = h.listEvents(ctx, set)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.LogWarnWithFields("frontend", "ID token cookie rejected", map[string]any{
			"state": set.Session,
			"error": err.Error(),
		})
		h.renderLogin(w, http.StatusOK, msgVerifyFailed)
		return
	}

	data := HomePageData{
		GivenName: claims.GivenName,
		Picture:   claims.Picture,
		Events:    events,
	}
	if listErr != nil {
		var apiErr *calendar.APIError
		if errors.As(listErr, &apiErr) {
			data.Error = apiErr.Message
		} else {
			log.LogErrorWithFields("frontend", "Listing events failed", map[string]any{
				"error": listErr.Error(),
			})
			data.Error = "could not reach Google Calendar"
		}
	}

	token, err := h.issueCSRF(w)
	if err != nil {
		jsonwriter.WriteInternalServerError(w, "Failed to render page")
		return
	}
	data.CSRFToken = token

	render(w, http.StatusOK, homePageTemplate, data)
}

// listEvents calls the Calendar API with the access token cookie. When the
// token was rejected and a refresh token is available, it refreshes once and
// retries.
func (h *Handlers) listEvents(ctx context.Context, set cookie.CookieSet) ([]calendar.Event, error) {
	now := h.now()
	static := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: set.AccessToken, TokenType: "Bearer"})

	events, err := h.lister.ListUpcoming(ctx, static, now)

	var apiErr *calendar.APIError
	if err == nil || !errors.As(err, &apiErr) || apiErr.Code != http.StatusUnauthorized {
		return events, err
	}
	if h.cfg.OAuth == nil || set.RefreshToken == "" {
		return nil, err
	}

	log.LogDebugWithFields("frontend", "Access token rejected, refreshing", map[string]any{
		"state": set.Session,
	})
	refreshing := h.cfg.OAuth.TokenSource(ctx, &oauth2.Token{RefreshToken: set.RefreshToken})
	return h.lister.ListUpcoming(ctx, refreshing, now)
}

// LoginHandler obtains a fresh authorization from authd and sends the
// browser to Google.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validCSRF(r) {
		jsonwriter.WriteForbidden(w, "Invalid CSRF token")
		return
	}

	session, err := h.backend.CreateSession(r.Context())
	if err != nil {
		log.LogErrorWithFields("frontend", "Failed to create session", map[string]any{
			"error": err.Error(),
		})
		h.renderLogin(w, http.StatusBadGateway, msgBackendDown)
		return
	}

	http.Redirect(w, r, session.AuthURL, http.StatusSeeOther)
}

// LogoutHandler forgets the session on authd and clears the cookies
func (h *Handlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validCSRF(r) {
		jsonwriter.WriteForbidden(w, "Invalid CSRF token")
		return
	}

	if set, ok := cookie.ReadSessionCookies(r); ok {
		if err := h.backend.DeleteSession(r.Context(), set.Session); err != nil {
			log.LogWarnWithFields("frontend", "Failed to delete backend session", map[string]any{
				"state": set.Session,
				"error": err.Error(),
			})
		}
	}

	cookie.ClearSessionCookies(w, h.cfg.Cookies)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handlers) renderLogin(w http.ResponseWriter, status int, message string) {
	token, err := h.issueCSRF(w)
	if err != nil {
		jsonwriter.WriteInternalServerError(w, "Failed to render page")
		return
	}
	render(w, status, loginPageTemplate, LoginPageData{CSRFToken: token, Message: message})
}

// issueCSRF generates a token and pins it to the browser with a cookie
func (h *Handlers) issueCSRF(w http.ResponseWriter) (string, error) {
	token, err := h.csrf.Generate()
	if err != nil {
		log.LogError("Failed to generate CSRF token: %v", err)
		return "", err
	}
	cookie.SetCSRF(w, token, h.cfg.Cookies.Secure)
	return token, nil
}

// validCSRF requires a signed, unexpired form token matching the CSRF cookie
func (h *Handlers) validCSRF(r *http.Request) bool {
	cookieToken, err := cookie.Get(r, cookie.CSRFCookie)
	if err != nil {
		return false
	}
	return h.csrf.Check(r.PostFormValue("csrf_token"), cookieToken)
}
