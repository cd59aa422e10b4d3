package frontend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgellow/gsession/internal/calendar"
	"github.com/dgellow/gsession/internal/client"
	"github.com/dgellow/gsession/internal/cookie"
	"github.com/dgellow/gsession/internal/crypto"
	"github.com/dgellow/gsession/internal/idp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeBackend struct {
	mu      sync.Mutex
	session *client.SessionResponse
	err     error
	deleted []string
}

func (b *fakeBackend) CreateSession(context.Context) (*client.SessionResponse, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.session, nil
}

func (b *fakeBackend) DeleteSession(_ context.Context, state string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, state)
	return b.err
}

type fakeVerifier struct {
	claims *idp.Claims
	err    error
	calls  int
}

func (v *fakeVerifier) Verify(_ context.Context, raw string) (*idp.Claims, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return v.claims, nil
}

type listResult struct {
	events []calendar.Event
	err    error
}

type fakeLister struct {
	mu      sync.Mutex
	results []listResult
	tokens  []string
}

func (l *fakeLister) ListUpcoming(_ context.Context, ts oauth2.TokenSource, _ time.Time) ([]calendar.Event, error) {
	tok, err := ts.Token()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens = append(l.tokens, tok.AccessToken)
	if len(l.results) == 0 {
		return nil, nil
	}
	r := l.results[0]
	if len(l.results) > 1 {
		l.results = l.results[1:]
	}
	return r.events, r.err
}

type testEnv struct {
	handlers *Handlers
	backend  *fakeBackend
	verifier *fakeVerifier
	lister   *fakeLister
	mux      *http.ServeMux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		backend: &fakeBackend{session: &client.SessionResponse{
			State:   "abc",
			AuthURL: "https://accounts.google.com/o/oauth2/auth?state=abc",
		}},
		verifier: &fakeVerifier{claims: &idp.Claims{GivenName: "Ada", Picture: "https://lh3.googleusercontent.com/a/ada"}},
		lister:   &fakeLister{},
		mux:      http.NewServeMux(),
	}
	env.handlers = NewHandlers(env.backend, env.verifier, env.lister,
		crypto.NewCSRFProtection([]byte("test-csrf-key-0123456789abcdef!!"), time.Hour),
		Config{Cookies: cookie.Options{Domain: "example.com", TTL: 15 * time.Minute, Secure: true}},
	)
	env.handlers.RegisterRoutes(env.mux)
	return env
}

func sessionCookies(access, refresh, id string) []*http.Cookie {
	cookies := []*http.Cookie{{Name: cookie.SessionCookie, Value: "abc"}}
	if access != "" {
		cookies = append(cookies, &http.Cookie{Name: cookie.AccessTokenCookie, Value: access})
	}
	if refresh != "" {
		cookies = append(cookies, &http.Cookie{Name: cookie.RefreshTokenCookie, Value: refresh})
	}
	if id != "" {
		cookies = append(cookies, &http.Cookie{Name: cookie.IDTokenCookie, Value: id})
	}
	return cookies
}

func (e *testEnv) get(cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func (e *testEnv) post(t *testing.T, path string, withCSRF bool, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	if withCSRF {
		token, err := e.handlers.csrf.Generate()
		require.NoError(t, err)
		form.Set("csrf_token", token)
		cookies = append(cookies, &http.Cookie{Name: cookie.CSRFCookie, Value: token})
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func TestHome_LoggedOut(t *testing.T) {
	env := newTestEnv(t)

	w := env.get()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Sign in with Google")
	assert.Contains(t, w.Body.String(), `name="csrf_token"`)
	assert.Zero(t, env.verifier.calls)
	assert.Empty(t, env.lister.tokens)

	var csrfSet bool
	for _, c := range w.Result().Cookies() {
		csrfSet = csrfSet || c.Name == cookie.CSRFCookie
	}
	assert.True(t, csrfSet)
}

func TestHome_TokenCookiesOnlyIsLoggedOut(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(
		&http.Cookie{Name: cookie.AccessTokenCookie, Value: "at"},
		&http.Cookie{Name: cookie.IDTokenCookie, Value: "idt"},
	)
	assert.Contains(t, w.Body.String(), "Sign in with Google")
	assert.NotContains(t, w.Body.String(), "expired")
	assert.Empty(t, env.lister.tokens)
}

func TestHome_SessionWithoutTokens(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(sessionCookies("", "", "")...)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Your session has expired")
	assert.Contains(t, w.Body.String(), "Sign in with Google")
	assert.Zero(t, env.verifier.calls)
}

func TestHome_SignedIn(t *testing.T) {
	env := newTestEnv(t)
	env.lister.results = []listResult{{events: []calendar.Event{
		{Start: "2026-05-04T10:00:00Z", Summary: "Standup"},
		{Start: "2026-05-05", Summary: "Holiday"},
	}}}

	w := env.get(sessionCookies("ya29.at", "", "raw.id")...)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "Hello Ada")
	assert.Contains(t, body, `src="https://lh3.googleusercontent.com/a/ada"`)
	assert.Contains(t, body, "2026-05-04T10:00:00Z</span> - Standup")
	assert.Contains(t, body, "2026-05-05</span> - Holiday")
	assert.Contains(t, body, `action="/logout"`)
	assert.Equal(t, []string{"ya29.at"}, env.lister.tokens)
	assert.Equal(t, 1, env.verifier.calls)
}

func TestHome_NoEvents(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(sessionCookies("at", "", "idt")...)
	assert.Contains(t, w.Body.String(), "No upcoming events found")
}

func TestHome_CalendarAPIError(t *testing.T) {
	env := newTestEnv(t)
	env.lister.results = []listResult{{err: &calendar.APIError{Code: 403, Message: "Calendar usage limits exceeded."}}}

	w := env.get(sessionCookies("at", "", "idt")...)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "An error occurred: Calendar usage limits exceeded.")
	assert.Contains(t, w.Body.String(), "Hello Ada")
}

func TestHome_CalendarTransportError(t *testing.T) {
	env := newTestEnv(t)
	env.lister.results = []listResult{{err: errors.New("dial tcp: refused")}}

	w := env.get(sessionCookies("at", "", "idt")...)
	assert.Contains(t, w.Body.String(), "An error occurred: could not reach Google Calendar")
	assert.NotContains(t, w.Body.String(), "dial tcp")
}

func TestHome_InvalidIDToken(t *testing.T) {
	env := newTestEnv(t)
	env.verifier.err = errors.New("token expired")

	w := env.get(sessionCookies("at", "", "idt")...)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "We could not verify your sign-in")
	assert.NotContains(t, w.Body.String(), "Hello")
}

func TestHome_RefreshesRejectedAccessToken(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "1//refresh", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"ya29.fresh","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	env := newTestEnv(t)
	env.handlers.cfg.OAuth = &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenSrv.URL, AuthStyle: oauth2.AuthStyleInParams},
	}
	env.lister.results = []listResult{
		{err: &calendar.APIError{Code: http.StatusUnauthorized, Message: "Invalid Credentials"}},
		{events: []calendar.Event{{Start: "2026-05-04", Summary: "Retro"}}},
	}

	w := env.get(sessionCookies("ya29.stale", "1//refresh", "idt")...)
	assert.Contains(t, w.Body.String(), "Retro")
	assert.Equal(t, []string{"ya29.stale", "ya29.fresh"}, env.lister.tokens)
}

func TestHome_NoRefreshWithoutClientSecret(t *testing.T) {
	env := newTestEnv(t)
	env.lister.results = []listResult{{err: &calendar.APIError{Code: http.StatusUnauthorized, Message: "Invalid Credentials"}}}

	w := env.get(sessionCookies("ya29.stale", "1//refresh", "idt")...)
	assert.Contains(t, w.Body.String(), "An error occurred: Invalid Credentials")
	assert.Len(t, env.lister.tokens, 1)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.post(t, "/login", true)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "https://accounts.google.com/o/oauth2/auth?state=abc", w.Header().Get("Location"))
}

func TestLogin_CSRF(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing token", func(t *testing.T) {
		w := env.post(t, "/login", false)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("form token without cookie", func(t *testing.T) {
		token, err := env.handlers.csrf.Generate()
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("csrf_token="+url.QueryEscape(token)))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		env.mux.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("forged token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("csrf_token=a.1.b"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(&http.Cookie{Name: cookie.CSRFCookie, Value: "a.1.b"})
		w := httptest.NewRecorder()
		env.mux.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestLogin_BackendDown(t *testing.T) {
	env := newTestEnv(t)
	env.backend.err = errors.New("connection refused")

	w := env.post(t, "/login", true)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Sign-in is unavailable")
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)

	w := env.post(t, "/logout", true, sessionCookies("at", "rt", "idt")...)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Equal(t, []string{"abc"}, env.backend.deleted)

	cleared := map[string]bool{}
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared[c.Name] = true
			assert.Equal(t, "example.com", c.Domain)
		}
	}
	for _, name := range cookie.SessionCookieNames {
		assert.True(t, cleared[name], "%s should be cleared", name)
	}
}

func TestLogout_BackendFailureStillClears(t *testing.T) {
	env := newTestEnv(t)
	env.backend.err = errors.New("down")

	w := env.post(t, "/logout", true, sessionCookies("at", "rt", "idt")...)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Len(t, w.Result().Cookies(), 4)
}
