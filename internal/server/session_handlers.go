package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dgellow/gsession/internal/cookie"
	"github.com/dgellow/gsession/internal/idp"
	jsonwriter "github.com/dgellow/gsession/internal/json"
	"github.com/dgellow/gsession/internal/log"
	"github.com/dgellow/gsession/internal/metrics"
	"github.com/dgellow/gsession/internal/storage"
)

const exchangeTimeout = 30 * time.Second

// SessionResponse is the body of POST /session
type SessionResponse struct {
	State   string `json:"state"`
	AuthURL string `json:"auth_url"`
}

// SessionConfig holds the knobs of the session handlers
type SessionConfig struct {
	FrontendURL    string
	AllowedDomains []string
	Cookies        cookie.Options
	PendingTTL     time.Duration
	SessionTTL     time.Duration
}

// SessionHandlers implements the authd endpoints: session creation, the
// OAuth callback and logout.
type SessionHandlers struct {
	provider idp.Provider
	verifier idp.IDTokenVerifier
	store    storage.Store
	cfg      SessionConfig
	now      func() time.Time
}

// NewSessionHandlers creates session handlers with dependency injection
func NewSessionHandlers(provider idp.Provider, verifier idp.IDTokenVerifier, store storage.Store, cfg SessionConfig) *SessionHandlers {
	return &SessionHandlers{
		provider: provider,
		verifier: verifier,
		store:    store,
		cfg:      cfg,
		now:      time.Now,
	}
}

// RegisterRoutes mounts the handlers on mux
func (h *SessionHandlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.RootHandler)
	mux.HandleFunc("POST /session", h.CreateSessionHandler)
	mux.HandleFunc("DELETE /session/{state}", h.DeleteSessionHandler)
	mux.HandleFunc("GET /oauth2callback", h.CallbackHandler)
}

// RootHandler answers with a fixed greeting
func (h *SessionHandlers) RootHandler(w http.ResponseWriter, r *http.Request) {
	_ = jsonwriter.Write(w, map[string]string{"Hello": "World"})
}

// CreateSessionHandler starts a new authorization. The returned state keys
// the pending record until the callback arrives.
func (h *SessionHandlers) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	state, authURL, err := h.provider.NewAuthorization()
	if err != nil {
		log.LogError("Failed to create authorization: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to create session")
		return
	}

	now := h.now()
	session := &storage.Session{
		State:     state,
		AuthURL:   authURL,
		CreatedAt: now,
		ExpiresAt: now.Add(h.cfg.PendingTTL),
	}
	if err := h.store.Put(r.Context(), session); err != nil {
		log.LogErrorWithFields("session", "Failed to store pending session", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to create session")
		return
	}

	metrics.SessionsCreated.Inc()
	log.LogDebugWithFields("session", "Session created", map[string]any{
		"state": state,
	})

	_ = jsonwriter.Write(w, SessionResponse{State: state, AuthURL: authURL})
}

// DeleteSessionHandler forgets a session. Unknown states are not an error.
func (h *SessionHandlers) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	state := r.PathValue("state")
	if state == "" {
		jsonwriter.WriteBadRequest(w, "Missing state")
		return
	}

	if err := h.store.Delete(r.Context(), state); err != nil {
		log.LogErrorWithFields("session", "Failed to delete session", map[string]any{
			"state": state,
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CallbackHandler completes the authorization code flow. On success the
// browser is redirected to the front-end carrying the session cookies.
func (h *SessionHandlers) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errMsg := query.Get("error"); errMsg != "" {
		log.LogWarnWithFields("callback", "Google returned an error", map[string]any{
			"error":       errMsg,
			"description": query.Get("error_description"),
		})
		metrics.CallbacksTotal.WithLabelValues(metrics.OutcomeProviderError).Inc()
		jsonwriter.WriteBadRequest(w, "Authentication failed: "+errMsg)
		return
	}

	state := query.Get("state")
	code := query.Get("code")
	if state == "" || code == "" {
		metrics.CallbacksTotal.WithLabelValues(metrics.OutcomeInvalidRequest).Inc()
		jsonwriter.WriteBadRequest(w, "Invalid callback parameters")
		return
	}

	session, err := h.store.Get(r.Context(), state)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			log.LogWarnWithFields("callback", "Unknown or expired state", map[string]any{
				"state": state,
			})
			metrics.CallbacksTotal.WithLabelValues(metrics.OutcomeUnknownState).Inc()
			jsonwriter.WriteBadRequest(w, "Invalid state")
			return
		}
		log.LogError("Failed to load session %s: %v", state, err)
		metrics.CallbacksTotal.WithLabelValues(metrics.OutcomeStoreFailed).Inc()
		jsonwriter.WriteInternalServerError(w, "Failed to load session")
		return
	}
	if session.Completed() {
		log.LogWarnWithFields("callback", "State already used", map[string]any{
			"state": state,
		})
		metrics.CallbacksTotal.WithLabelValues(metrics.OutcomeReplayedState).Inc()
		jsonwriter.WriteBadRequest(w, "Invalid state")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exchangeTimeout)
	defer cancel()

	start := time.Now()
	token, err := h.provider.ExchangeCode(ctx, code)
	metrics.ExchangeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.LogErrorWithFields("callback", "Code exchange failed", map[string]any{
			"state": state,
			"error": err.Error(),
		})
		metrics.CallbacksTotal.WithLabelValues(metrics.OutcomeExchangeFailed).Inc()
		jsonwriter.WriteBadGateway(w, "Failed to exchange authorization code")
		return
	}

	rawIDToken, ok := idp.IDToken(token)
	if !ok {
		log.LogErrorWithFields("callback", "Token response has no id_token", map[string]any{
			"state": state,
		})
		metrics.CallbacksTotal.WithLabelValues(metrics.OutcomeExchangeFailed).Inc()
		jsonwriter.WriteBadGateway(w, "Token response did not include an ID token")
		return
	}

	claims, err := h.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		log.LogWarnWithFields("callback", "ID token verification failed", map[string]any{
			"state": state,
			"error": err.Error(),
		})
		metrics.CallbacksTotal.WithLabelValues(metrics.OutcomeVerifyFailed).Inc()
		jsonwriter.WriteUnauthorized(w, "Invalid ID token")
		return
	}

	if err := idp.ValidateDomain(claims.Domain(), h.cfg.AllowedDomains); err != nil {
		log.LogWarnWithFields("callback", "Domain not allowed", map[string]any{
			"state":  state,
			"domain": claims.Domain(),
		})
		metrics.CallbacksTotal.WithLabelValues(metrics.OutcomeDomainForbidden).Inc()
		jsonwriter.WriteForbidden(w, err.Error())
		return
	}

	now := h.now()
	session.AccessToken = token.AccessToken
	session.RefreshToken = token.RefreshToken
	session.IDToken = rawIDToken
	session.IDInfo = claims
	session.CompletedAt = now
	session.ExpiresAt = now.Add(h.cfg.SessionTTL)

	if err := h.store.Put(ctx, session); err != nil {
		log.LogErrorWithFields("callback", "Failed to store tokens", map[string]any{
			"state": state,
			"error": err.Error(),
		})
		metrics.CallbacksTotal.WithLabelValues(metrics.OutcomeStoreFailed).Inc()
		jsonwriter.WriteInternalServerError(w, "Failed to store session")
		return
	}

	cookie.SetSessionCookies(w, cookie.CookieSet{
		Session:      state,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		IDToken:      rawIDToken,
	}, h.cfg.Cookies, now)

	metrics.CallbacksTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	log.LogInfoWithFields("callback", "User authenticated", map[string]any{
		"state": state,
		"sub":   claims.Subject,
	})
	log.LogDebugWithFields("callback", "Authenticated user email", map[string]any{
		"sub":   claims.Subject,
		"email": claims.Email,
	})

	http.Redirect(w, r, h.cfg.FrontendURL, http.StatusFound)
}
