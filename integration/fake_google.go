// Package integration runs authd and calendar-front end to end against a
// fake Google.
package integration

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	fakeAuthCode    = "test-auth-code"
	fakeAccessToken = "test-access-token"
	fakeKeyID       = "fake-key"
)

// FakeGoogleServer stands in for the Google OAuth, OIDC certs and Calendar
// endpoints.
type FakeGoogleServer struct {
	*httptest.Server

	ClientID string
	Claims   map[string]any
	Events   []map[string]any

	key *rsa.PrivateKey

	mu        sync.Mutex
	exchanges int
}

// NewFakeGoogleServer starts a fake Google that issues ID tokens for clientID
func NewFakeGoogleServer(clientID string) (*FakeGoogleServer, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}

	f := &FakeGoogleServer{
		ClientID: clientID,
		key:      key,
		Claims: map[string]any{
			"sub":            "1234567890",
			"email":          "ada@test.com",
			"email_verified": true,
			"hd":             "test.com",
			"given_name":     "Ada",
			"family_name":    "Lovelace",
			"picture":        "https://lh3.googleusercontent.com/a/ada",
		},
		Events: []map[string]any{
			{"summary": "Standup", "start": map[string]any{"dateTime": "2030-01-02T09:00:00Z"}},
			{"summary": "Offsite", "start": map[string]any{"date": "2030-01-03"}},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth", f.handleAuth)
	mux.HandleFunc("/token", f.handleToken)
	mux.HandleFunc("/certs", f.handleCerts)
	mux.HandleFunc("/calendar/v3/calendars/{calendarID}/events", f.handleEvents)
	f.Server = httptest.NewServer(mux)
	return f, nil
}

// Issuer is the iss claim of the ID tokens this server mints
func (f *FakeGoogleServer) Issuer() string {
	return f.URL
}

// Exchanges counts successful code exchanges
func (f *FakeGoogleServer) Exchanges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchanges
}

// handleAuth approves immediately and sends the browser back with a code
func (f *FakeGoogleServer) handleAuth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirect, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || q.Get("state") == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	params := redirect.Query()
	params.Set("code", fakeAuthCode)
	params.Set("state", q.Get("state"))
	redirect.RawQuery = params.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

func (f *FakeGoogleServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if r.FormValue("code") != fakeAuthCode {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_grant",
			"error_description": "Invalid authorization code",
		})
		return
	}

	idToken, err := f.mintIDToken()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	f.mu.Lock()
	f.exchanges++
	f.mu.Unlock()

	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  fakeAccessToken,
		"refresh_token": "test-refresh-token",
		"id_token":      idToken,
		"token_type":    "Bearer",
		"expires_in":    3600,
	})
}

func (f *FakeGoogleServer) mintIDToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": f.Issuer(),
		"aud": f.ClientID,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	for k, v := range f.Claims {
		claims[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = fakeKeyID
	return token.SignedString(f.key)
}

// handleCerts publishes the signing key as a JWKS document
func (f *FakeGoogleServer) handleCerts(w http.ResponseWriter, r *http.Request) {
	pub := f.key.PublicKey
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": fakeKeyID,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (f *FakeGoogleServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Header.Get("Authorization") != "Bearer "+fakeAccessToken {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"items": f.Events})
}
