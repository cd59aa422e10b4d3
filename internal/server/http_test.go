package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoint(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHealthHandler("authd", nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		var response map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "ok", response["status"])
		assert.Equal(t, "authd", response["service"])
	})

	t.Run("failing check", func(t *testing.T) {
		check := func(context.Context) error { return errors.New("redis: connection refused") }
		w := httptest.NewRecorder()
		NewHealthHandler("authd", check).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var response map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "unavailable", response["status"])
		assert.Contains(t, response["error"], "connection refused")
	})

	t.Run("check gets a deadline", func(t *testing.T) {
		var hasDeadline bool
		check := func(ctx context.Context) error {
			_, hasDeadline = ctx.Deadline()
			return nil
		}
		w := httptest.NewRecorder()
		NewHealthHandler("authd", check).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.True(t, hasDeadline)
	})
}

func TestHTTPServer_StartStop(t *testing.T) {
	srv := NewHTTPServer(NewHealthHandler("test", nil), "127.0.0.1:0")
	assert.Empty(t, srv.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	assert.NoError(t, <-errCh, "Start returns nil after a graceful stop")
}

func TestHTTPServer_ListenError(t *testing.T) {
	srv := NewHTTPServer(http.NotFoundHandler(), "256.0.0.1:bad")
	assert.Error(t, srv.Start())
}
