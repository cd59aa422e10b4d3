package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/session", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"state":"abc","auth_url":"https://accounts.google.com/o/oauth2/auth?state=abc"}`))
	}))
	defer srv.Close()

	c := NewBackendClient(srv.URL + "/api/")
	session, err := c.CreateSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", session.State)
	assert.Equal(t, "https://accounts.google.com/o/oauth2/auth?state=abc", session.AuthURL)
}

func TestCreateSession_ServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal_server_error","message":"Failed to create session"}`))
	}))
	defer srv.Close()

	_, err := NewBackendClient(srv.URL).CreateSession(context.Background())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "got %v", err)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "Failed to create session")
	assert.Equal(t, int32(1), calls.Load())
}

func TestDeleteSession_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewBackendClient(srv.URL).DeleteSession(context.Background(), "abc"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestCheckRetry(t *testing.T) {
	response := func(method string, status int) *http.Response {
		return &http.Response{StatusCode: status, Request: httptest.NewRequest(method, "/session", nil)}
	}

	tests := []struct {
		name  string
		resp  *http.Response
		err   error
		retry bool
	}{
		{name: "post 5xx", resp: response(http.MethodPost, http.StatusInternalServerError), retry: false},
		{name: "post 503", resp: response(http.MethodPost, http.StatusServiceUnavailable), retry: false},
		{name: "post connection error", err: errors.New("connection refused"), retry: true},
		{name: "delete 5xx", resp: response(http.MethodDelete, http.StatusBadGateway), retry: true},
		{name: "delete 4xx", resp: response(http.MethodDelete, http.StatusNotFound), retry: false},
		{name: "delete ok", resp: response(http.MethodDelete, http.StatusNoContent), retry: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retry, _ := checkRetry(context.Background(), tt.resp, tt.err)
			assert.Equal(t, tt.retry, retry)
		})
	}
}

func TestCreateSession_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewBackendClient(srv.URL).CreateSession(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCreateSession_IncompleteBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"state":""}`))
	}))
	defer srv.Close()

	_, err := NewBackendClient(srv.URL).CreateSession(context.Background())
	assert.ErrorContains(t, err, "incomplete session")
}

func TestDeleteSession(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewBackendClient(srv.URL).DeleteSession(context.Background(), "abc"))
	assert.Equal(t, "/session/abc", gotPath)
}

func TestDeleteSession_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewBackendClient(srv.URL).DeleteSession(context.Background(), "abc")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}
