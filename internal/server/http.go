package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	jsonwriter "github.com/dgellow/gsession/internal/json"
	"github.com/dgellow/gsession/internal/log"
)

const (
	readHeaderTimeout = 10 * time.Second
	healthTimeout     = 2 * time.Second
)

// HTTPServer manages the HTTP server lifecycle
type HTTPServer struct {
	server *http.Server

	mu    sync.Mutex
	bound net.Addr
}

// NewHTTPServer creates a server for handler on addr. Port 0 picks a free
// port, reported by Addr once listening.
func NewHTTPServer(handler http.Handler, addr string) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// Addr returns the bound address, or "" before Start has listened
func (h *HTTPServer) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bound == nil {
		return ""
	}
	return h.bound.String()
}

// Start blocks serving requests until Stop is called
func (h *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.bound = ln.Addr()
	h.mu.Unlock()

	log.LogInfoWithFields("http", "HTTP server listening", map[string]any{
		"addr": ln.Addr().String(),
	})

	if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop waits for in-flight requests until ctx expires
func (h *HTTPServer) Stop(ctx context.Context) error {
	if err := h.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.LogInfoWithFields("http", "HTTP server stopped", map[string]any{
		"addr": h.Addr(),
	})
	return nil
}

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Error   string `json:"error,omitempty"`
}

// HealthHandler answers liveness probes for one service
type HealthHandler struct {
	service string
	check   HealthCheck
}

// NewHealthHandler creates a health handler for service. A nil check
// always reports ok.
func NewHealthHandler(service string, check HealthCheck) *HealthHandler {
	return &HealthHandler{service: service, check: check}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Service: h.service}
	if h.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := h.check(ctx); err != nil {
			log.LogWarnWithFields("health", "Health check failed", map[string]any{
				"service": h.service,
				"error":   err.Error(),
			})
			resp.Status = "unavailable"
			resp.Error = err.Error()
			_ = jsonwriter.WriteResponse(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	_ = jsonwriter.Write(w, resp)
}
