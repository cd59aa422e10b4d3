package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dgellow/gsession/internal/calendar"
	"github.com/dgellow/gsession/internal/client"
	"github.com/dgellow/gsession/internal/config"
	"github.com/dgellow/gsession/internal/cookie"
	"github.com/dgellow/gsession/internal/crypto"
	"github.com/dgellow/gsession/internal/frontend"
	"github.com/dgellow/gsession/internal/idp"
	"github.com/dgellow/gsession/internal/log"
	"github.com/dgellow/gsession/internal/metrics"
	"github.com/dgellow/gsession/internal/server"
)

const csrfTTL = 24 * time.Hour

// Frontend is the calendar-front application
type Frontend struct {
	config     config.FrontendConfig
	handler    http.Handler
	httpServer *server.HTTPServer
}

// NewFrontend builds calendar-front with all of its dependencies
func NewFrontend(ctx context.Context, cfg config.Config) (*Frontend, error) {
	if cfg.Frontend == nil {
		return nil, fmt.Errorf("frontend section is missing from config")
	}
	fc := *cfg.Frontend

	verifier := idp.NewGoogleVerifier(ctx, fc.GoogleClientID)
	var listerOpts []calendar.Option
	if endpoint := os.Getenv("GOOGLE_CALENDAR_URL"); endpoint != "" {
		listerOpts = append(listerOpts, calendar.WithEndpoint(endpoint))
	}
	lister := calendar.NewGoogleLister(fc.CalendarID, fc.MaxEvents, listerOpts...)
	backend := client.NewBackendClient(fc.BackendURL)

	return newFrontend(fc, backend, verifier, lister), nil
}

func newFrontend(fc config.FrontendConfig, backend frontend.SessionBackend, verifier idp.IDTokenVerifier, lister calendar.Lister) *Frontend {
	feCfg := frontend.Config{
		Cookies: cookie.NewOptions(fc.Cookies.Domain, fc.Cookies.TTL),
	}
	if fc.GoogleClientSecret != "" {
		feCfg.OAuth = idp.NewRefreshConfig(fc.GoogleClientID, string(fc.GoogleClientSecret))
	}

	handlers := frontend.NewHandlers(backend, verifier, lister,
		crypto.NewCSRFProtection([]byte(fc.CSRFKey), csrfTTL), feCfg)

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux)
	mux.Handle("GET /health", server.NewHealthHandler("calendar-front", nil))
	mux.Handle("GET /metrics", metrics.Handler())

	handler := server.ChainMiddleware(mux,
		server.NewRecoverMiddleware("calendar-front"),
		server.NewLoggerMiddleware("calendar-front"),
	)

	return &Frontend{
		config:     fc,
		handler:    handler,
		httpServer: server.NewHTTPServer(handler, fc.Addr),
	}
}

// Handler returns the full middleware-wrapped handler tree
func (f *Frontend) Handler() http.Handler {
	return f.handler
}

// Run serves until interrupted
func (f *Frontend) Run() error {
	log.LogInfoWithFields("calendar-front", "Starting calendar-front", map[string]any{
		"addr":      f.config.Addr,
		"backend":   f.config.BackendURL,
		"refresh":   f.config.GoogleClientSecret != "",
		"calendar":  f.config.CalendarID,
		"maxEvents": f.config.MaxEvents,
	})
	return serve(context.Background(), "calendar-front", f.httpServer)
}
