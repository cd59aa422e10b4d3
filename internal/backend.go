package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dgellow/gsession/internal/config"
	"github.com/dgellow/gsession/internal/cookie"
	"github.com/dgellow/gsession/internal/crypto"
	"github.com/dgellow/gsession/internal/idp"
	"github.com/dgellow/gsession/internal/log"
	"github.com/dgellow/gsession/internal/metrics"
	"github.com/dgellow/gsession/internal/server"
	"github.com/dgellow/gsession/internal/storage"
)

// Backend is the authd application
type Backend struct {
	config     config.BackendConfig
	handler    http.Handler
	httpServer *server.HTTPServer
	store      storage.Store
	cleanup    *storage.CleanupManager
}

// NewBackend builds authd with all of its dependencies
func NewBackend(ctx context.Context, cfg config.Config) (*Backend, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend section is missing from config")
	}
	bc := *cfg.Backend

	provider, err := idp.NewProvider(bc.Google)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google provider: %w", err)
	}
	verifier := idp.NewGoogleVerifier(ctx, provider.ClientID())

	store, err := setupStorage(ctx, bc)
	if err != nil {
		return nil, err
	}

	return newBackend(bc, provider, verifier, store), nil
}

func newBackend(bc config.BackendConfig, provider idp.Provider, verifier idp.IDTokenVerifier, store storage.Store) *Backend {
	handlers := server.NewSessionHandlers(provider, verifier, store, server.SessionConfig{
		FrontendURL:    bc.FrontendURL,
		AllowedDomains: bc.AllowedDomains,
		Cookies:        cookie.NewOptions(bc.Cookies.Domain, bc.Cookies.TTL),
		PendingTTL:     bc.Sessions.PendingTTL,
		SessionTTL:     bc.Sessions.TTL,
	})

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux)
	mux.Handle("GET /health", server.NewHealthHandler("authd", storeCheck(store)))
	mux.Handle("GET /metrics", metrics.Handler())

	handler := server.ChainMiddleware(mux,
		server.NewRecoverMiddleware("authd"),
		server.NewCORSMiddleware(bc.AllowedOrigins),
		server.NewLoggerMiddleware("authd"),
	)

	return &Backend{
		config:     bc,
		handler:    handler,
		httpServer: server.NewHTTPServer(handler, bc.Addr),
		store:      store,
		cleanup:    storage.NewCleanupManager(store, bc.Sessions.CleanupInterval),
	}
}

// Handler returns the full middleware-wrapped handler tree
func (b *Backend) Handler() http.Handler {
	return b.handler
}

// Run serves until interrupted, then stops the cleanup loop and closes the store
func (b *Backend) Run() error {
	log.LogInfoWithFields("authd", "Starting authd", map[string]any{
		"addr":    b.config.Addr,
		"storage": string(b.config.Sessions.Storage),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.cleanup.Start(ctx)
	err := serve(ctx, "authd", b.httpServer)
	b.cleanup.Stop()

	if cerr := b.store.Close(); cerr != nil {
		log.LogWarnWithFields("authd", "Failed to close session store", map[string]any{
			"error": cerr.Error(),
		})
	}
	return err
}

// setupStorage creates the session store selected by the configuration
func setupStorage(ctx context.Context, bc config.BackendConfig) (storage.Store, error) {
	s := bc.Sessions

	switch s.Storage {
	case config.StorageRedis, config.StorageFirestore:
	default:
		log.LogInfoWithFields("storage", "Using in-memory storage", map[string]any{})
		return storage.NewMemoryStorage(), nil
	}

	encryptor, err := crypto.NewEncryptor([]byte(bc.EncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	if s.Storage == config.StorageRedis {
		log.LogInfoWithFields("storage", "Using Redis storage", map[string]any{
			"keyPrefix": s.KeyPrefix,
		})
		store, err := storage.NewRedisStorage(ctx, string(s.RedisURL), s.KeyPrefix, encryptor)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis storage: %w", err)
		}
		return store, nil
	}

	store, err := storage.NewFirestoreStorage(ctx, s.GCPProject, s.FirestoreDatabase, s.FirestoreCollection, encryptor)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore storage: %w", err)
	}
	return store, nil
}

// storeCheck probes the store with a lookup that is expected to miss
func storeCheck(store storage.Store) server.HealthCheck {
	return func(ctx context.Context) error {
		_, err := store.Get(ctx, "health-probe")
		if err == nil || errors.Is(err, storage.ErrSessionNotFound) {
			return nil
		}
		return err
	}
}
