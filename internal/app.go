// Package internal assembles the authd and calendar-front processes from
// their component packages.
package internal

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/gsession/internal/log"
	"github.com/dgellow/gsession/internal/server"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// serve runs httpServer until ctx is cancelled, SIGINT or SIGTERM arrives,
// or the server fails, then shuts it down gracefully.
func serve(ctx context.Context, component string, httpServer *server.HTTPServer) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.Start(); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.LogInfoWithFields(component, "Starting graceful shutdown", map[string]any{
			"reason":  context.Cause(gctx).Error(),
			"timeout": shutdownTimeout.String(),
		})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Stop(shutdownCtx)
	})

	return g.Wait()
}
