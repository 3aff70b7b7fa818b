package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polymarketbot/internal/server"
	"github.com/alanyoungcy/polymarketbot/internal/server/handler"
	"github.com/alanyoungcy/polymarketbot/internal/server/ws"
)

// DetectMode runs the live pipeline: the feed aggregator publishes market
// snapshots, the mispricing detectors and arbitrage engine turn them into
// validated opportunities, and each one is persisted and announced. It
// blocks until ctx is cancelled.
func (a *App) DetectMode(ctx context.Context, deps *Dependencies) error {
	defer a.Close()

	if deps.Orchestrator == nil {
		return fmt.Errorf("app: detect mode requires the feed/detection/arbitrage pipeline to be wired")
	}
	return deps.Orchestrator.Run(ctx)
}

// ArchiveMode runs only the cold-storage archiver, on its configured cron
// schedule, moving opportunity history and recorded market snapshots older
// than the retention window to object storage. It blocks until ctx is
// cancelled.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	defer a.Close()

	if deps.Archiver == nil {
		return fmt.Errorf("app: archive mode requires postgres and s3 to be configured")
	}
	return deps.Archiver.RunCron(ctx, a.cfg.Pipeline.ArchiveCron)
}

// ServerMode runs only the HTTP/WebSocket API, serving opportunity history
// and fanning out live opportunity events over the signal bus. It blocks
// until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	defer a.Close()
	return a.runServer(ctx, deps)
}

// FullMode runs the live pipeline and the HTTP/WebSocket API concurrently.
// If either fails with a real error, the other is cancelled and the error
// is returned; cancellation of ctx itself is not treated as an error.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)

	if deps.Orchestrator != nil {
		g.Go(func() error {
			err := deps.Orchestrator.Run(gctx)
			if gctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	if a.cfg.Server.Enabled {
		g.Go(func() error {
			return a.runServer(gctx, deps)
		})
	}

	return g.Wait()
}

// runServer assembles the HTTP handlers and WebSocket hub from whatever
// Dependencies are populated, starts the server, and shuts it down cleanly
// when ctx is cancelled.
func (a *App) runServer(ctx context.Context, deps *Dependencies) error {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.logger),
		Status: handler.NewStatusHandler(a.cfg.Mode),
	}
	if deps.OpportunityStore != nil {
		handlers.Opportunities = handler.NewOpportunityHandler(deps.OpportunityStore, a.logger)
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
		})
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimiter:     deps.RateLimiter,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	if hub != nil {
		g.Go(func() error {
			err := hub.Run(gctx)
			if gctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
