package app

import (
	"context"
	"fmt"
	"time"

	"tribune/internal/config"
	"tribune/internal/ledger"
	"tribune/internal/logger"
	"tribune/internal/orchestrator"
	"tribune/internal/portfolio"
	"tribune/internal/scheduler"
	pipelinehttp "tribune/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App owns application-level orchestration: load config, build the
// dependency graph, run the HTTP surface plus housekeeping loops.
type App struct {
	cfg    *config.Config
	led    ledger.Ledger
	book   *portfolio.FileProvider
	orch   *orchestrator.Orchestrator
	server *pipelinehttp.Server
}

// NewApp builds the application object from config without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return build(cfg)
}

// Orchestrator exposes the underlying pipeline engine (for test harnesses).
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	if a == nil {
		return nil
	}
	return a.orch
}

// Run serves until ctx is cancelled: HTTP server, idempotency pruning, and
// the portfolio snapshot watcher when enabled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.server.Run(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		interval := a.cfg.Pipeline.CacheTTL() / 4
		if interval < time.Minute {
			interval = time.Minute
		}
		scheduler.NewIntervalScheduler(ctx, interval).Start(a.orch.Prune)
		return nil
	})

	if a.cfg.Portfolio.Watch {
		group.Go(func() error {
			if err := a.book.Watch(ctx); err != nil {
				return fmt.Errorf("portfolio watcher error: %w", err)
			}
			return nil
		})
	}

	return group.Wait()
}

func (a *App) close() {
	if closer, ok := a.led.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warnf("closing audit ledger: %v", err)
		}
	}
}
