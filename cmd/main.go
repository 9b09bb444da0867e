package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/okian/podium/internal/adapters/http/api"
	"github.com/okian/podium/internal/adapters/mq/queue"
	"github.com/okian/podium/internal/adapters/mq/worker"
	"github.com/okian/podium/internal/adapters/ws"
	app "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/config"
	"github.com/okian/podium/internal/domain/dedupe"
	"github.com/okian/podium/internal/domain/season"
	"github.com/okian/podium/internal/domain/types"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

// engineApplier adapts the engine to the worker pool's Applier contract.
type engineApplier struct {
	eng *app.Engine
}

func (a engineApplier) UpdateScore(ctx context.Context, entity string, c types.Category, tf types.Timeframe, score uint64) error {
	_, err := a.eng.UpdateScore(ctx, entity, c, tf, score)
	return err
}

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Event fan-out to websocket subscribers.
	broadcaster := ws.NewBroadcaster(ws.WithLogger(loggerInstance.Named("ws")))
	defer func() { _ = broadcaster.Close() }()

	// The ranking engine with its collaborators.
	eng := app.New(
		app.WithLogger(loggerInstance),
		app.WithSink(broadcaster),
		app.WithAuthorizer(app.NewTokenAuthorizer(cfg.AdminToken)),
		app.WithSeasonDefaults(season.Config{
			IsActive:       true,
			MaxEntries:     cfg.DefaultMaxEntries,
			UpdateCooldown: cfg.DefaultUpdateCooldown,
		}),
		app.WithInactivityThreshold(cfg.InactivityThreshold),
	)

	// Async ingestion: dedupe -> bounded queue -> worker pool -> engine.
	deduper := dedupe.New(dedupe.WithMaxSize(cfg.DedupeSize))
	q := queue.NewInMemoryQueue(queue.WithCapacity(cfg.EventQueueSize))
	pool := worker.NewPool(cfg.WorkerCount, q, engineApplier{eng: eng})
	pool.Start(ctx)

	go startServiceMetricsUpdater(ctx, eng, q)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(api.ServerDeps{
		Engine:   eng,
		Reader:   eng,
		Ranker:   eng,
		Activity: eng,
		Records:  eng,
		Admin:    eng,
		Stats:    eng,
		Ingest:   api.NewEventsHandler(deduper, q),
		MaxLimit: cfg.MaxLeaderboardLimit,
	})
	apiServer.Register(mux)
	mux.HandleFunc("/ws", broadcaster.HandleWS)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	// Drain the queue before exiting so accepted events are applied.
	if err := pool.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "worker pool shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// startServiceMetricsUpdater periodically refreshes gauges derived from
// engine state.
func startServiceMetricsUpdater(ctx context.Context, eng *app.Engine, q *queue.InMemoryQueue) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, eng, q)
		}
	}
}

func updateServiceMetrics(ctx context.Context, eng *app.Engine, q *queue.InMemoryQueue) {
	metrics.UpdateQueueSize(q.Len(ctx))
	metrics.UpdateActiveEntities(eng.TotalActive(ctx))

	stats := eng.GetStats()
	if sizes, ok := stats["partitions"].(map[string]int); ok {
		for key, size := range sizes {
			category, timeframe, found := strings.Cut(key, "/")
			if !found {
				continue
			}
			metrics.UpdatePartitionSize(category, timeframe, size)
		}
	}
}
