// Command assistant runs the chatlens business-intelligence chat backend.
//
// The assistant accepts natural-language prompts, classifies them into an
// intent with an ordered keyword rule table, and executes the matching step
// plan asynchronously: fetching synthetic data through a generation-aware
// cache, generating chart specifications, and producing cached insight text.
// Clients submit a prompt, poll for progress, and retrieve the synthesized
// result.
//
// The assistant serves an HTTP API on port 8080 (configurable) providing:
//   - POST /v1/chat/submit             - Submit a prompt, returns a request id
//   - GET  /v1/chat/status/{requestId} - Poll task progress
//   - GET  /v1/chat/result/{requestId} - Retrieve the finished result
//   - POST /v1/chat/cancel/{requestId} - Cancel a running task
//   - POST /v1/data/fetch              - Cache-aware data fetch
//   - POST /v1/charts/generate         - Stateless chart generation
//   - GET  /healthz                    - Health check endpoint
//   - GET  /metrics                    - Prometheus metrics endpoint
//
// Usage:
//
//	assistant \
//	  -listen=:8080 \
//	  -storage=redis \
//	  -redis-addr=redis:6379 \
//	  -task-timeout=2m
//
// Environment variables:
//
//	LISTEN             - HTTP listen address (default: :8080)
//	STORAGE            - Insight cache backend: memory, redis (default: memory)
//	REDIS_ADDR         - Redis server address (default: localhost:6379)
//	REDIS_PASSWORD     - Redis password
//	REDIS_DB           - Redis database number (default: 0)
//	REDIS_TTL          - Redis insight TTL (default: 30m)
//	UPDATE_PROBABILITY - Per-check chance of an upstream data change (default: 0.10)
//	HIT_LATENCY        - Simulated data cache hit latency (default: 50ms)
//	MISS_LATENCY       - Simulated data cache miss latency (default: 800ms)
//	INSIGHT_LATENCY    - Simulated insight generation latency (default: 1s)
//	TASK_TIMEOUT       - Per-task processing deadline (default: 2m)
//	TASK_TTL           - How long finished tasks stay queryable (default: 15m)
//	RULES_FILE         - Optional YAML intent rule table
//	INSIGHT_URL        - Optional remote insight generator endpoint
//	LOG_LEVEL          - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT         - Logging format: text, json (default: text)
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pivotlabs/chatlens/cmd/assistant/config"
	"github.com/pivotlabs/chatlens/cmd/assistant/logger"
	"github.com/pivotlabs/chatlens/cmd/assistant/metrics"
	"github.com/pivotlabs/chatlens/cmd/assistant/router"
	"github.com/pivotlabs/chatlens/cmd/assistant/store"
	"github.com/pivotlabs/chatlens/pkg/chat"
	"github.com/pivotlabs/chatlens/pkg/clock"
	"github.com/pivotlabs/chatlens/pkg/dataquery"
	"github.com/pivotlabs/chatlens/pkg/datastore"
	"github.com/pivotlabs/chatlens/pkg/httpx"
	"github.com/pivotlabs/chatlens/pkg/insight"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	logger.Info("starting chatlens assistant",
		"version", version,
		"listen", cfg.Listen,
		"storage", cfg.Storage,
	)

	m := metrics.New()

	data := datastore.New(datastore.WithUpdateProbability(cfg.UpdateProbability))

	fetcher := dataquery.New(data, logger,
		dataquery.WithLatencies(cfg.HitLatency, cfg.MissLatency),
		dataquery.WithMetrics(m.DataQuery()),
	)

	cache, err := store.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create insight cache", "error", err)
		os.Exit(1)
	}
	if closer, ok := cache.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Error("failed to close insight cache", "error", err)
			}
		}()
	}

	generator := buildGenerator(cfg, logger)
	insights := insight.NewService(cache, generator, clock.New(), logger, m.Insight())

	managerOpts := []chat.Option{
		chat.WithMetrics(m.Chat()),
		chat.WithTaskTimeout(cfg.TaskTimeout),
		chat.WithTaskTTL(cfg.TaskTTL),
	}
	if cfg.RulesFile != "" {
		rules, err := chat.LoadRules(cfg.RulesFile)
		if err != nil {
			logger.Error("failed to load intent rules", "file", cfg.RulesFile, "error", err)
			os.Exit(1)
		}
		logger.Info("loaded intent rules", "file", cfg.RulesFile, "rules", len(rules))
		managerOpts = append(managerOpts, chat.WithClassifier(chat.NewClassifier(rules)))
	}

	manager := chat.NewManager(fetcher, insights, logger, managerOpts...)
	defer manager.Close()

	mux := router.SetupRoutes(manager, fetcher, logger)
	handler := httpx.LoggingMiddleware(logger)(httpx.RecoveryMiddleware(logger)(mux))
	httpServer := httpx.NewServer(cfg.Listen, handler, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	logger.Info("shutting down")

	if err := httpServer.Stop(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// buildGenerator selects the insight generator: the canned local generator by
// default, or a remote HTTP generator (with the canned one as fallback) when
// an insight URL is configured.
func buildGenerator(cfg *config.Config, logger *slog.Logger) insight.Generator {
	canned := insight.NewCanned(clock.New(), cfg.InsightLatency)
	if cfg.InsightURL == "" {
		return canned
	}

	logger.Info("using remote insight generator", "url", cfg.InsightURL, "path", cfg.InsightPath)
	return &insight.Remote{
		URL:      cfg.InsightURL,
		TextPath: cfg.InsightPath,
		Fallback: canned,
		Logger:   logger,
	}
}
