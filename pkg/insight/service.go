package insight

import (
	"context"
	"log/slog"

	"github.com/pivotlabs/chatlens/pkg/charts"
	"github.com/pivotlabs/chatlens/pkg/clock"
)

// Metrics receives cache and latency observations for insight generation.
// A nil Metrics disables instrumentation.
type Metrics interface {
	CacheHit()
	CacheMiss()
	ObserveGenerate(seconds float64)
}

// Service fronts a Generator with a Cache. On a hit it returns immediately;
// on a miss it generates, stores the result under the key, and returns it.
// Keys are expected to be derived from the data content (see
// dataset.Fingerprint), never from ephemeral object identity.
type Service struct {
	cache   Cache
	gen     Generator
	clock   clock.Clock
	logger  *slog.Logger
	metrics Metrics
}

// NewService creates an insight Service.
func NewService(cache Cache, gen Generator, c clock.Clock, logger *slog.Logger, metrics Metrics) *Service {
	if c == nil {
		c = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cache:   cache,
		gen:     gen,
		clock:   c,
		logger:  logger,
		metrics: metrics,
	}
}

// Insight returns the insight for key, generating and caching it on a miss.
func (s *Service) Insight(ctx context.Context, key string, kind charts.Kind) (string, error) {
	if v, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		if s.metrics != nil {
			s.metrics.CacheHit()
		}
		s.logger.Debug("insight cache hit", "key", key)
		return v, nil
	} else if err != nil {
		// A broken cache degrades to regeneration, it does not fail the call.
		s.logger.Warn("insight cache get failed", "key", key, "error", err)
	}

	if s.metrics != nil {
		s.metrics.CacheMiss()
	}

	start := s.clock.Now()
	text, err := s.gen.Generate(ctx, key, kind)
	if err != nil {
		return "", err
	}
	if s.metrics != nil {
		s.metrics.ObserveGenerate(s.clock.Now().Sub(start).Seconds())
	}

	if err := s.cache.Set(ctx, key, text); err != nil {
		s.logger.Warn("insight cache set failed", "key", key, "error", err)
	}
	s.logger.Debug("insight generated", "key", key, "chart_type", kind)

	return text, nil
}
