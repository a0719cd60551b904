// Package dataquery implements the cache-aware data fetch operation behind
// POST /v1/data/fetch.
//
// Each fetch computes a deterministic key from its request parameters, polls
// the data store for upstream changes, and serves from cache when the cached
// entry was written at the current data generation. Entries are tagged with
// the generation at write time, so a regeneration invalidates stale entries
// without a wholesale cache flush and without racing concurrent readers.
//
// Filters, groupBy, and aggregation are accepted and participate in the cache
// key, but the only transformation applied to the data is column projection.
// This is a stub boundary: the service simulates a query engine, it is not one.
package dataquery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pivotlabs/chatlens/pkg/clock"
	"github.com/pivotlabs/chatlens/pkg/dataset"
	"github.com/pivotlabs/chatlens/pkg/datastore"
)

// Request describes one data fetch.
type Request struct {
	Source      string            `json:"source"`
	Columns     []string          `json:"columns,omitempty"`
	Filters     []string          `json:"filters,omitempty"`
	GroupBy     []string          `json:"groupBy,omitempty"`
	Aggregation map[string]string `json:"aggregation,omitempty"`
}

// Key returns the deterministic cache key for the request. The encoding is
// order-sensitive for every parameter so identical requests always collide
// and reordered ones never do.
func (r Request) Key() string {
	var b strings.Builder
	b.WriteString(r.Source)
	b.WriteByte('|')
	b.WriteString(strings.Join(r.Columns, "-"))
	b.WriteByte('|')
	b.WriteString(strings.Join(r.Filters, "-"))
	b.WriteByte('|')
	b.WriteString(strings.Join(r.GroupBy, "-"))
	b.WriteByte('|')
	// Aggregation is a small map; encode entries sorted by fmt for stability.
	if len(r.Aggregation) > 0 {
		fmt.Fprintf(&b, "%v", sortedPairs(r.Aggregation))
	}
	return b.String()
}

func sortedPairs(m map[string]string) []string {
	pairs := make([]string, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, k+"="+v)
	}
	// Insertion order of map iteration is random; sort for a stable key.
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j] < pairs[j-1]; j-- {
			pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
		}
	}
	return pairs
}

// Metrics receives cache and latency observations. Implementations must be
// safe for concurrent use. A nil Metrics disables instrumentation.
type Metrics interface {
	CacheHit()
	CacheMiss()
	ObserveFetch(seconds float64)
}

type entry struct {
	generation uint64
	data       dataset.Dataset
}

// Fetcher serves data fetch requests with generation-tagged memoization.
// It is safe for concurrent use by multiple goroutines.
type Fetcher struct {
	store   *datastore.Store
	clock   clock.Clock
	logger  *slog.Logger
	metrics Metrics

	hitLatency  time.Duration
	missLatency time.Duration

	mu      sync.Mutex
	entries map[string]entry
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLatencies sets the simulated cache-hit and cold-path latencies.
// Defaults are 50ms and 800ms.
func WithLatencies(hit, miss time.Duration) Option {
	return func(f *Fetcher) {
		f.hitLatency = hit
		f.missLatency = miss
	}
}

// WithClock sets the clock used for latency simulation.
func WithClock(c clock.Clock) Option {
	return func(f *Fetcher) { f.clock = c }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// New creates a Fetcher over the given store.
func New(store *datastore.Store, logger *slog.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}

	f := &Fetcher{
		store:       store,
		clock:       clock.New(),
		logger:      logger,
		entries:     make(map[string]entry),
		hitLatency:  50 * time.Millisecond,
		missLatency: 800 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch serves one data fetch request. On a cache hit at the current data
// generation it returns a copy of the stored snapshot after the fast-path
// latency. On a miss, or when the cached entry predates the current
// generation, it reads the source dataset, projects the requested columns,
// stores a defensive copy tagged with the generation, and returns it.
//
// Fetch never fails on unknown sources or columns; it degrades to an empty
// or narrower dataset. The only error condition is context cancellation.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (dataset.Dataset, error) {
	start := f.clock.Now()
	key := req.Key()

	changed := f.store.CheckForUpdate()
	generation := f.store.Generation()
	if changed {
		f.logger.Info("data source updated", "generation", generation)
	}

	f.mu.Lock()
	cached, ok := f.entries[key]
	f.mu.Unlock()

	if ok && cached.generation == generation {
		if err := f.clock.Sleep(ctx, f.hitLatency); err != nil {
			return dataset.Dataset{}, err
		}
		if f.metrics != nil {
			f.metrics.CacheHit()
			f.metrics.ObserveFetch(f.clock.Now().Sub(start).Seconds())
		}
		f.logger.Debug("data cache hit", "key", key)
		return cached.data.Clone(), nil
	}

	if err := f.clock.Sleep(ctx, f.missLatency); err != nil {
		return dataset.Dataset{}, err
	}

	data := f.store.Snapshot(req.Source)
	if len(req.Columns) > 0 {
		data = data.Select(req.Columns)
	}

	f.mu.Lock()
	f.entries[key] = entry{generation: generation, data: data.Clone()}
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.CacheMiss()
		f.metrics.ObserveFetch(f.clock.Now().Sub(start).Seconds())
	}
	f.logger.Debug("data cache miss", "key", key, "generation", generation, "rows", len(data.Rows))

	return data, nil
}

// Len returns the number of cached entries, including stale ones that have
// not been overwritten yet. Useful for tests and metrics.
func (f *Fetcher) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}
