// Package datastore implements the synthetic upstream data source backing the
// assistant's analytics pipeline.
//
// The store holds two datasets: a 30-day sales time series (SourceSales) and
// a geo-coordinate table (SourceGeo). It models an upstream system whose
// changes are learned by polling: each CheckForUpdate call regenerates both
// datasets with a small fixed probability and bumps a generation counter that
// downstream caches use for invalidation.
package datastore

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/pivotlabs/chatlens/pkg/clock"
	"github.com/pivotlabs/chatlens/pkg/dataset"
)

// Source names understood by the store.
const (
	SourceSales = "sales_table"
	SourceGeo   = "user_geo_table"
)

// Sales table columns.
const (
	ColDate     = "date"
	ColProductA = "Product A"
	ColProductB = "Product B"
	ColProductC = "Product C"
)

// Geo table columns.
const (
	ColLat = "lat"
	ColLon = "lon"
)

const (
	salesDays = 30
	geoPoints = 100

	// Geo points cluster around Taipei.
	geoCenterLat = 25.033
	geoCenterLon = 121.565
)

// Store owns the current snapshot of both synthetic datasets.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	mu         sync.RWMutex
	sales      dataset.Dataset
	geo        dataset.Dataset
	generation uint64

	updateProbability float64
	rng               *rand.Rand
	clock             clock.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithUpdateProbability sets the per-check probability of a regeneration.
// The default is 0.10.
func WithUpdateProbability(p float64) Option {
	return func(s *Store) { s.updateProbability = p }
}

// WithRand sets the random source, for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(s *Store) { s.rng = rng }
}

// WithClock sets the clock used to anchor the sales date range.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// New creates a Store and generates the initial snapshots.
func New(opts ...Option) *Store {
	s := &Store{
		updateProbability: 0.10,
		clock:             clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	s.mu.Lock()
	s.regenerate()
	s.mu.Unlock()
	return s
}

// regenerate replaces both snapshots and bumps the generation.
// Caller must hold s.mu.
func (s *Store) regenerate() {
	end := s.clock.Now()

	sales := dataset.Dataset{
		Columns: []string{ColDate, ColProductA, ColProductB, ColProductC},
		Rows:    make([][]any, salesDays),
	}
	for i := range salesDays {
		day := end.AddDate(0, 0, i-salesDays+1)
		sales.Rows[i] = []any{
			day.Format("2006-01-02"),
			s.rng.NormFloat64()*5 + 60,
			s.rng.NormFloat64()*5 + 70,
			s.rng.NormFloat64()*5 + 50,
		}
	}

	geo := dataset.Dataset{
		Columns: []string{ColLat, ColLon},
		Rows:    make([][]any, geoPoints),
	}
	for i := range geoPoints {
		geo.Rows[i] = []any{
			s.rng.NormFloat64()/50 + geoCenterLat,
			s.rng.NormFloat64()/50 + geoCenterLon,
		}
	}

	s.sales = sales
	s.geo = geo
	s.generation++
}

// CheckForUpdate simulates polling the upstream source. With the configured
// probability it atomically regenerates both datasets, bumps the generation,
// and returns true. Otherwise it leaves state untouched and returns false.
func (s *Store) CheckForUpdate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rng.Float64() >= s.updateProbability {
		return false
	}
	s.regenerate()
	return true
}

// Generation returns the current data generation. It increases monotonically
// with every regeneration, starting at 1 for the initial snapshots.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Sales returns a copy of the current sales snapshot.
func (s *Store) Sales() dataset.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sales.Clone()
}

// Geo returns a copy of the current geo snapshot.
func (s *Store) Geo() dataset.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.geo.Clone()
}

// Snapshot returns a copy of the named dataset. Unknown sources yield an
// empty dataset rather than an error; the data layer is fail-soft by design.
func (s *Store) Snapshot(source string) dataset.Dataset {
	switch source {
	case SourceSales:
		return s.Sales()
	case SourceGeo:
		return s.Geo()
	default:
		return dataset.Dataset{}
	}
}

// LastDate returns the date of the most recent sales row, for display.
func (s *Store) LastDate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.sales.Rows) == 0 {
		return time.Time{}
	}
	last := s.sales.Rows[len(s.sales.Rows)-1]
	t, _ := time.Parse("2006-01-02", last[0].(string))
	return t
}
