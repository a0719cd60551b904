package insight

import (
	"context"
	"time"

	"github.com/pivotlabs/chatlens/pkg/charts"
	"github.com/pivotlabs/chatlens/pkg/clock"
)

// Generator produces insight text for a chart. Implementations may be slow;
// callers are expected to front them with a Cache via Service.
type Generator interface {
	Generate(ctx context.Context, key string, kind charts.Kind) (string, error)
}

// Canned returns a fixed insight per chart kind after a simulated generation
// latency. It stands in for a real generative model call: the text depends
// only on the chart kind, never on the data.
type Canned struct {
	clock   clock.Clock
	latency time.Duration
}

// NewCanned creates a Canned generator. A latency < 0 uses the 1s default.
func NewCanned(c clock.Clock, latency time.Duration) *Canned {
	if c == nil {
		c = clock.New()
	}
	if latency < 0 {
		latency = time.Second
	}
	return &Canned{clock: c, latency: latency}
}

// Generate returns the canned insight for kind.
func (g *Canned) Generate(ctx context.Context, key string, kind charts.Kind) (string, error) {
	if err := g.clock.Sleep(ctx, g.latency); err != nil {
		return "", err
	}

	switch kind {
	case charts.KindLine:
		return "Generated from raw sales_table. Product B remains strong compared to others.", nil
	case charts.KindMap:
		return "Generated from user_geo_table. Dense clustering near metropolitan areas.", nil
	default:
		return "No specific insight available for this data.", nil
	}
}
