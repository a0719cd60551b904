package chat

import (
	"time"

	"github.com/pivotlabs/chatlens/pkg/charts"
	"github.com/pivotlabs/chatlens/pkg/dataquery"
	"github.com/pivotlabs/chatlens/pkg/datastore"
)

// Op is what the worker does when it executes a step.
type Op int

const (
	// OpWait paces the task by the step's Duration without doing real work.
	OpWait Op = iota

	// OpFetch runs the cache-aware data fetch for the task's pipeline.
	OpFetch

	// OpChart renders the chart spec from the fetched data.
	OpChart

	// OpInsight generates (or recalls) the insight for the rendered chart.
	OpInsight
)

// Step is one stage of a task's progress plan. Icon and Label are what the
// poller displays; Duration paces OpWait steps (action steps take as long as
// the work they do). Steps with a TraceLabel contribute an entry to the
// task's execution trace, timed from the step's actual duration.
type Step struct {
	Icon     string
	Label    string
	Duration time.Duration
	Op       Op

	TraceType   string
	TraceLabel  string
	TraceDetail string
}

// Message is the progress string reported to pollers.
func (s Step) Message() string {
	return s.Icon + " " + s.Label
}

// PlanFor returns the ordered step plan for an intent. Plans are fixed per
// intent: chart and map tasks run the five-step analytics pipeline, rag tasks
// simulate retrieval, and everything else gets the short general plan.
func PlanFor(intent Intent) []Step {
	switch intent {
	case IntentChart:
		return []Step{
			{Icon: "🧠", Label: "Understanding your question...", Duration: 300 * time.Millisecond, Op: OpWait,
				TraceType: "llm_call", TraceLabel: "Intent detection"},
			{Icon: "🔧", Label: "Translating to Data API query...", Duration: 400 * time.Millisecond, Op: OpWait},
			{Icon: "🗄️", Label: "Fetching data from Cache/DB [POST /v1/data/fetch]...", Op: OpFetch,
				TraceType: "tool_call", TraceLabel: "fetch_data", TraceDetail: "called POST /v1/data/fetch"},
			{Icon: "🎨", Label: "Rendering Stateless Chart [POST /v1/charts/generate]...", Op: OpChart,
				TraceType: "tool_call", TraceLabel: "generate_chart", TraceDetail: "stateless rendering"},
			{Icon: "🧠", Label: "Requesting Chart Insight [Caching enabled]...", Op: OpInsight,
				TraceType: "llm_call", TraceLabel: "generate_insight", TraceDetail: "insight generation (cached)"},
		}
	case IntentMap:
		return []Step{
			{Icon: "🧠", Label: "Understanding location intent...", Duration: 300 * time.Millisecond, Op: OpWait,
				TraceType: "llm_call", TraceLabel: "Intent detection"},
			{Icon: "🔧", Label: "Translating to Data API query...", Duration: 400 * time.Millisecond, Op: OpWait},
			{Icon: "🗄️", Label: "Fetching data from Cache/DB [POST /v1/data/fetch]...", Op: OpFetch,
				TraceType: "tool_call", TraceLabel: "fetch_data", TraceDetail: "called POST /v1/data/fetch"},
			{Icon: "🎨", Label: "Rendering Stateless Map [POST /v1/charts/generate]...", Op: OpChart,
				TraceType: "tool_call", TraceLabel: "generate_chart", TraceDetail: "stateless rendering"},
			{Icon: "🧠", Label: "Requesting Map Insight [Caching enabled]...", Op: OpInsight,
				TraceType: "llm_call", TraceLabel: "generate_insight", TraceDetail: "insight generation (cached)"},
		}
	case IntentRAG:
		return []Step{
			{Icon: "🧠", Label: "Analyzing query for search intent...", Duration: 400 * time.Millisecond, Op: OpWait,
				TraceType: "llm_call", TraceLabel: "Intent detection (RAG)"},
			{Icon: "🗄️", Label: "Embedding query and searching Vector DB...", Duration: 1200 * time.Millisecond, Op: OpWait,
				TraceType: "tool_call", TraceLabel: "vector_search", TraceDetail: "found 2 relevant chunks"},
			{Icon: "📄", Label: "Retrieving relevant document chunks...", Duration: 300 * time.Millisecond, Op: OpWait},
			{Icon: "🧠", Label: "Synthesizing answer from sources...", Duration: 1500 * time.Millisecond, Op: OpWait,
				TraceType: "llm_call", TraceLabel: "Answer synthesis", TraceDetail: "generated using retrieved context"},
		}
	default:
		return []Step{
			{Icon: "🧠", Label: "Searching knowledge base...", Duration: 500 * time.Millisecond, Op: OpWait,
				TraceType: "llm_call", TraceLabel: "Intent detection"},
			{Icon: "🤖", Label: "Routing to general-answer sub-agent", Duration: 600 * time.Millisecond, Op: OpWait,
				TraceType: "sub_agent", TraceLabel: "General-answer sub-agent"},
		}
	}
}

// pipelineSpec holds the fixed analytics parameters for chart and map tasks.
type pipelineSpec struct {
	fetch dataquery.Request
	kind  charts.Kind
	cfg   charts.Config
}

func pipelineFor(intent Intent) (pipelineSpec, bool) {
	switch intent {
	case IntentChart:
		return pipelineSpec{
			fetch: dataquery.Request{
				Source: datastore.SourceSales,
				Columns: []string{
					datastore.ColDate,
					datastore.ColProductA,
					datastore.ColProductB,
					datastore.ColProductC,
				},
			},
			kind: charts.KindLine,
			cfg: charts.Config{
				Title: "📈 30-Day Sales Trend",
				X:     datastore.ColDate,
				Y: []string{
					datastore.ColProductA,
					datastore.ColProductB,
					datastore.ColProductC,
				},
			},
		}, true
	case IntentMap:
		return pipelineSpec{
			fetch: dataquery.Request{
				Source:  datastore.SourceGeo,
				Columns: []string{datastore.ColLat, datastore.ColLon},
			},
			kind: charts.KindMap,
			cfg: charts.Config{
				Title: "🗺️ User Geographic Distribution",
				Lat:   datastore.ColLat,
				Lon:   datastore.ColLon,
			},
		}, true
	default:
		return pipelineSpec{}, false
	}
}
