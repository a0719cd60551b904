package chat

import (
	"context"
	"time"

	"github.com/pivotlabs/chatlens/pkg/charts"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusCanceled   Status = "canceled"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusCanceled || s == StatusFailed
}

// BlockType identifies the kind of a response content block.
type BlockType string

const (
	BlockText      BlockType = "text"
	BlockPlotly    BlockType = "plotly"
	BlockReference BlockType = "reference"
)

// Block is one element of a task's final response.
type Block struct {
	Type    BlockType    `json:"type"`
	Content string       `json:"content,omitempty"`
	Spec    *charts.Spec `json:"spec,omitempty"`
	Insight string       `json:"insight,omitempty"`
	Sources []Source     `json:"sources,omitempty"`
}

// Source is one cited document in a reference block.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// TraceEntry is one named, timed stage of the task's execution, for
// diagnostic display alongside the response.
type TraceEntry struct {
	Type       string `json:"type"`
	Label      string `json:"label"`
	DurationMS int64  `json:"duration_ms"`
	Detail     string `json:"detail,omitempty"`
}

// Result is the structured response synthesized when a task completes.
type Result struct {
	Blocks []Block      `json:"blocks"`
	Trace  []TraceEntry `json:"trace"`
}

// Task is one submitted prompt's lifecycle record, from submission to
// completed result. The Manager exclusively owns all tasks; callers hold only
// the identifier. Mutable fields are guarded by the Manager's lock.
type Task struct {
	ID        string
	Intent    Intent
	Prompt    string
	ChatID    string
	UserID    string
	CreatedAt time.Time

	plan []Step

	// completed counts steps the worker has finished; reported counts step
	// labels delivered to pollers. reported never exceeds completed, and a
	// task reports complete only after every label has been delivered, which
	// preserves the contract that chat clients see every progress stage
	// before the final artifact.
	completed int
	reported  int

	status     Status
	failure    error
	result     *Result
	trace      []TraceEntry
	finishedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
}
