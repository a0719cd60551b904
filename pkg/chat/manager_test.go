package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/pivotlabs/chatlens/pkg/clock"
	"github.com/pivotlabs/chatlens/pkg/dataquery"
	"github.com/pivotlabs/chatlens/pkg/datastore"
	"github.com/pivotlabs/chatlens/pkg/insight"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestManager wires a Manager over a deterministic store and a fake clock,
// so tasks complete in microseconds of real time while still accounting for
// their simulated latencies.
func newTestManager(t *testing.T, opts ...Option) (*Manager, *clock.Fake) {
	t.Helper()

	fake := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	store := datastore.New(
		datastore.WithRand(rand.New(rand.NewPCG(1, 2))),
		datastore.WithUpdateProbability(0),
		datastore.WithClock(fake),
	)
	fetcher := dataquery.New(store, testLogger(), dataquery.WithClock(fake))
	insights := insight.NewService(
		insight.NewMemoryCache(16),
		insight.NewCanned(fake, time.Second),
		fake,
		testLogger(),
		nil,
	)

	m := NewManager(fetcher, insights, testLogger(), append([]Option{WithClock(fake)}, opts...)...)
	t.Cleanup(m.Close)
	return m, fake
}

func waitFor(t *testing.T, m *Manager, id string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Wait(ctx, id); err != nil {
		t.Fatalf("Wait(%s) error = %v", id, err)
	}
}

func TestManager_Submit_EmptyPrompt(t *testing.T) {
	m, _ := newTestManager(t)

	for _, prompt := range []string{"", "   ", "\t\n"} {
		if _, err := m.Submit(prompt, "c1", "u1"); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Submit(%q) error = %v, want ErrInvalidInput", prompt, err)
		}
	}
}

func TestManager_Poll_UnknownTask(t *testing.T) {
	m, _ := newTestManager(t)

	if _, _, err := m.Poll("no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Poll() error = %v, want ErrNotFound", err)
	}
	if _, err := m.Result("no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Result() error = %v, want ErrNotFound", err)
	}
	if err := m.Cancel("no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cancel() error = %v, want ErrNotFound", err)
	}
}

func TestManager_Poll_DeliversEveryLabelThenDone(t *testing.T) {
	m, _ := newTestManager(t)

	id, err := m.Submit("Show this week's product trends", "c1", "u1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, m, id)

	plan := PlanFor(IntentChart)
	for i, step := range plan {
		status, message, err := m.Poll(id)
		if err != nil {
			t.Fatalf("Poll() #%d error = %v", i, err)
		}
		if status != StatusProcessing {
			t.Errorf("Poll() #%d status = %q, want %q", i, status, StatusProcessing)
		}
		if message != step.Message() {
			t.Errorf("Poll() #%d message = %q, want %q", i, message, step.Message())
		}
	}

	// After every label has been delivered, Done is reported idempotently.
	for i := range 3 {
		status, message, err := m.Poll(id)
		if err != nil {
			t.Fatalf("Poll() after completion error = %v", err)
		}
		if status != StatusComplete || message != "Done" {
			t.Errorf("Poll() terminal #%d = (%q, %q), want (complete, Done)", i, status, message)
		}
	}
}

func TestManager_Poll_RepeatsInFlightLabel(t *testing.T) {
	// Real clock: the first step of the general plan sleeps 500ms, so two
	// immediate polls land while it is still in flight.
	fake := clock.NewFake(time.Now())
	store := datastore.New(
		datastore.WithRand(rand.New(rand.NewPCG(1, 2))),
		datastore.WithUpdateProbability(0),
		datastore.WithClock(fake),
	)
	fetcher := dataquery.New(store, testLogger(), dataquery.WithClock(fake))
	insights := insight.NewService(insight.NewMemoryCache(16), insight.NewCanned(fake, 0), fake, testLogger(), nil)

	m := NewManager(fetcher, insights, testLogger())
	defer m.Close()

	id, err := m.Submit("hello", "c1", "u1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	first := PlanFor(IntentGeneral)[0].Message()
	for i := range 2 {
		status, message, err := m.Poll(id)
		if err != nil {
			t.Fatalf("Poll() #%d error = %v", i, err)
		}
		if status != StatusProcessing || message != first {
			t.Errorf("Poll() #%d = (%q, %q), want (processing, %q)", i, status, message, first)
		}
	}
}

func TestManager_Result_NotReady(t *testing.T) {
	// Real clock keeps the task in flight long enough to observe ErrNotReady.
	fake := clock.NewFake(time.Now())
	store := datastore.New(
		datastore.WithRand(rand.New(rand.NewPCG(1, 2))),
		datastore.WithUpdateProbability(0),
		datastore.WithClock(fake),
	)
	fetcher := dataquery.New(store, testLogger(), dataquery.WithClock(fake))
	insights := insight.NewService(insight.NewMemoryCache(16), insight.NewCanned(fake, 0), fake, testLogger(), nil)

	m := NewManager(fetcher, insights, testLogger())
	defer m.Close()

	id, err := m.Submit("hello", "c1", "u1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if _, err := m.Result(id); !errors.Is(err, ErrNotReady) {
		t.Errorf("Result() error = %v, want ErrNotReady", err)
	}
}

func TestManager_Result_Idempotent(t *testing.T) {
	m, _ := newTestManager(t)

	id, err := m.Submit("hello", "c1", "u1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, m, id)

	first, err := m.Result(id)
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	second, err := m.Result(id)
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if first != second {
		t.Error("repeated Result() calls should return the same object")
	}
}

func TestManager_ChartTaskResult(t *testing.T) {
	m, _ := newTestManager(t)

	id, err := m.Submit("Show this week's product trends", "c1", "u1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, m, id)

	res, err := m.Result(id)
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}

	if len(res.Blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(res.Blocks))
	}
	if res.Blocks[0].Type != BlockText {
		t.Errorf("block[0].Type = %q, want text", res.Blocks[0].Type)
	}

	chart := res.Blocks[1]
	if chart.Type != BlockPlotly {
		t.Fatalf("block[1].Type = %q, want plotly", chart.Type)
	}
	if chart.Spec == nil {
		t.Fatal("block[1].Spec is nil")
	}
	if chart.Spec.Title != "📈 30-Day Sales Trend" {
		t.Errorf("chart title = %q", chart.Spec.Title)
	}
	if len(chart.Spec.Traces) != 3 {
		t.Errorf("got %d traces, want 3 (one per product)", len(chart.Spec.Traces))
	}
	if chart.Insight == "" {
		t.Error("chart block has no insight")
	}

	if res.Blocks[2].Content != "Notice how fast it loads if you ask again (Data & Insight Cache Hit)!" {
		t.Errorf("block[2].Content = %q", res.Blocks[2].Content)
	}

	if len(res.Trace) == 0 {
		t.Fatal("result has no trace entries")
	}
	labels := map[string]bool{}
	for _, e := range res.Trace {
		labels[e.Label] = true
	}
	for _, want := range []string{"Intent detection", "fetch_data", "generate_chart", "generate_insight"} {
		if !labels[want] {
			t.Errorf("trace missing entry %q", want)
		}
	}
}

func TestManager_MapTaskResult(t *testing.T) {
	m, _ := newTestManager(t)

	id, err := m.Submit("show the user distribution map", "c1", "u1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, m, id)

	res, err := m.Result(id)
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}

	if len(res.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(res.Blocks))
	}
	chart := res.Blocks[1]
	if chart.Type != BlockPlotly || chart.Spec == nil {
		t.Fatal("block[1] should carry the map spec")
	}
	if len(chart.Spec.Points) != 100 {
		t.Errorf("got %d points, want 100", len(chart.Spec.Points))
	}
}

func TestManager_RAGTaskResult(t *testing.T) {
	m, _ := newTestManager(t)

	id, err := m.Submit("what is the remote work policy", "c1", "u1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, m, id)

	res, err := m.Result(id)
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}

	if len(res.Blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(res.Blocks))
	}
	ref := res.Blocks[2]
	if ref.Type != BlockReference {
		t.Fatalf("block[2].Type = %q, want reference", ref.Type)
	}
	if len(ref.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(ref.Sources))
	}
	if ref.Sources[0].Title != "2025 Employee Handbook (v2.1)" {
		t.Errorf("source[0].Title = %q", ref.Sources[0].Title)
	}
	if ref.Sources[1].Title != "Remote Work Policy" {
		t.Errorf("source[1].Title = %q", ref.Sources[1].Title)
	}
}

func TestManager_GeneralTaskResult(t *testing.T) {
	m, _ := newTestManager(t)

	id, err := m.Submit("hello there", "c1", "u1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, m, id)

	res, err := m.Result(id)
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}

	if len(res.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(res.Blocks))
	}
	for _, b := range res.Blocks {
		if b.Type != BlockText {
			t.Errorf("block type = %q, want text", b.Type)
		}
	}
}

func TestManager_Cancel(t *testing.T) {
	// Real clock keeps the task running so Cancel races nothing.
	fake := clock.NewFake(time.Now())
	store := datastore.New(
		datastore.WithRand(rand.New(rand.NewPCG(1, 2))),
		datastore.WithUpdateProbability(0),
		datastore.WithClock(fake),
	)
	fetcher := dataquery.New(store, testLogger(), dataquery.WithClock(fake))
	insights := insight.NewService(insight.NewMemoryCache(16), insight.NewCanned(fake, 0), fake, testLogger(), nil)

	m := NewManager(fetcher, insights, testLogger())
	defer m.Close()

	id, err := m.Submit("what is the remote work policy", "c1", "u1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if err := m.Cancel(id); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	if _, _, err := m.Poll(id); !errors.Is(err, ErrCanceled) {
		t.Errorf("Poll() after cancel error = %v, want ErrCanceled", err)
	}
	if _, err := m.Result(id); !errors.Is(err, ErrCanceled) {
		t.Errorf("Result() after cancel error = %v, want ErrCanceled", err)
	}

	// Canceling again is a no-op.
	if err := m.Cancel(id); err != nil {
		t.Errorf("second Cancel() error = %v, want nil", err)
	}
}

func TestManager_CancelCompletedIsNoOp(t *testing.T) {
	m, _ := newTestManager(t)

	id, err := m.Submit("hello", "c1", "u1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, m, id)

	if err := m.Cancel(id); err != nil {
		t.Fatalf("Cancel() on completed task error = %v", err)
	}

	// The completed result survives.
	if _, err := m.Result(id); err != nil {
		t.Errorf("Result() after late cancel error = %v", err)
	}
}

func TestManager_Timeout(t *testing.T) {
	// The general plan's first step advances the fake clock by 500ms, past
	// the 400ms deadline, so the worker fails before the second step.
	m, _ := newTestManager(t, WithTaskTimeout(400*time.Millisecond))

	id, err := m.Submit("hello", "c1", "u1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, m, id)

	if _, _, err := m.Poll(id); !errors.Is(err, ErrTimeout) {
		t.Errorf("Poll() after timeout error = %v, want ErrTimeout", err)
	}
	if _, err := m.Result(id); !errors.Is(err, ErrTimeout) {
		t.Errorf("Result() after timeout error = %v, want ErrTimeout", err)
	}
}

func TestManager_TTLEviction(t *testing.T) {
	m, fake := newTestManager(t, WithTaskTTL(10*time.Minute))

	id, err := m.Submit("hello", "c1", "u1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, m, id)

	// Still queryable within the TTL.
	if evicted := m.removeExpired(); evicted != 0 {
		t.Errorf("removeExpired() = %d within TTL, want 0", evicted)
	}

	fake.Advance(11 * time.Minute)

	if evicted := m.removeExpired(); evicted != 1 {
		t.Errorf("removeExpired() = %d past TTL, want 1", evicted)
	}
	if _, _, err := m.Poll(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Poll() after eviction error = %v, want ErrNotFound", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after eviction, want 0", m.Len())
	}
}

func TestManager_InsightCachedAcrossTasks(t *testing.T) {
	m, fake := newTestManager(t)

	first, err := m.Submit("Show this week's product trends", "c1", "u1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, m, first)
	sleepsAfterFirst := len(fake.Slept())

	second, err := m.Submit("Show this week's product trends", "c1", "u1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, m, second)

	// The second task's insight step hits the cache, so the 1s generation
	// latency appears exactly once across both runs.
	var generations int
	for _, d := range fake.Slept() {
		if d == time.Second {
			generations++
		}
	}
	if generations != 1 {
		t.Errorf("insight generated %d times across two identical tasks, want 1", generations)
	}
	if sleepsAfterFirst == 0 {
		t.Error("first task recorded no simulated latencies")
	}

	ra, err := m.Result(first)
	if err != nil {
		t.Fatalf("Result(first) error = %v", err)
	}
	rb, err := m.Result(second)
	if err != nil {
		t.Fatalf("Result(second) error = %v", err)
	}
	if ra.Blocks[1].Insight != rb.Blocks[1].Insight {
		t.Error("both tasks should carry the same cached insight")
	}
}

func TestManager_ConcurrentSubmissions(t *testing.T) {
	m, _ := newTestManager(t)

	prompts := []string{
		"Show this week's product trends",
		"user distribution map",
		"what is the policy",
		"hello",
	}

	var wg sync.WaitGroup
	ids := make([]string, len(prompts)*5)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := m.Submit(prompts[i%len(prompts)], "c1", "u1")
			if err != nil {
				t.Errorf("Submit() error = %v", err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id == "" {
			continue
		}
		waitFor(t, m, id)
		if _, err := m.Result(id); err != nil {
			t.Errorf("Result(%s) error = %v", id, err)
		}
	}
}

type recordingMetrics struct {
	mu        sync.Mutex
	submitted map[string]int
	finished  map[string]int
	steps     int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{submitted: map[string]int{}, finished: map[string]int{}}
}

func (r *recordingMetrics) TaskSubmitted(intent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted[intent]++
}

func (r *recordingMetrics) TaskFinished(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished[status]++
}

func (r *recordingMetrics) ObserveStep(float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps++
}

func (r *recordingMetrics) SetActiveTasks(int) {}

func TestManager_Metrics(t *testing.T) {
	rec := newRecordingMetrics()
	m, _ := newTestManager(t, WithMetrics(rec))

	id, err := m.Submit("hello", "c1", "u1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, m, id)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.submitted["general"] != 1 {
		t.Errorf("submitted[general] = %d, want 1", rec.submitted["general"])
	}
	if rec.finished["complete"] != 1 {
		t.Errorf("finished[complete] = %d, want 1", rec.finished["complete"])
	}
	if rec.steps != len(PlanFor(IntentGeneral)) {
		t.Errorf("observed %d steps, want %d", rec.steps, len(PlanFor(IntentGeneral)))
	}
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	m.Close()
	m.Close()
}

func TestPlanFor_Shapes(t *testing.T) {
	tests := []struct {
		intent Intent
		steps  int
	}{
		{IntentChart, 5},
		{IntentMap, 5},
		{IntentRAG, 4},
		{IntentGeneral, 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.intent), func(t *testing.T) {
			plan := PlanFor(tt.intent)
			if len(plan) != tt.steps {
				t.Errorf("PlanFor(%s) has %d steps, want %d", tt.intent, len(plan), tt.steps)
			}
			for i, s := range plan {
				if s.Icon == "" || s.Label == "" {
					t.Errorf("step %d missing icon or label: %+v", i, s)
				}
			}
		})
	}
}
