// Package chat implements the assistant's core task state machine.
//
// A caller submits a prompt and gets back a task identifier. The prompt is
// classified into an intent by an ordered keyword rule table, the intent
// selects a fixed step plan, and a per-task worker goroutine executes the
// plan: pacing steps on the injected clock and running the fetch → chart →
// insight pipeline for analytics intents. Progress is therefore independent
// of polling — Poll is a non-blocking read that delivers finished step labels
// in order, and Result returns the synthesized response once the task
// completes.
//
// The Manager owns the task registry. Terminal tasks are evicted after a TTL
// by a background cleanup goroutine, workers run under a per-task deadline,
// and cancellation is cooperative, checked between steps.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pivotlabs/chatlens/pkg/charts"
	"github.com/pivotlabs/chatlens/pkg/clock"
	"github.com/pivotlabs/chatlens/pkg/dataquery"
	"github.com/pivotlabs/chatlens/pkg/dataset"
	"github.com/pivotlabs/chatlens/pkg/insight"
)

// Metrics receives task lifecycle observations. Implementations must be safe
// for concurrent use. A nil Metrics disables instrumentation.
type Metrics interface {
	TaskSubmitted(intent string)
	TaskFinished(status string)
	ObserveStep(seconds float64)
	SetActiveTasks(n int)
}

// Manager owns the task registry and drives task progress.
// It is safe for concurrent use by multiple goroutines.
type Manager struct {
	logger     *slog.Logger
	clock      clock.Clock
	fetcher    *dataquery.Fetcher
	insights   *insight.Service
	classifier *Classifier
	metrics    Metrics

	taskTimeout time.Duration
	taskTTL     time.Duration

	mu     sync.Mutex
	tasks  map[string]*Task
	active int

	baseCtx    context.Context
	baseCancel context.CancelFunc

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	closeOnce     sync.Once
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used for step pacing and deadlines.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithClassifier sets the intent classifier.
func WithClassifier(c *Classifier) Option {
	return func(m *Manager) { m.classifier = c }
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithTaskTimeout bounds how long a task may run before it fails with
// ErrTimeout. The default is 2 minutes.
func WithTaskTimeout(d time.Duration) Option {
	return func(m *Manager) { m.taskTimeout = d }
}

// WithTaskTTL sets how long finished tasks stay queryable before the cleanup
// goroutine evicts them. The default is 15 minutes.
func WithTaskTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.taskTTL = ttl }
}

// NewManager creates a Manager and starts its cleanup goroutine.
// Close must be called to stop background work.
func NewManager(fetcher *dataquery.Fetcher, insights *insight.Service, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		logger:      logger,
		clock:       clock.New(),
		fetcher:     fetcher,
		insights:    insights,
		classifier:  NewClassifier(nil),
		taskTimeout: 2 * time.Minute,
		taskTTL:     15 * time.Minute,
		tasks:       make(map[string]*Task),
		baseCtx:     ctx,
		baseCancel:  cancel,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.cleanupTicker = time.NewTicker(time.Minute)
	go m.runCleanup()

	return m
}

// Close stops the cleanup goroutine and cancels all running workers.
// It is safe to call multiple times.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.stopCleanup)
		<-m.cleanupDone
		m.cleanupTicker.Stop()
		m.baseCancel()
	})
}

func (m *Manager) runCleanup() {
	defer close(m.cleanupDone)

	for {
		select {
		case <-m.cleanupTicker.C:
			evicted := m.removeExpired()
			if evicted > 0 {
				m.logger.Debug("evicted finished tasks", "count", evicted)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// removeExpired evicts terminal tasks older than the TTL and returns how
// many were removed.
func (m *Manager) removeExpired() int {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, t := range m.tasks {
		if t.status.Terminal() && now.Sub(t.finishedAt) > m.taskTTL {
			delete(m.tasks, id)
			evicted++
		}
	}
	return evicted
}

// Submit registers a new task for prompt and starts its worker. It returns
// the task identifier. The only validation is a non-empty prompt; any prompt
// content produces some completed result, unclassified prompts falling back
// to the general intent.
func (m *Manager) Submit(prompt, chatID, userID string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt is empty", ErrInvalidInput)
	}

	intent := m.classifier.Classify(prompt)
	taskCtx, cancel := context.WithCancel(m.baseCtx)

	t := &Task{
		ID:        uuid.NewString(),
		Intent:    intent,
		Prompt:    prompt,
		ChatID:    chatID,
		UserID:    userID,
		CreatedAt: m.clock.Now(),
		plan:      PlanFor(intent),
		status:    StatusPending,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.tasks[t.ID] = t
	m.active++
	active := m.active
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.TaskSubmitted(string(intent))
		m.metrics.SetActiveTasks(active)
	}
	m.logger.Info("task submitted",
		"task_id", t.ID,
		"intent", intent,
		"chat_id", chatID,
		"user_id", userID,
		"steps", len(t.plan),
	)

	go m.run(taskCtx, t)

	return t.ID, nil
}

// Poll returns the task's current status and progress message without
// blocking. Finished step labels are delivered in plan order, one per call;
// if the worker has not finished a new step since the last poll, the
// in-flight step's label is repeated. A task reports {complete, "Done"} only
// after all of its step labels have been delivered, and keeps doing so
// idempotently on every subsequent call.
func (m *Manager) Poll(id string) (Status, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	switch t.status {
	case StatusCanceled:
		return "", "", fmt.Errorf("%w: %s", ErrCanceled, id)
	case StatusFailed:
		return "", "", fmt.Errorf("%w: %s", t.failure, id)
	}

	if t.reported < t.completed {
		step := t.plan[t.reported]
		t.reported++
		return StatusProcessing, step.Message(), nil
	}

	if t.status == StatusComplete {
		return StatusComplete, "Done", nil
	}

	// Worker is mid-step: repeat the in-flight label without consuming it.
	idx := min(t.reported, len(t.plan)-1)
	return StatusProcessing, t.plan[idx].Message(), nil
}

// Result returns the synthesized response of a completed task. It is
// idempotent and side-effect free: repeated calls return the same object.
func (m *Manager) Result(id string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	switch t.status {
	case StatusComplete:
		return t.result, nil
	case StatusCanceled:
		return nil, fmt.Errorf("%w: %s", ErrCanceled, id)
	case StatusFailed:
		return nil, fmt.Errorf("%w: %s", t.failure, id)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotReady, id)
	}
}

// Cancel stops a running task. Canceling a finished task is a safe no-op.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if t.status.Terminal() {
		m.mu.Unlock()
		return nil
	}

	t.status = StatusCanceled
	t.failure = ErrCanceled
	t.finishedAt = m.clock.Now()
	m.active--
	active := m.active
	m.mu.Unlock()

	t.cancel()

	if m.metrics != nil {
		m.metrics.TaskFinished(string(StatusCanceled))
		m.metrics.SetActiveTasks(active)
	}
	m.logger.Info("task canceled", "task_id", id)
	return nil
}

// Wait blocks until the task reaches a terminal state or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return nil
	}
}

// Len returns the number of registered tasks, including finished ones that
// have not been evicted yet. Useful for tests and metrics.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// pipeline accumulates the artifacts produced by action steps.
type pipeline struct {
	spec    pipelineSpec
	hasSpec bool
	data    dataset.Dataset
	chart   charts.Spec
	insight string
}

// run is the per-task worker. It executes each step in order under the task
// deadline, records the execution trace, and synthesizes the final result
// when the plan is exhausted.
func (m *Manager) run(ctx context.Context, t *Task) {
	defer close(t.done)

	start := m.clock.Now()
	p := pipeline{}
	p.spec, p.hasSpec = pipelineFor(t.Intent)

	for i, step := range t.plan {
		if ctx.Err() != nil {
			m.fail(t, StatusCanceled, ErrCanceled)
			return
		}
		if m.clock.Now().Sub(start) > m.taskTimeout {
			m.fail(t, StatusFailed, ErrTimeout)
			return
		}

		stepStart := m.clock.Now()
		if err := m.execStep(ctx, &p, step); err != nil {
			if m.clock.Now().Sub(start) > m.taskTimeout {
				m.fail(t, StatusFailed, ErrTimeout)
			} else {
				m.fail(t, StatusCanceled, ErrCanceled)
			}
			return
		}
		elapsed := m.clock.Now().Sub(stepStart)

		if m.metrics != nil {
			m.metrics.ObserveStep(elapsed.Seconds())
		}

		m.mu.Lock()
		if step.TraceLabel != "" {
			t.trace = append(t.trace, TraceEntry{
				Type:       step.TraceType,
				Label:      step.TraceLabel,
				DurationMS: elapsed.Milliseconds(),
				Detail:     step.TraceDetail,
			})
		}
		t.completed = i + 1
		if t.status == StatusPending {
			t.status = StatusProcessing
		}
		m.mu.Unlock()
	}

	result := m.synthesize(t, &p)

	m.mu.Lock()
	if t.status.Terminal() {
		// Lost the race with Cancel; keep the terminal state.
		m.mu.Unlock()
		return
	}
	t.status = StatusComplete
	t.result = result
	t.finishedAt = m.clock.Now()
	m.active--
	active := m.active
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.TaskFinished(string(StatusComplete))
		m.metrics.SetActiveTasks(active)
	}
	m.logger.Info("task complete",
		"task_id", t.ID,
		"intent", t.Intent,
		"duration_ms", m.clock.Now().Sub(start).Milliseconds(),
	)
}

func (m *Manager) execStep(ctx context.Context, p *pipeline, step Step) error {
	switch step.Op {
	case OpFetch:
		if !p.hasSpec {
			return nil
		}
		data, err := m.fetcher.Fetch(ctx, p.spec.fetch)
		if err != nil {
			return err
		}
		p.data = data
		return nil

	case OpChart:
		if !p.hasSpec {
			return nil
		}
		p.chart = charts.Generate(p.spec.kind, p.data, p.spec.cfg)
		return nil

	case OpInsight:
		if !p.hasSpec {
			return nil
		}
		key := insightKey(p.spec.fetch, p.data)
		text, err := m.insights.Insight(ctx, key, p.spec.kind)
		if err != nil {
			return err
		}
		p.insight = text
		return nil

	default:
		return m.clock.Sleep(ctx, step.Duration)
	}
}

// insightKey derives the insight cache key from the fetch parameters and the
// content of the fetched data. Keying on content keeps the cache stable
// across process restarts and dataset copies.
func insightKey(req dataquery.Request, data dataset.Dataset) string {
	return req.Source + "|" + strings.Join(req.Columns, "-") + "|" + data.Fingerprint()
}

func (m *Manager) fail(t *Task, status Status, kind error) {
	m.mu.Lock()
	if t.status.Terminal() {
		m.mu.Unlock()
		return
	}
	t.status = status
	t.failure = kind
	t.finishedAt = m.clock.Now()
	m.active--
	active := m.active
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.TaskFinished(string(status))
		m.metrics.SetActiveTasks(active)
	}
	m.logger.Warn("task did not complete", "task_id", t.ID, "status", status, "reason", kind)
}
