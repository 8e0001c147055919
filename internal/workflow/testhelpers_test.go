package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"loom/internal/config"
	"loom/internal/events"
	"loom/internal/notifications"
	"loom/internal/pipeline"
	"loom/internal/queue"
	"loom/internal/stage"
	"loom/internal/testsupport"
)

// stubStage is a scriptable pipeline stage. Hooks default to no-ops so tests
// only wire the behavior they exercise.
type stubStage struct {
	name    string
	prepare func(*queue.Job) error
	execute func(context.Context, *queue.Job) error
	health  stage.Health

	mu   sync.Mutex
	runs int
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(_ context.Context, job *queue.Job) error {
	if s.prepare != nil {
		return s.prepare(job)
	}
	return nil
}

func (s *stubStage) Execute(ctx context.Context, job *queue.Job) error {
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
	if s.execute != nil {
		return s.execute(ctx, job)
	}
	return nil
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

func (s *stubStage) runCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// stubPipeline wraps stages into ordered definitions starting at index 1.
func stubPipeline(stages ...*stubStage) []pipeline.Definition {
	defs := make([]pipeline.Definition, 0, len(stages))
	for i, s := range stages {
		defs = append(defs, pipeline.Definition{Index: i + 1, Name: s.name, Handler: s})
	}
	return defs
}

// completingStage marks the job completed the way the final pipeline stage
// does.
func completingStage(name, outputPath string) *stubStage {
	s := newStubStage(name)
	s.execute = func(_ context.Context, job *queue.Job) error {
		job.MarkCompleted(outputPath, 2048, 1.5, 0.9)
		return nil
	}
	return s
}

type stubNotifier struct {
	mu       sync.Mutex
	events   []notifications.Event
	payloads []notifications.Payload
}

func (n *stubNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.payloads = append(n.payloads, payload)
	return nil
}

func (n *stubNotifier) count(event notifications.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, e := range n.events {
		if e == event {
			total++
		}
	}
	return total
}

func (n *stubNotifier) payloadFor(event notifications.Event) (notifications.Payload, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, e := range n.events {
		if e == event {
			return n.payloads[i], true
		}
	}
	return nil, false
}

type stubPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *stubPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *stubPublisher) Close() error { return nil }

func (p *stubPublisher) statuses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make([]string, 0, len(p.events))
	for _, e := range p.events {
		seen = append(seen, e.Status)
	}
	return seen
}

func testConfig(t testing.TB) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workers.QueuePollInterval = 1
	return cfg
}

// waitForStatus polls until the job reaches the wanted status or the deadline
// expires.
func waitForStatus(t *testing.T, store *queue.Store, id string, want queue.Status) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", id, want)
	return nil
}

// waitFor polls an arbitrary condition with the standard test deadline.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
