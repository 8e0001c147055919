package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"loom/internal/config"
	"loom/internal/events"
	"loom/internal/logging"
	"loom/internal/notifications"
	"loom/internal/pipeline"
	"loom/internal/queue"
	"loom/internal/ratelimit"
)

// Manager coordinates job processing across the registered pipeline stages.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service
	events   events.Publisher
	board    *queue.HandoffBoard
	budget   *ratelimit.Budget

	heartbeat    *HeartbeatMonitor
	pollInterval time.Duration

	mu      sync.RWMutex
	stages  []pipeline.Definition
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	workers chan struct{}
	active  map[string]context.CancelFunc
	lastErr error

	wg sync.WaitGroup
}

// ManagerOption configures optional Manager collaborators.
type ManagerOption func(*Manager)

// WithNotifier replaces the config-derived notification service.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) { m.notifier = notifier }
}

// WithPublisher wires a job event publisher. The manager does not close it;
// the caller owns its lifecycle.
func WithPublisher(publisher events.Publisher) ManagerOption {
	return func(m *Manager) { m.events = publisher }
}

// WithBudget exposes the generation token budget through Status.
func WithBudget(budget *ratelimit.Budget) ManagerOption {
	return func(m *Manager) { m.budget = budget }
}

// WithHandoffBoard replaces the manager's handoff board, letting the daemon
// share one board between the workflow and the status read path.
func WithHandoffBoard(board *queue.HandoffBoard) ManagerOption {
	return func(m *Manager) { m.board = board }
}

// NewManager constructs a workflow manager. Stages are registered separately
// via ConfigureStages before Start.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		notifier:     notifications.NewService(cfg),
		events:       events.NopPublisher{},
		board:        queue.NewHandoffBoard(),
		pollInterval: time.Duration(cfg.Workers.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workers.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workers.HeartbeatTimeout)*time.Second,
		),
		active: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ConfigureStages registers the pipeline stage definitions the manager runs,
// in execution order.
func (m *Manager) ConfigureStages(defs []pipeline.Definition) {
	stages := make([]pipeline.Definition, len(defs))
	copy(stages, defs)
	m.mu.Lock()
	m.stages = stages
	m.mu.Unlock()
}

// Handoff returns the board where workers post terminal results. Status reads
// merge it before reporting so a result survives even when the terminal
// database write failed.
func (m *Manager) Handoff() *queue.HandoffBoard {
	return m.board
}

func (m *Manager) isActive(jobID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.active[jobID]
	return ok
}

func (m *Manager) release(jobID string) {
	m.mu.Lock()
	delete(m.active, jobID)
	m.mu.Unlock()
}

func (m *Manager) cancelActive(jobID string) {
	m.mu.RLock()
	cancel := m.active[jobID]
	m.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}
