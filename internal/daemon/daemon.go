package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/gofrs/flock"

	"loom/internal/config"
	"loom/internal/events"
	"loom/internal/logging"
	"loom/internal/notifications"
	"loom/internal/preflight"
	"loom/internal/profiles"
	"loom/internal/queue"
	"loom/internal/services"
	"loom/internal/workflow"
)

const maxTitleLength = 200

const maxSourcesPerJob = 10

// Daemon coordinates the background services and enforces single-instance
// execution via a lock file in the log directory.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	notifier notifications.Service
	events   events.Publisher
	catalog  *profiles.Catalog
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
	LogPath      string
	Checks       []preflight.Result
}

// SubmitRequest describes a job submission. Sources carry already-extracted
// document text; file ingestion happens on the client side.
type SubmitRequest struct {
	Title                 string
	ChannelProfile        string
	TargetDurationSeconds int
	CustomPrompt          string
	Sources               []queue.SourceText
}

// Option customizes daemon construction.
type Option func(*Daemon)

// WithNotifier overrides the ntfy notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(d *Daemon) { d.notifier = notifier }
}

// WithPublisher overrides the job event publisher.
func WithPublisher(publisher events.Publisher) Option {
	return func(d *Daemon) { d.events = publisher }
}

// WithCatalog overrides the channel profile catalog.
func WithCatalog(catalog *profiles.Catalog) Option {
	return func(d *Daemon) { d.catalog = catalog }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "loomd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		logPath:  filepath.Join(cfg.Paths.LogDir, logging.LogFileName),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.notifier == nil {
		d.notifier = notifications.NewService(cfg)
	}
	if d.events == nil {
		d.events = events.NopPublisher{}
	}
	if d.catalog == nil {
		catalog, err := profiles.Load(cfg.Paths.ProfilesFile)
		if err != nil {
			return nil, fmt.Errorf("load channel profiles: %w", err)
		}
		d.catalog = catalog
	}
	return d, nil
}

// Start launches the workflow manager and acquires the daemon lock.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another loom daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("loom daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("loom daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Submit validates a submission, persists the job, and hands it to the
// workflow. When the workflow is not running the job stays pending and the
// scheduler picks it up on the next poll after start.
func (d *Daemon) Submit(ctx context.Context, req SubmitRequest) (*queue.Job, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "submit", "job title is required", nil)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, services.Wrap(services.ErrValidation, "daemon", "submit", fmt.Sprintf("job title exceeds %d characters", maxTitleLength), nil)
	}
	if len(req.Sources) == 0 {
		return nil, services.Wrap(services.ErrValidation, "daemon", "submit", "at least one source document is required", nil)
	}
	if len(req.Sources) > maxSourcesPerJob {
		return nil, services.Wrap(services.ErrValidation, "daemon", "submit", fmt.Sprintf("at most %d source documents are allowed", maxSourcesPerJob), nil)
	}
	for i, source := range req.Sources {
		if strings.TrimSpace(source.Content) == "" {
			name := strings.TrimSpace(source.Name)
			if name == "" {
				name = fmt.Sprintf("#%d", i+1)
			}
			return nil, services.Wrap(services.ErrValidation, "daemon", "submit", fmt.Sprintf("source %s has no extractable text", name), nil)
		}
	}

	duration := req.TargetDurationSeconds
	if duration == 0 {
		duration = d.cfg.Video.DefaultDurationSeconds
	}
	if duration < config.MinTargetDurationSeconds || duration > config.MaxTargetDurationSeconds {
		return nil, services.Wrap(services.ErrValidation, "daemon", "submit",
			fmt.Sprintf("target duration %ds outside [%d, %d]", duration, config.MinTargetDurationSeconds, config.MaxTargetDurationSeconds), nil)
	}

	profileID := strings.TrimSpace(req.ChannelProfile)
	if profileID == "" {
		profileID = profiles.DefaultID
	}
	profile, ok := d.catalog.Get(profileID)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "daemon", "submit", fmt.Sprintf("unknown channel profile %q", profileID), nil)
	}

	job, err := d.store.NewJob(ctx, title, profile.ID, duration, strings.TrimSpace(req.CustomPrompt), req.Sources)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	d.logger.Info("job queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("title", job.Title),
		logging.String("channel_profile", job.ChannelProfile),
		logging.Int("sources", job.SourceCount),
		logging.Int("target_duration_seconds", job.TargetDurationSeconds),
		logging.String(logging.FieldEventType, "job_queued"))

	if err := d.notifier.Publish(ctx, notifications.EventJobQueued, notifications.Payload{
		"title":   job.Title,
		"sources": job.SourceCount,
	}); err != nil {
		d.logger.Debug("queued notification failed", logging.Error(err))
	}
	if err := d.events.Publish(ctx, events.FromJob(job)); err != nil {
		d.logger.Debug("job event publish failed", logging.Error(err))
	}

	if _, err := d.workflow.Dispatch(job); err != nil {
		// Not fatal: the scheduler re-dispatches pending jobs on its poll.
		d.logger.Debug("immediate dispatch skipped", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
	}
	return job, nil
}

// JobStatus returns the persisted job, folding in any completion the
// workflow posted but has not yet written back.
func (d *Daemon) JobStatus(ctx context.Context, jobID string) (*queue.Job, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "job status", "job id is required", nil)
	}
	if board := d.workflow.Handoff(); board != nil {
		if err := board.Merge(ctx, d.store, jobID); err != nil {
			d.logger.Warn("failed to merge job completion", logging.String(logging.FieldJobID, jobID), logging.Error(err))
		}
	}
	job, err := d.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "daemon", "job status", fmt.Sprintf("job %s not found", jobID), nil)
	}
	return job, nil
}

// ListJobs returns queue jobs filtered by optional statuses, oldest first.
func (d *Daemon) ListJobs(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error) {
	if board := d.workflow.Handoff(); board != nil {
		if err := board.MergeAll(ctx, d.store); err != nil {
			d.logger.Warn("failed to merge job completions", logging.Error(err))
		}
	}
	return d.store.List(ctx, statuses...)
}

// Cancel requests cancellation of a pending or processing job.
func (d *Daemon) Cancel(ctx context.Context, jobID string) error {
	return d.workflow.Cancel(ctx, jobID)
}

// ClearCompleted removes completed jobs and returns the count.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes failed jobs and returns the count.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	return d.store.ClearFailed(ctx)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status, including fresh preflight
// results so callers see live binary and directory availability.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  filepath.Join(d.cfg.Paths.LogDir, "queue.db"),
		LockFilePath: d.lockPath,
		LogPath:      d.logPath,
		Checks:       preflight.RunAll(ctx, d.cfg),
	}
}
