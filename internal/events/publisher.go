package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/queue"
)

// Event is the progress snapshot published to a job's channel.
type Event struct {
	JobID      string    `json:"job_id"`
	Title      string    `json:"title,omitempty"`
	Status     string    `json:"status"`
	StageIndex int       `json:"stage_index"`
	Stage      string    `json:"stage,omitempty"`
	Progress   float64   `json:"progress"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// FromJob captures the publishable state of a job. The timestamp is stamped
// here so every published event orders consistently even when the job row's
// updated_at lags.
func FromJob(job *queue.Job) Event {
	if job == nil {
		return Event{Timestamp: time.Now().UTC()}
	}
	return Event{
		JobID:      job.ID,
		Title:      job.Title,
		Status:     string(job.Status),
		StageIndex: job.StageIndex,
		Stage:      job.ProgressStage,
		Progress:   job.ProgressPercent,
		Message:    job.ProgressMessage,
		Error:      job.ErrorMessage,
		Timestamp:  time.Now().UTC(),
	}
}

// Publisher delivers job progress events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NewPublisher builds a Redis-backed publisher when [events] redis_addr is
// configured, and a no-op publisher otherwise.
func NewPublisher(cfg *config.Config, logger *slog.Logger) Publisher {
	addr := strings.TrimSpace(cfg.Events.RedisAddr)
	if addr == "" {
		return NopPublisher{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Events.RedisPassword,
		DB:       cfg.Events.RedisDB,
	})
	return &redisPublisher{
		client: client,
		prefix: cfg.EventChannelPrefix(),
		logger: logging.NewComponentLogger(logger, "events"),
	}
}

type redisPublisher struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

func (p *redisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	channel := channelFor(p.prefix, event.JobID)
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	p.logger.Debug("published job event",
		logging.String(logging.FieldJobID, event.JobID),
		logging.String("channel", channel),
		logging.String("status", event.Status),
	)
	return nil
}

func (p *redisPublisher) Close() error {
	return p.client.Close()
}

func channelFor(prefix, jobID string) string {
	if jobID == "" {
		return prefix
	}
	return prefix + ":" + jobID
}

// NopPublisher drops every event. Used when eventing is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
