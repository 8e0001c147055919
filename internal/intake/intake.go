package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"loom/internal/config"
	"loom/internal/daemon"
	"loom/internal/ingest"
	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/services"
)

// Submitter accepts validated job submissions. *daemon.Daemon satisfies it.
type Submitter interface {
	Submit(ctx context.Context, req daemon.SubmitRequest) (*queue.Job, error)
}

// Submission is the JSON message format accepted on the intake queue.
type Submission struct {
	Title                 string   `json:"title"`
	SourcePaths           []string `json:"source_paths"`
	ChannelProfile        string   `json:"channel_profile,omitempty"`
	TargetDurationSeconds int      `json:"target_duration_seconds,omitempty"`
	CustomPrompt          string   `json:"custom_prompt,omitempty"`
}

// Consumer pulls submissions off an AMQP queue and feeds them to the daemon.
type Consumer struct {
	cfg       *config.Config
	submitter Submitter
	logger    *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	wg      sync.WaitGroup
	started bool
}

// NewConsumer builds an intake consumer. It does not connect until Start.
func NewConsumer(cfg *config.Config, submitter Submitter, logger *slog.Logger) (*Consumer, error) {
	if cfg == nil || submitter == nil {
		return nil, errors.New("intake consumer requires config and submitter")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Consumer{
		cfg:       cfg,
		submitter: submitter,
		logger:    logging.NewComponentLogger(logger, "intake"),
	}, nil
}

// Enabled reports whether an AMQP URL is configured.
func (c *Consumer) Enabled() bool {
	return c != nil && strings.TrimSpace(c.cfg.Intake.AMQPURL) != ""
}

// Start connects to the broker and begins consuming until the context is
// canceled or Close is called. It is a no-op when intake is not configured.
func (c *Consumer) Start(ctx context.Context) error {
	if !c.Enabled() {
		c.logger.Debug("intake disabled, no amqp url configured")
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.New("intake consumer already started")
	}

	conn, err := amqp.Dial(strings.TrimSpace(c.cfg.Intake.AMQPURL))
	if err != nil {
		return fmt.Errorf("connect to amqp broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open amqp channel: %w", err)
	}
	// One unacked message at a time: extraction and submit are cheap, and
	// ordering beats throughput on this queue.
	if err := channel.Qos(1, 0, false); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return fmt.Errorf("set amqp qos: %w", err)
	}
	queueName := c.queueName()
	if _, err := channel.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return fmt.Errorf("declare queue %q: %w", queueName, err)
	}
	deliveries, err := channel.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return fmt.Errorf("consume queue %q: %w", queueName, err)
	}

	c.conn = conn
	c.channel = channel
	c.started = true
	c.logger.Info("intake consumer started", logging.String("queue", queueName))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for delivery := range deliveries {
			c.handleDelivery(ctx, delivery)
		}
	}()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-ctx.Done()
		c.closeConnections()
	}()
	return nil
}

// Close shuts the consumer down and waits for in-flight handling to finish.
func (c *Consumer) Close() {
	c.closeConnections()
	c.wg.Wait()
}

func (c *Consumer) closeConnections() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Consumer) queueName() string {
	if name := strings.TrimSpace(c.cfg.Intake.Queue); name != "" {
		return name
	}
	return "loom.submissions"
}

func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	var submission Submission
	if err := json.Unmarshal(delivery.Body, &submission); err != nil {
		c.logger.Warn("dropping malformed intake message", logging.Error(err))
		c.reject(delivery, false)
		return
	}

	sources, err := ingest.Ingest(submission.SourcePaths)
	if err != nil {
		c.logger.Warn("dropping intake message with unreadable sources",
			logging.String("title", submission.Title),
			logging.Error(err))
		c.reject(delivery, false)
		return
	}

	job, err := c.submitter.Submit(ctx, daemon.SubmitRequest{
		Title:                 submission.Title,
		ChannelProfile:        submission.ChannelProfile,
		TargetDurationSeconds: submission.TargetDurationSeconds,
		CustomPrompt:          submission.CustomPrompt,
		Sources:               sources,
	})
	if err != nil {
		if requeueable(err) {
			c.logger.Warn("requeueing intake message after transient failure",
				logging.String("title", submission.Title),
				logging.Error(err))
			c.reject(delivery, true)
			return
		}
		c.logger.Warn("dropping invalid intake message",
			logging.String("title", submission.Title),
			logging.Error(err))
		c.reject(delivery, false)
		return
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.Warn("failed to ack intake message",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err))
		return
	}
	c.logger.Info("intake submission accepted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("title", job.Title),
		logging.Int("sources", job.SourceCount),
		logging.String(logging.FieldEventType, "intake_accept"))
}

func (c *Consumer) reject(delivery amqp.Delivery, requeue bool) {
	if err := delivery.Nack(false, requeue); err != nil {
		c.logger.Warn("failed to nack intake message", logging.Error(err))
	}
}

// requeueable separates transient submit failures from permanently invalid
// submissions. Validation and not-found errors will fail the same way on
// every redelivery.
func requeueable(err error) bool {
	return !errors.Is(err, services.ErrValidation) &&
		!errors.Is(err, services.ErrConfiguration) &&
		!errors.Is(err, services.ErrNotFound)
}
