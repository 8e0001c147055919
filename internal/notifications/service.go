package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"loom/internal/config"
)

const userAgent = "Loom/0.1.0"

// Event identifies a job lifecycle milestone worth telling the user about.
type Event string

const (
	// EventJobQueued fires when a submission is accepted into the queue.
	EventJobQueued Event = "job_queued"
	// EventJobCompleted fires when a video lands in the output directory.
	EventJobCompleted Event = "job_completed"
	// EventJobFailed fires when a job reaches the failed state, including
	// user cancellation.
	EventJobFailed Event = "job_failed"
	// EventTest exercises the notification channel on demand.
	EventTest Event = "test"
)

// Payload carries event-specific values referenced by the message templates.
// Missing keys degrade to empty strings rather than failing the publish.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		queued:    cfg.Notifications.JobQueued,
		completed: cfg.Notifications.JobCompleted,
		failed:    cfg.Notifications.JobFailed,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	queued    bool
	completed bool
	failed    bool
}

// Publish formats and delivers the event. Events disabled in configuration
// and events without a template are silently dropped.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventJobQueued:
		if !n.queued {
			return message{}, false
		}
		body := fmt.Sprintf("Queued: %s", payloadString(payload, "title"))
		if sources := payloadInt(payload, "sources"); sources > 0 {
			noun := "sources"
			if sources == 1 {
				noun = "source"
			}
			body = fmt.Sprintf("%s (%d %s)", body, sources, noun)
		}
		return message{
			title: "Loom - Job Queued",
			body:  body,
			tags:  []string{"loom", "job", "queued"},
		}, true
	case EventJobCompleted:
		if !n.completed {
			return message{}, false
		}
		body := fmt.Sprintf("✅ Video ready: %s", payloadString(payload, "title"))
		if duration := payloadDuration(payload, "duration"); duration > 0 {
			body = fmt.Sprintf("%s in %s", body, duration.Round(time.Second))
		}
		if file := payloadString(payload, "outputPath"); file != "" {
			body = fmt.Sprintf("%s\nFile: %s", body, file)
		}
		return message{
			title:    "Loom - Video Ready",
			body:     body,
			tags:     []string{"loom", "job", "completed"},
			priority: "high",
		}, true
	case EventJobFailed:
		if !n.failed {
			return message{}, false
		}
		reason := payloadString(payload, "error")
		if reason == "" {
			reason = "unknown error"
		}
		return message{
			title:    "Loom - Job Failed",
			body:     fmt.Sprintf("❌ Generation failed for %s: %s", payloadString(payload, "title"), reason),
			tags:     []string{"loom", "job", "failed"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Loom - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"loom", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		if v == nil {
			return ""
		}
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

func payloadInt(payload Payload, key string) int {
	if payload == nil {
		return 0
	}
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func payloadDuration(payload Payload, key string) time.Duration {
	if payload == nil {
		return 0
	}
	if v, ok := payload[key].(time.Duration); ok {
		return v
	}
	return 0
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
