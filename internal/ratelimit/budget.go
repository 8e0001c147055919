package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"loom/internal/logging"
	"loom/internal/services"
)

// Token budget policies. PolicyWarn logs when the daily budget is exhausted
// but keeps serving; PolicyStop refuses further acquisitions until the UTC
// day rolls over.
const (
	PolicyWarn = "warn"
	PolicyStop = "stop"
)

// warnFraction is the share of the daily token budget that triggers the
// early warning.
const warnFraction = 0.8

// Clock returns the current time. Swapped in tests.
type Clock func() time.Time

// Sleeper suspends the caller for the supplied duration, honoring context
// cancellation. Swapped in tests.
type Sleeper func(ctx context.Context, d time.Duration) error

// Config carries the pacing quota and daily token budget.
type Config struct {
	// RequestsPerMinute is the upstream per-minute call quota. Calls are
	// spaced 60s/RequestsPerMinute apart.
	RequestsPerMinute int
	// DailyTokenLimit is the upstream daily token budget.
	DailyTokenLimit int64
	// Policy selects warn or stop behavior once the daily budget is spent.
	Policy string
}

// Option adjusts optional Budget dependencies.
type Option func(*Budget)

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(b *Budget) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// WithSleeper overrides the pacing sleep.
func WithSleeper(sleep Sleeper) Option {
	return func(b *Budget) {
		if sleep != nil {
			b.sleep = sleep
		}
	}
}

// WithLogger attaches a logger for pacing milestones and budget warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Budget) {
		if logger != nil {
			b.logger = logging.NewComponentLogger(logger, "ratelimit")
		}
	}
}

// Budget enforces upstream API quotas for every generation call in the
// process. One Budget is shared by all concurrently running jobs so that
// pacing holds regardless of how many workers are in flight.
type Budget struct {
	interval time.Duration
	rpm      int
	limit    int64
	policy   string

	clock  Clock
	sleep  Sleeper
	logger *slog.Logger

	mu           sync.Mutex
	nextSlot     time.Time
	requestCount int64
	tokensUsed   int64
	tokenDay     string
	warnedNear   bool
	warnedOver   bool
}

// New builds a Budget from cfg. Zero or negative quota values fall back to
// the free-tier defaults (15 requests/minute, 1M tokens/day).
func New(cfg Config, opts ...Option) *Budget {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 15
	}
	limit := cfg.DailyTokenLimit
	if limit <= 0 {
		limit = 1_000_000
	}
	policy := cfg.Policy
	if policy != PolicyStop {
		policy = PolicyWarn
	}
	b := &Budget{
		interval: time.Minute / time.Duration(rpm),
		rpm:      rpm,
		limit:    limit,
		policy:   policy,
		clock:    time.Now,
		logger:   logging.NewNop(),
	}
	b.sleep = func(ctx context.Context, d time.Duration) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Interval reports the enforced spacing between calls.
func (b *Budget) Interval() time.Duration {
	return b.interval
}

// Acquire blocks until the caller's pacing slot arrives. Slots are handed out
// strictly interval apart, so an interleaving of N cold-start acquisitions
// spans at least (N-1) intervals no matter which caller wins each slot.
// Under the stop policy an exhausted daily token budget fails the acquisition
// with services.ErrRateLimit instead of waiting.
func (b *Budget) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	now := b.clock()
	b.rolloverLocked(now)

	if b.policy == PolicyStop && b.tokensUsed >= b.limit {
		used, limit := b.tokensUsed, b.limit
		b.mu.Unlock()
		return fmt.Errorf("%w: daily token budget exhausted: %d of %d tokens used", services.ErrRateLimit, used, limit)
	}

	var wait time.Duration
	if b.nextSlot.IsZero() || !now.Before(b.nextSlot) {
		b.nextSlot = now.Add(b.interval)
	} else {
		wait = b.nextSlot.Sub(now)
		b.nextSlot = b.nextSlot.Add(b.interval)
	}

	b.requestCount++
	if b.requestCount%int64(b.rpm) == 0 {
		b.logger.Info("request pacing milestone",
			logging.Int64("request_number", b.requestCount),
			logging.Int("requests_per_minute", b.rpm),
		)
	}
	b.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	return b.sleep(ctx, wait)
}

// RecordUsage adds tokens to the daily counter. Crossing 80% of the budget
// logs a warning once per UTC day; exceeding the budget under the warn policy
// logs once per UTC day and never blocks.
func (b *Budget) RecordUsage(tokens int64) {
	if tokens <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rolloverLocked(b.clock())
	b.tokensUsed += tokens

	if !b.warnedNear && float64(b.tokensUsed) >= warnFraction*float64(b.limit) {
		b.warnedNear = true
		b.logger.Warn("daily token budget nearly exhausted",
			logging.Int64("tokens_used", b.tokensUsed),
			logging.Int64("daily_limit", b.limit),
		)
	}
	if !b.warnedOver && b.tokensUsed >= b.limit {
		b.warnedOver = true
		if b.policy == PolicyWarn {
			b.logger.Warn("daily token budget exceeded, continuing per warn policy",
				logging.Int64("tokens_used", b.tokensUsed),
				logging.Int64("daily_limit", b.limit),
			)
		} else {
			b.logger.Warn("daily token budget exceeded, further calls will be refused",
				logging.Int64("tokens_used", b.tokensUsed),
				logging.Int64("daily_limit", b.limit),
			)
		}
	}
}

// Usage is a point-in-time snapshot of the budget counters.
type Usage struct {
	RequestCount    int64
	TokensUsed      int64
	DailyTokenLimit int64
	Day             string
}

// Snapshot reports current counters for status surfaces.
func (b *Budget) Snapshot() Usage {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverLocked(b.clock())
	return Usage{
		RequestCount:    b.requestCount,
		TokensUsed:      b.tokensUsed,
		DailyTokenLimit: b.limit,
		Day:             b.tokenDay,
	}
}

// rolloverLocked resets the daily counters when the UTC day changes.
// Callers must hold b.mu.
func (b *Budget) rolloverLocked(now time.Time) {
	day := now.UTC().Format("2006-01-02")
	if day == b.tokenDay {
		return
	}
	if b.tokenDay != "" {
		b.logger.Info("daily token counter reset",
			logging.String("previous_day", b.tokenDay),
			logging.Int64("tokens_used", b.tokensUsed),
		)
	}
	b.tokenDay = day
	b.tokensUsed = 0
	b.warnedNear = false
	b.warnedOver = false
}
