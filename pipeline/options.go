package pipeline

import (
	"context"

	"github.com/kbukum/chanflow/channel"
	"github.com/kbukum/chanflow/logger"
	"github.com/kbukum/chanflow/observability"
	"github.com/kbukum/chanflow/resilience"
)

// Option configures a stage.
type Option func(*stageConfig)

type stageConfig struct {
	name     string
	kind     string
	capacity channel.Capacity
	log      *logger.Logger
	metrics  *observability.StreamMetrics
	retry    *resilience.RetryConfig
	limiter  *resilience.RateLimiter
	inFlight int
}

func newStageConfig(kind string, opts []Option) *stageConfig {
	cfg := &stageConfig{name: kind, kind: kind}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithName names the stage in errors, logs, metrics and spans.
func WithName(name string) Option {
	return func(c *stageConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithCapacity sets the capacity of the stage's output channel. The default
// is unbounded; a bounded capacity makes the stage wait for its consumer.
func WithCapacity(capacity channel.Capacity) Option {
	return func(c *stageConfig) { c.capacity = capacity }
}

// WithLogger sets the logger. The default is the "pipeline" logger from the
// registry.
func WithLogger(l *logger.Logger) Option {
	return func(c *stageConfig) { c.log = l }
}

// WithMetrics reports the stage to m.
func WithMetrics(m *observability.StreamMetrics) Option {
	return func(c *stageConfig) { c.metrics = m }
}

// WithRetry retries each failed transform invocation under cfg.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *stageConfig) { c.retry = &cfg }
}

// WithRateLimit paces transform invocations through rl. A limiter passed to
// a fan-out is shared by all of its lanes.
func WithRateLimit(rl *resilience.RateLimiter) Option {
	return func(c *stageConfig) { c.limiter = rl }
}

// WithMaxInFlight caps how many per-item transforms of one batch run at once
// under ProcessEachAsync. 0 runs the whole batch concurrently.
func WithMaxInFlight(n int) Option {
	return func(c *stageConfig) { c.inFlight = n }
}

// Must panics if err is non-nil. It lets constructors that validate their
// arguments be chained inline.
//
//	out := pipeline.Must(pipeline.FanOut(src, 4, fetch))
func Must[T any](p *Pipeline[T], err error) *Pipeline[T] {
	if err != nil {
		panic(err)
	}
	return p
}

func (c *stageConfig) baseLogger() *logger.Logger {
	if c.log != nil {
		return c.log
	}
	return logger.Get(logger.PipelineComponent)
}

// runLogger tags the stage logger with the stage name and, when ctx carries
// them, the run ID and fan-out lane.
func (c *stageConfig) runLogger(ctx context.Context, kind string) *logger.Logger {
	return c.baseLogger().WithFields(c.runFields(ctx, kind))
}

func (c *stageConfig) runFields(ctx context.Context, kind string) map[string]interface{} {
	fields := logger.Fields(logger.FieldStage, c.name, logger.FieldKind, kind)
	if id, ok := RunIDFromContext(ctx); ok {
		fields[logger.FieldRunID] = id
	}
	if lane, ok := LaneFromContext(ctx); ok {
		fields[logger.FieldLane] = lane
	}
	return fields
}
