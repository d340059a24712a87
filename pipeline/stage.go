package pipeline

import (
	"context"
	stderrors "errors"
	"io"
	"maps"
	"time"

	"github.com/kbukum/chanflow/channel"
	"github.com/kbukum/chanflow/errors"
	"github.com/kbukum/chanflow/logger"
	"github.com/kbukum/chanflow/observability"
	"github.com/kbukum/chanflow/resilience"
)

// errClosed is the cancellation cause when a consumer closes a stage early.
var errClosed = stderrors.New("pipeline: stage closed by consumer")

// worker is a background goroutine running under its own cancellable context.
type worker struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// Close cancels the worker and waits for it to exit. The worker closes its own
// upstream on the way out, so closing the last stage tears down the whole run.
// Close may be called any number of times from any goroutine.
func (w *worker) Close() error {
	w.cancel(errClosed)
	<-w.done
	return nil
}

// start runs fn on a new goroutine under a child of ctx.
//
// Whatever way fn exits, including panic and cancellation, end is called
// exactly once with the settled error; then the worker's context is cancelled
// and every upstream handle is closed.
func start(ctx context.Context, cfg *stageConfig, upstream []io.Closer, fn func(ctx context.Context) error, end func(ctx context.Context, err error)) *worker {
	ctx, cancel := context.WithCancelCause(ctx)
	w := &worker{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(w.done)
		cfg.stageStarted(ctx)
		defer cfg.stageStopped(ctx)

		err := settle(ctx, cfg.guard(ctx, func() error { return fn(ctx) }))
		end(ctx, err)

		cancel(err)
		for _, up := range upstream {
			_ = up.Close()
		}
	}()
	return w
}

// stageIter is the consumer side of a stage that writes a single channel.
type stageIter[T any] struct {
	*worker
	out *channel.Channel[T]
}

func (it *stageIter[T]) Next(ctx context.Context) (T, bool, error) {
	return it.out.Next(ctx)
}

// spawn starts a stage whose goroutine runs fn against a fresh output
// channel. The channel is completed when fn returns nil and failed otherwise.
func spawn[T any](ctx context.Context, cfg *stageConfig, kind string, upstream []io.Closer, fn func(ctx context.Context, out *channel.Channel[T]) error) *stageIter[T] {
	out := channel.New[T](cfg.capacity)
	log := cfg.runLogger(ctx, kind)
	w := start(ctx, cfg, upstream,
		func(ctx context.Context) error { return fn(ctx, out) },
		func(_ context.Context, err error) { finish(log, out, err) },
	)
	return &stageIter[T]{worker: w, out: out}
}

// settle replaces an error caused by the stage's own cancellation with the
// cancellation cause, so a failure elsewhere in the run is reported as itself.
func settle(ctx context.Context, err error) error {
	if err == nil || ctx.Err() == nil {
		return err
	}
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return err
}

// finish delivers the terminal signal for out. Failures are logged where they
// are raised, so here they are only traced at debug.
func finish[T any](log *logger.Logger, out *channel.Channel[T], err error) {
	out.Fail(err)
	logEnd(log, err, out.Len())
}

// logEnd traces how a stage ended. queued counts the items still waiting in
// its output for the consumer.
func logEnd(log *logger.Logger, err error, queued int) {
	fields := logger.Fields(logger.FieldQueued, queued)
	switch {
	case err == nil:
		log.Debug("stage completed", fields)
	case stderrors.Is(err, errClosed):
		log.Debug("stage closed", fields)
	default:
		fields[logger.FieldError] = err.Error()
		log.Debug("stage stopped", fields)
	}
}

// raise logs and counts a failure that originates in this stage and returns it.
func (c *stageConfig) raise(ctx context.Context, err *errors.AppError) error {
	c.recordError(ctx, string(err.Code))
	fields := c.runFields(ctx, c.kind)
	maps.Copy(fields, logger.ErrorFields(c.name, err))
	fields[logger.FieldCode] = string(err.Code)
	c.baseLogger().Warn("stage failed", fields)
	return err
}

// Stage kinds, used as the "kind" log field.
const (
	kindSource = "source"
	kindPipe   = "pipe"
	kindFilter = "filter"
	kindTap    = "tap"
	kindBuffer = "buffer"
	kindReduce = "reduce"
	kindSort   = "sort"
	kindConcat = "concat"
	kindBatch  = "batch"
	kindSplit  = "split"
	kindLane   = "lane"
	kindMerge  = "merge"
	kindSink   = "sink"

	kindCollect = "collect"
)

// guard runs fn and converts a panic into a STAGE_PANIC error.
func (c *stageConfig) guard(ctx context.Context, fn func() error) error {
	_, err := c.protect(ctx, fn)
	return err
}

// protect is guard that also reports whether the error came from a panic in
// fn rather than from fn's return value.
func (c *stageConfig) protect(ctx context.Context, fn func() error) (panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err = c.raise(ctx, errors.Panic(c.name, r))
		}
	}()
	return false, fn()
}

// forward writes every item of src to out. It returns nil when src is
// exhausted and src's failure unchanged otherwise.
func forward[T any](ctx context.Context, src Iterator[T], out *channel.Channel[T]) error {
	for {
		val, ok, err := src.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := out.Write(ctx, val); err != nil {
			return err
		}
	}
}

// invoke runs one transform invocation with the stage's rate limit and retry
// policy. Errors are wrapped as TRANSFORM_FAILED unless the stage itself was
// cancelled.
func invoke[T, R any](ctx context.Context, cfg *stageConfig, fn func(context.Context, T) (R, error), item T) (R, error) {
	attempt := func(ctx context.Context) (R, error) {
		if cfg.limiter != nil {
			if err := cfg.limiter.Wait(ctx); err != nil {
				var zero R
				return zero, err
			}
		}
		return fn(ctx, item)
	}

	start := time.Now()
	var (
		res R
		err error
	)
	if cfg.retry != nil {
		res, err = resilience.Retry(ctx, *cfg.retry, attempt)
	} else {
		res, err = attempt(ctx)
	}
	cfg.recordTransform(ctx, time.Since(start))

	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, cfg.raise(ctx, errors.TransformFailed(cfg.name, err))
	}
	return res, nil
}

// syncFn lifts an infallible transform to the async shape.
func syncFn[T, R any](fn func(T) R) func(context.Context, T) (R, error) {
	return func(_ context.Context, v T) (R, error) { return fn(v), nil }
}

// --- metrics ---

func (c *stageConfig) stageStarted(ctx context.Context) {
	if c.metrics != nil {
		c.metrics.StageStarted(ctx, c.name)
	}
}

func (c *stageConfig) stageStopped(ctx context.Context) {
	if c.metrics != nil {
		c.metrics.StageStopped(context.WithoutCancel(ctx), c.name)
	}
}

func (c *stageConfig) recordItem(ctx context.Context) {
	if c.metrics != nil {
		c.metrics.RecordItem(ctx, c.name, observability.StatusOK)
	}
}

func (c *stageConfig) recordTransform(ctx context.Context, d time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordTransform(ctx, c.name, d)
	}
}

func (c *stageConfig) recordError(ctx context.Context, code string) {
	if c.metrics != nil {
		c.metrics.RecordError(context.WithoutCancel(ctx), c.name, code)
		c.metrics.RecordItem(context.WithoutCancel(ctx), c.name, observability.StatusFailed)
	}
}

func (c *stageConfig) recordLane(ctx context.Context, lane int) {
	if c.metrics != nil {
		c.metrics.RecordLaneItem(ctx, c.name, lane)
	}
}

// emit writes v to out and counts it.
func emit[T any](ctx context.Context, cfg *stageConfig, out *channel.Channel[T], v T) error {
	if err := out.Write(ctx, v); err != nil {
		return err
	}
	cfg.recordItem(ctx)
	return nil
}
