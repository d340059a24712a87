package pipeline

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/chanflow/errors"
	"github.com/kbukum/chanflow/logger"
	"github.com/kbukum/chanflow/observability"
)

// Iterator provides pull-based sequential access to a stream of values.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted
	// and (zero, false, err) when the stream failed.
	Next(ctx context.Context) (T, bool, error)
	// Close stops the stream and every stage feeding it, waiting for their
	// goroutines to exit.
	Close() error
}

// Pipeline is a cold description of a stream. No goroutine starts and no
// channel exists until a terminal pulls from it; every run builds a fresh set.
type Pipeline[T any] struct {
	create func(ctx context.Context) Iterator[T]
}

// Iter starts a run and returns its output. The caller must Close it.
func (p *Pipeline[T]) Iter(ctx context.Context) Iterator[T] {
	return p.create(ctx)
}

// All starts a run and yields its items. The last pair carries the failure,
// if any. Breaking out of the loop tears the run down.
func (p *Pipeline[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		it := p.create(ctx)
		defer it.Close()
		for {
			val, ok, err := it.Next(ctx)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !ok || !yield(val, nil) {
				return
			}
		}
	}
}

// Runnable is a pipeline bound to a sink, ready to execute.
type Runnable struct {
	name string
	log  *logger.Logger
	run  func(ctx context.Context) error
}

// Run executes the pipeline until it completes, fails, or ctx ends. Each run
// gets its own run ID, carried in ctx to every stage's log lines, and its own
// trace span. A run ended by ctx returns CANCELED or TIMEOUT wrapping the
// context error.
func (r *Runnable) Run(ctx context.Context) error {
	runID := uuid.NewString()
	ctx = withRunID(ctx, runID)
	ctx, span := observability.StartSpan(ctx, observability.SpanRun, trace.WithAttributes(
		attribute.String(observability.AttrRunID, runID),
		attribute.String(observability.AttrStage, r.name),
	))

	log := r.log.WithFields(logger.Fields(logger.FieldRunID, runID, logger.FieldStage, r.name))
	log.Debug("run started")
	start := time.Now()

	err := errors.Interrupted(r.name, r.run(ctx))

	observability.EndSpan(span, err)
	fields := logger.DurationFields(r.name, time.Since(start))
	if err != nil {
		fields[logger.FieldError] = err.Error()
		fields[logger.FieldCode] = string(errors.CodeOf(err))
		log.Warn("run failed", fields)
		return err
	}
	log.Debug("run finished", fields)
	return nil
}

// Drain binds p to sink. sink is called once per item in arrival order; its
// first error stops the run and is reported as SINK_FAILED.
func Drain[T any](p *Pipeline[T], sink func(context.Context, T) error, opts ...Option) *Runnable {
	cfg := newStageConfig(kindSink, opts)
	return &Runnable{
		name: cfg.name,
		log:  cfg.baseLogger(),
		run: func(ctx context.Context) error {
			it := p.create(ctx)
			defer it.Close()
			for {
				val, ok, err := it.Next(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				panicked, err := cfg.protect(ctx, func() error { return sink(ctx, val) })
				if err != nil {
					if panicked {
						return err
					}
					return cfg.raise(ctx, errors.SinkFailed(cfg.name, err))
				}
			}
		},
	}
}

// ForEach runs p and calls fn for each value. Convenience wrapper around Drain.
func ForEach[T any](ctx context.Context, p *Pipeline[T], fn func(context.Context, T) error, opts ...Option) error {
	return Drain(p, fn, opts...).Run(ctx)
}

// Collect runs p and returns all values as a slice. On failure the values
// received before it are returned with the error; like Run, a ctx that ends
// first is reported as CANCELED or TIMEOUT.
func Collect[T any](ctx context.Context, p *Pipeline[T]) ([]T, error) {
	it := p.create(ctx)
	defer it.Close()
	var result []T
	for {
		val, ok, err := it.Next(ctx)
		if err != nil {
			return result, errors.Interrupted(kindCollect, err)
		}
		if !ok {
			return result, nil
		}
		result = append(result, val)
	}
}

type runIDKey struct{}

func withRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the ID of the run executing ctx, if any.
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok
}
