package pipeline

import (
	"context"
	"iter"
	"slices"

	"github.com/kbukum/chanflow/channel"
	"github.com/kbukum/chanflow/errors"
)

// Producer returns the lazy sequence a source pulls from. It is called once
// per run, so a pipeline built on it can be run again.
type Producer[T any] func(ctx context.Context) iter.Seq2[T, error]

// Produce starts a feeder goroutine per run that pulls the producer's sequence
// one item at a time into a fresh channel. The channel is completed when the
// sequence ends and failed when it yields an error or panics, so consumers
// never wait on a feeder that died.
func Produce[T any](producer Producer[T], opts ...Option) *Pipeline[T] {
	cfg := newStageConfig(kindSource, opts)
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return spawn(ctx, cfg, kindSource, nil, func(ctx context.Context, out *channel.Channel[T]) error {
				for val, err := range producer(ctx) {
					if err != nil {
						return cfg.raise(ctx, errors.SourceFailed(cfg.name, err))
					}
					if err := emit(ctx, cfg, out, val); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

// FromSeq creates a pipeline from an infallible sequence.
func FromSeq[T any](seq iter.Seq[T], opts ...Option) *Pipeline[T] {
	return Produce(func(context.Context) iter.Seq2[T, error] {
		return func(yield func(T, error) bool) {
			for v := range seq {
				if !yield(v, nil) {
					return
				}
			}
		}
	}, opts...)
}

// FromSeq2 creates a pipeline from a sequence that may yield an error.
func FromSeq2[T any](seq iter.Seq2[T, error], opts ...Option) *Pipeline[T] {
	return Produce(func(context.Context) iter.Seq2[T, error] { return seq }, opts...)
}

// FromSlice creates a pipeline over items.
func FromSlice[T any](items []T, opts ...Option) *Pipeline[T] {
	return FromSeq(slices.Values(items), opts...)
}

// FromChannel creates a pipeline reading an existing channel. A channel can
// only be drained once, so the pipeline can only be run once.
func FromChannel[T any](ch channel.Reader[T], opts ...Option) *Pipeline[T] {
	cfg := newStageConfig(kindSource, opts)
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return spawn(ctx, cfg, kindSource, nil, func(ctx context.Context, out *channel.Channel[T]) error {
				for val, err := range ch.All(ctx) {
					if err != nil {
						return err
					}
					if err := emit(ctx, cfg, out, val); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

// From creates a pipeline pulling from an existing Iterator. The pipeline
// takes ownership of it and closes it when the run ends; it can only be run
// once.
func From[T any](it Iterator[T], opts ...Option) *Pipeline[T] {
	return Produce(func(ctx context.Context) iter.Seq2[T, error] {
		return func(yield func(T, error) bool) {
			defer it.Close()
			for {
				val, ok, err := it.Next(ctx)
				if err != nil {
					yield(val, err)
					return
				}
				if !ok || !yield(val, nil) {
					return
				}
			}
		}
	}, opts...)
}
