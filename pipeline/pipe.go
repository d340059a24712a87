package pipeline

import (
	"cmp"
	"context"
	"io"
	"slices"

	"github.com/kbukum/chanflow/channel"
)

// Pipe applies fn to every item, one at a time, in input order.
func Pipe[T, R any](p *Pipeline[T], fn func(T) R, opts ...Option) *Pipeline[R] {
	return PipeAsync(p, syncFn(fn), opts...)
}

// PipeAsync applies fn to every item. Each invocation, including any waiting
// it does, finishes before the next item is pulled, so output order always
// equals input order. An error from fn fails the stage as TRANSFORM_FAILED.
func PipeAsync[T, R any](p *Pipeline[T], fn func(context.Context, T) (R, error), opts ...Option) *Pipeline[R] {
	cfg := newStageConfig(kindPipe, opts)
	return &Pipeline[R]{
		create: func(ctx context.Context) Iterator[R] {
			src := p.create(ctx)
			return spawn(ctx, cfg, kindPipe, []io.Closer{src}, func(ctx context.Context, out *channel.Channel[R]) error {
				for {
					val, ok, err := src.Next(ctx)
					if err != nil || !ok {
						return err
					}
					res, err := invoke(ctx, cfg, fn, val)
					if err != nil {
						return err
					}
					if err := emit(ctx, cfg, out, res); err != nil {
						return err
					}
				}
			})
		},
	}
}

// Filter keeps only the items for which keep returns true.
func Filter[T any](p *Pipeline[T], keep func(T) bool, opts ...Option) *Pipeline[T] {
	cfg := newStageConfig(kindFilter, opts)
	pred := syncFn(keep)
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			src := p.create(ctx)
			return spawn(ctx, cfg, kindFilter, []io.Closer{src}, func(ctx context.Context, out *channel.Channel[T]) error {
				for {
					val, ok, err := src.Next(ctx)
					if err != nil || !ok {
						return err
					}
					pass, err := invoke(ctx, cfg, pred, val)
					if err != nil {
						return err
					}
					if !pass {
						continue
					}
					if err := emit(ctx, cfg, out, val); err != nil {
						return err
					}
				}
			})
		},
	}
}

// Tap calls fn for every item as a side effect and passes the item on
// unchanged. An error from fn fails the stage.
func Tap[T any](p *Pipeline[T], fn func(context.Context, T) error, opts ...Option) *Pipeline[T] {
	return PipeAsync(p, func(ctx context.Context, v T) (T, error) {
		return v, fn(ctx, v)
	}, append([]Option{WithName(kindTap)}, opts...)...)
}

// Buffer inserts a channel of the given capacity between p and its consumer,
// decoupling their rates.
func Buffer[T any](p *Pipeline[T], capacity channel.Capacity, opts ...Option) *Pipeline[T] {
	cfg := newStageConfig(kindBuffer, append(slices.Clip(opts), WithCapacity(capacity)))
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			src := p.create(ctx)
			return spawn(ctx, cfg, kindBuffer, []io.Closer{src}, func(ctx context.Context, out *channel.Channel[T]) error {
				return forward(ctx, src, out)
			})
		},
	}
}

// Reduce folds every item into an accumulator and yields exactly one value,
// the final accumulator, once p completes.
func Reduce[T, R any](p *Pipeline[T], init R, fn func(R, T) R, opts ...Option) *Pipeline[R] {
	cfg := newStageConfig(kindReduce, opts)
	return &Pipeline[R]{
		create: func(ctx context.Context) Iterator[R] {
			src := p.create(ctx)
			return spawn(ctx, cfg, kindReduce, []io.Closer{src}, func(ctx context.Context, out *channel.Channel[R]) error {
				acc := init
				for {
					val, ok, err := src.Next(ctx)
					if err != nil {
						return err
					}
					if !ok {
						return emit(ctx, cfg, out, acc)
					}
					acc = fn(acc, val)
				}
			})
		},
	}
}

// SortBy materializes p and yields its items ordered by compare. The sort is
// stable.
func SortBy[T any](p *Pipeline[T], compare func(a, b T) int, opts ...Option) *Pipeline[T] {
	cfg := newStageConfig(kindSort, opts)
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			src := p.create(ctx)
			return spawn(ctx, cfg, kindSort, []io.Closer{src}, func(ctx context.Context, out *channel.Channel[T]) error {
				var items []T
				for {
					val, ok, err := src.Next(ctx)
					if err != nil {
						return err
					}
					if !ok {
						break
					}
					items = append(items, val)
				}
				slices.SortStableFunc(items, compare)
				for _, v := range items {
					if err := emit(ctx, cfg, out, v); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

// Descending returns a comparison ordering by key, largest first.
func Descending[T any, K cmp.Ordered](key func(T) K) func(a, b T) int {
	return func(a, b T) int { return cmp.Compare(key(b), key(a)) }
}

// Concat runs pipelines one after another, yielding all of the first before
// starting the second.
func Concat[T any](pipelines []*Pipeline[T], opts ...Option) *Pipeline[T] {
	cfg := newStageConfig(kindConcat, opts)
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return spawn(ctx, cfg, kindConcat, nil, func(ctx context.Context, out *channel.Channel[T]) error {
				for _, p := range pipelines {
					src := p.create(ctx)
					err := forward(ctx, src, out)
					_ = src.Close()
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
