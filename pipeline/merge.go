package pipeline

import (
	"context"
	stderrors "errors"
	"io"
	"reflect"

	"github.com/kbukum/chanflow/channel"
)

// Merge interleaves the items of pipelines into one pipeline as they become
// ready. Each input's order is kept; there is no order between inputs. The
// output completes once every input has completed and fails on the first
// input failure, which stops the other inputs.
func Merge[T any](pipelines []*Pipeline[T], opts ...Option) *Pipeline[T] {
	cfg := newStageConfig(kindMerge, opts)
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			inputs := make([]*channel.Channel[T], len(pipelines))
			closers := make([]io.Closer, len(pipelines))
			for i, p := range pipelines {
				it := p.create(ctx)
				si, ok := it.(*stageIter[T])
				if !ok {
					si = spawn(ctx, cfg, kindBuffer, []io.Closer{it}, func(ctx context.Context, out *channel.Channel[T]) error {
						return forward(ctx, it, out)
					})
				}
				inputs[i] = si.out
				closers[i] = si
			}
			return spawn(ctx, cfg, kindMerge, closers, func(ctx context.Context, out *channel.Channel[T]) error {
				return mergeInto(ctx, inputs, out)
			})
		},
	}
}

// mergeInto forwards items from inputs to out until every input completes.
//
// Each round takes at most one ready item from each input. When no input
// had anything, it waits on the change signals of the empty ones, captured
// before polling so a write between poll and wait is not missed.
func mergeInto[T any](ctx context.Context, inputs []*channel.Channel[T], out *channel.Channel[T]) error {
	done := make([]bool, len(inputs))
	remaining := len(inputs)
	cases := make([]reflect.SelectCase, 0, len(inputs)+1)

	for remaining > 0 {
		cases = append(cases[:0], reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(ctx.Done()),
		})
		progress := false

		for i, in := range inputs {
			if done[i] {
				continue
			}
			changed := in.Changed()
			val, ok, err := in.TryNext()
			switch {
			case stderrors.Is(err, channel.ErrWouldBlock):
				cases = append(cases, reflect.SelectCase{
					Dir:  reflect.SelectRecv,
					Chan: reflect.ValueOf(changed),
				})
			case err != nil:
				return err
			case !ok:
				done[i] = true
				remaining--
				progress = true
			default:
				if err := out.Write(ctx, val); err != nil {
					return err
				}
				progress = true
			}
		}

		if progress {
			continue
		}
		if chosen, _, _ := reflect.Select(cases); chosen == 0 {
			return ctx.Err()
		}
	}
	return nil
}
