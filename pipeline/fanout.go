package pipeline

import (
	"context"
	"io"

	"github.com/kbukum/chanflow/channel"
	"github.com/kbukum/chanflow/validation"
)

const fanOutName = "fanout"

type laneKey struct{}

// LaneFromContext returns the fan-out lane a transform is running on.
func LaneFromContext(ctx context.Context) (int, bool) {
	lane, ok := ctx.Value(laneKey{}).(int)
	return lane, ok
}

// FanOut applies fn to the items of p on width concurrent lanes and merges
// the results into one pipeline.
//
// Item i goes to lane i mod width, so lane item counts differ by at most one.
// Each lane runs fn on its items one at a time in arrival order; the merged
// output keeps that per-lane order but interleaves lanes as their results
// become ready, with no fairness between them. The first failure on any lane
// stops the split, every lane and the merge, and is the single failure the
// consumer sees.
func FanOut[T, R any](p *Pipeline[T], width int, fn func(context.Context, T) (R, error), opts ...Option) (*Pipeline[R], error) {
	err := validation.New().
		Positive("width", width).
		NotNil("fn", fn == nil).
		Validate()
	if err != nil {
		return nil, err
	}

	cfg := newStageConfig(fanOutName, opts)
	cfg.kind = kindLane
	return &Pipeline[R]{
		create: func(ctx context.Context) Iterator[R] {
			return startFanOut(ctx, cfg, p, width, fn)
		},
	}, nil
}

// fanOutIter is the consumer side of a fan-out: the merge's output plus the
// cancel function shared by split, lanes and merge.
type fanOutIter[R any] struct {
	merge  *stageIter[R]
	cancel context.CancelCauseFunc
}

func (it *fanOutIter[R]) Next(ctx context.Context) (R, bool, error) {
	return it.merge.Next(ctx)
}

func (it *fanOutIter[R]) Close() error {
	it.cancel(errClosed)
	return it.merge.Close()
}

func startFanOut[T, R any](ctx context.Context, cfg *stageConfig, p *Pipeline[T], width int, fn func(context.Context, T) (R, error)) *fanOutIter[R] {
	fanCtx, fanCancel := context.WithCancelCause(ctx)
	src := p.create(fanCtx)

	inputs := make([]*channel.Channel[T], width)
	for i := range inputs {
		inputs[i] = channel.New[T](cfg.capacity)
	}

	splitLog := cfg.runLogger(fanCtx, kindSplit)
	split := start(fanCtx, cfg, []io.Closer{src},
		func(ctx context.Context) error {
			for i := 0; ; i++ {
				val, ok, err := src.Next(ctx)
				if err != nil || !ok {
					return err
				}
				if err := inputs[i%width].Write(ctx, val); err != nil {
					return err
				}
			}
		},
		func(_ context.Context, err error) {
			for _, in := range inputs {
				in.Fail(err)
			}
			if err != nil {
				fanCancel(err)
			}
			queued := 0
			for _, in := range inputs {
				queued += in.Len()
			}
			logEnd(splitLog, err, queued)
		},
	)

	lanes := make([]*channel.Channel[R], width)
	closers := make([]io.Closer, width)
	for i := range width {
		laneCtx := context.WithValue(fanCtx, laneKey{}, i)
		in := inputs[i]
		lane := spawn(laneCtx, cfg, kindLane, []io.Closer{split}, func(ctx context.Context, out *channel.Channel[R]) error {
			err := runLane(ctx, cfg, i, in, out, fn)
			if err != nil {
				fanCancel(err)
			}
			return err
		})
		lanes[i] = lane.out
		closers[i] = lane
	}

	merge := spawn(fanCtx, cfg, kindMerge, closers, func(ctx context.Context, out *channel.Channel[R]) error {
		return mergeInto(ctx, lanes, out)
	})
	return &fanOutIter[R]{merge: merge, cancel: fanCancel}
}

func runLane[T, R any](ctx context.Context, cfg *stageConfig, lane int, in *channel.Channel[T], out *channel.Channel[R], fn func(context.Context, T) (R, error)) error {
	for {
		val, ok, err := in.Next(ctx)
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
		cfg.recordLane(ctx, lane)
	}
}
