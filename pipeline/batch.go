package pipeline

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kbukum/chanflow/channel"
	"github.com/kbukum/chanflow/logger"
	"github.com/kbukum/chanflow/resilience"
	"github.com/kbukum/chanflow/validation"
)

type batchKind int

const (
	batchInvalid batchKind = iota
	batchWhole
	batchEach
	batchEachAsync
)

// BatchOp is the operation a Batch stage applies. Its variant is fixed when it
// is built; the zero BatchOp is rejected by Batch.
type BatchOp[T, R any] struct {
	kind  batchKind
	batch func(context.Context, []T) ([]R, error)
	each  func(context.Context, T) (R, error)
}

func (op BatchOp[T, R]) valid() bool { return op.kind != batchInvalid }

// ProcessBatch transforms a whole batch at once.
func ProcessBatch[T, R any](fn func([]T) []R) BatchOp[T, R] {
	if fn == nil {
		return BatchOp[T, R]{}
	}
	return BatchOp[T, R]{kind: batchWhole, batch: syncFn(fn)}
}

// ProcessBatchAsync transforms a whole batch with a call that may wait or fail.
func ProcessBatchAsync[T, R any](fn func(context.Context, []T) ([]R, error)) BatchOp[T, R] {
	if fn == nil {
		return BatchOp[T, R]{}
	}
	return BatchOp[T, R]{kind: batchWhole, batch: fn}
}

// ProcessEach transforms the items of a batch one by one, in order.
func ProcessEach[T, R any](fn func(T) R) BatchOp[T, R] {
	if fn == nil {
		return BatchOp[T, R]{}
	}
	return BatchOp[T, R]{kind: batchEach, each: syncFn(fn)}
}

// ProcessEachAsync transforms the items of a batch concurrently. Results are
// emitted in completion order; the first failure cancels the rest of the
// batch and fails the stage.
func ProcessEachAsync[T, R any](fn func(context.Context, T) (R, error)) BatchOp[T, R] {
	if fn == nil {
		return BatchOp[T, R]{}
	}
	return BatchOp[T, R]{kind: batchEachAsync, each: fn}
}

// BatchFuncs holds the four batch callbacks as optional fields, for wiring
// code that picks one at runtime. Exactly one must be set.
type BatchFuncs[T, R any] struct {
	Batch      func([]T) []R
	BatchAsync func(context.Context, []T) ([]R, error)
	Each       func(T) R
	EachAsync  func(context.Context, T) (R, error)
}

// Op converts f to a BatchOp. It fails with INVALID_CONFIG unless exactly one
// field is set.
func (f BatchFuncs[T, R]) Op() (BatchOp[T, R], error) {
	set := 0
	for _, isSet := range []bool{f.Batch != nil, f.BatchAsync != nil, f.Each != nil, f.EachAsync != nil} {
		if isSet {
			set++
		}
	}
	err := validation.New().
		ExactlyOne("op", set, "Batch", "BatchAsync", "Each", "EachAsync").
		Validate()
	if err != nil {
		return BatchOp[T, R]{}, err
	}

	switch {
	case f.Batch != nil:
		return ProcessBatch(f.Batch), nil
	case f.BatchAsync != nil:
		return ProcessBatchAsync(f.BatchAsync), nil
	case f.Each != nil:
		return ProcessEach(f.Each), nil
	default:
		return ProcessEachAsync(f.EachAsync), nil
	}
}

// Batch groups consecutive items of p into batches of size, the last one
// possibly shorter, and applies op to each. Every result of a batch is
// emitted before any result of the next.
func Batch[T, R any](p *Pipeline[T], size int, op BatchOp[T, R], opts ...Option) (*Pipeline[R], error) {
	err := validation.New().
		Positive("size", size).
		Custom(op.valid(), "op", "a batch operation is required").
		Validate()
	if err != nil {
		return nil, err
	}

	cfg := newStageConfig(kindBatch, opts)
	return &Pipeline[R]{
		create: func(ctx context.Context) Iterator[R] {
			src := p.create(ctx)
			return spawn(ctx, cfg, kindBatch, []io.Closer{src}, func(ctx context.Context, out *channel.Channel[R]) error {
				b := &batcher[T, R]{cfg: cfg, op: op, out: out, log: cfg.runLogger(ctx, kindBatch)}
				if op.kind == batchEachAsync && cfg.inFlight > 0 {
					b.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
						Name:          cfg.name,
						MaxConcurrent: cfg.inFlight,
					})
				}
				return b.run(ctx, src, size)
			})
		},
	}, nil
}

type batcher[T, R any] struct {
	cfg      *stageConfig
	op       BatchOp[T, R]
	out      *channel.Channel[R]
	log      *logger.Logger
	bulkhead *resilience.Bulkhead
}

func (b *batcher[T, R]) run(ctx context.Context, src Iterator[T], size int) error {
	for n := 0; ; n++ {
		items := make([]T, 0, size)
		for len(items) < size {
			val, ok, err := src.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			items = append(items, val)
		}
		if len(items) == 0 {
			return nil
		}

		if b.log.Enabled(zerolog.DebugLevel) {
			b.log.Debug("processing batch", logger.Fields(logger.FieldBatch, n, logger.FieldItems, len(items)))
		}
		if err := b.process(ctx, items); err != nil {
			return err
		}
		if len(items) < size {
			return nil
		}
	}
}

func (b *batcher[T, R]) process(ctx context.Context, items []T) error {
	switch b.op.kind {
	case batchWhole:
		results, err := invoke(ctx, b.cfg, b.op.batch, items)
		if err != nil {
			return err
		}
		for _, r := range results {
			if err := emit(ctx, b.cfg, b.out, r); err != nil {
				return err
			}
		}
		return nil
	case batchEach:
		for _, item := range items {
			r, err := invoke(ctx, b.cfg, b.op.each, item)
			if err != nil {
				return err
			}
			if err := emit(ctx, b.cfg, b.out, r); err != nil {
				return err
			}
		}
		return nil
	default:
		return b.processConcurrent(ctx, items)
	}
}

type eachResult[R any] struct {
	val R
	err error
}

// processConcurrent runs one goroutine per item and emits results as they
// arrive. It returns only after every goroutine has exited.
func (b *batcher[T, R]) processConcurrent(ctx context.Context, items []T) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	results := make(chan eachResult[R], len(items))
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var res eachResult[R]
			res.err = b.cfg.guard(ctx, func() error {
				var err error
				res.val, err = b.call(ctx, item)
				return err
			})
			results <- res
		}()
	}

	var first error
	for range items {
		res := <-results
		if first != nil {
			continue
		}
		if res.err == nil {
			res.err = emit(ctx, b.cfg, b.out, res.val)
		}
		if res.err != nil {
			first = res.err
			cancel(first)
		}
	}
	wg.Wait()
	return first
}

func (b *batcher[T, R]) call(ctx context.Context, item T) (R, error) {
	call := func(ctx context.Context) (R, error) {
		return invoke(ctx, b.cfg, b.op.each, item)
	}
	if b.bulkhead == nil {
		return call(ctx)
	}
	return resilience.ExecuteWithResult(ctx, b.bulkhead, call)
}
