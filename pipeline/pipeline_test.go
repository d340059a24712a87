package pipeline

import (
	"context"
	stderrors "errors"
	"iter"
	"math/rand/v2"
	"slices"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kbukum/chanflow/channel"
	"github.com/kbukum/chanflow/errors"
	"github.com/kbukum/chanflow/observability"
	"github.com/kbukum/chanflow/resilience"
)

func TestFromSlice_Collect(t *testing.T) {
	got, err := Collect(context.Background(), FromSlice([]int{1, 2, 3}))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("got %v", got)
	}
}

func TestPipeline_IsColdAndRestartable(t *testing.T) {
	var calls atomic.Int32
	src := Produce(func(context.Context) iter.Seq2[int, error] {
		calls.Add(1)
		return func(yield func(int, error) bool) {
			for i := range 3 {
				if !yield(i, nil) {
					return
				}
			}
		}
	})
	p := Pipe(src, func(n int) int { return n * 10 })
	if calls.Load() != 0 {
		t.Fatal("building a pipeline must not start it")
	}

	for range 2 {
		got, err := Collect(context.Background(), p)
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(got, []int{0, 10, 20}) {
			t.Errorf("got %v", got)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("expected one producer call per run, got %d", calls.Load())
	}
}

func TestProduce_FailureAfterThreeItems(t *testing.T) {
	boom := stderrors.New("feed broke")
	src := Produce(func(context.Context) iter.Seq2[int, error] {
		return func(yield func(int, error) bool) {
			for i := 1; i <= 3; i++ {
				if !yield(i, nil) {
					return
				}
			}
			yield(0, boom)
		}
	})

	got, err := Collect(context.Background(), Pipe(src, func(n int) int { return n }))
	if !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("expected the three items before the failure, got %v", got)
	}
	if !stderrors.Is(err, boom) {
		t.Fatalf("expected feed failure, got %v", err)
	}
	if errors.CodeOf(err) != errors.ErrCodeSourceFailed {
		t.Errorf("expected SOURCE_FAILED, got %s", errors.CodeOf(err))
	}
}

func TestProduce_PanicFailsTheStream(t *testing.T) {
	src := Produce(func(context.Context) iter.Seq2[int, error] {
		return func(yield func(int, error) bool) {
			yield(1, nil)
			panic("feeder exploded")
		}
	})
	_, err := Collect(context.Background(), src)
	if errors.CodeOf(err) != errors.ErrCodeStagePanic {
		t.Fatalf("expected STAGE_PANIC, got %v", err)
	}
}

func TestFromSeq2_AndFrom(t *testing.T) {
	ctx := context.Background()
	seq := func(yield func(string, error) bool) {
		for _, s := range []string{"a", "b"} {
			if !yield(s, nil) {
				return
			}
		}
	}
	got, err := Collect(ctx, FromSeq2(seq))
	if err != nil || !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("FromSeq2: got %v, %v", got, err)
	}

	it := FromSlice([]string{"x", "y"}).Iter(ctx)
	got, err = Collect(ctx, From(it))
	if err != nil || !slices.Equal(got, []string{"x", "y"}) {
		t.Fatalf("From: got %v, %v", got, err)
	}
}

func TestFromChannel(t *testing.T) {
	ctx := context.Background()
	ch := channel.New[int](channel.Unbounded())
	for i := range 3 {
		_ = ch.Write(ctx, i)
	}
	ch.Complete()

	got, err := Collect(ctx, FromChannel[int](ch))
	if err != nil || !slices.Equal(got, []int{0, 1, 2}) {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestPipeAsync_OrderUnderRandomLatency(t *testing.T) {
	input := seqInts(40)
	p := PipeAsync(FromSlice(input), func(ctx context.Context, n int) (string, error) {
		time.Sleep(time.Duration(rand.IntN(500)) * time.Microsecond)
		return strconv.Itoa(n), nil
	})

	got, err := Collect(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range got {
		if s != strconv.Itoa(i) {
			t.Fatalf("position %d holds %q", i, s)
		}
	}
	if len(got) != len(input) {
		t.Errorf("expected %d items, got %d", len(input), len(got))
	}
}

func TestPipeAsync_ErrorIsTransformFailed(t *testing.T) {
	boom := stderrors.New("bad item")
	p := PipeAsync(FromSlice([]int{1, 2, 3}), func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	}, WithName("check"))

	got, err := Collect(context.Background(), p)
	if !slices.Equal(got, []int{1}) {
		t.Errorf("expected [1] before the failure, got %v", got)
	}
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeTransformFailed || appErr.Stage != "check" {
		t.Fatalf("expected TRANSFORM_FAILED from check, got %v", err)
	}
	if !stderrors.Is(err, boom) {
		t.Error("expected root cause to be reachable")
	}
}

func TestFilterTapReduce(t *testing.T) {
	var tapped []int
	evens := Filter(FromSlice(seqInts(10)), func(n int) bool { return n%2 == 0 })
	seen := Tap(evens, func(_ context.Context, n int) error {
		tapped = append(tapped, n)
		return nil
	})
	sum := Reduce(seen, 0, func(acc, n int) int { return acc + n })

	got, err := Collect(context.Background(), sum)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []int{20}) {
		t.Errorf("expected [20], got %v", got)
	}
	if !slices.Equal(tapped, []int{0, 2, 4, 6, 8}) {
		t.Errorf("unexpected tapped items %v", tapped)
	}
}

func TestReduce_EmptyInputYieldsInit(t *testing.T) {
	got, err := Collect(context.Background(), Reduce(FromSlice([]int{}), 7, func(acc, n int) int { return acc + n }))
	if err != nil || !slices.Equal(got, []int{7}) {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestSortBy_Descending(t *testing.T) {
	type count struct {
		name string
		n    int
	}
	in := []count{{"a", 2}, {"b", 5}, {"c", 2}, {"d", 9}}
	got, err := Collect(context.Background(), SortBy(FromSlice(in), Descending(func(c count) int { return c.n })))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, c := range got {
		names = append(names, c.name)
	}
	if !slices.Equal(names, []string{"d", "b", "a", "c"}) {
		t.Errorf("expected stable descending order, got %v", names)
	}
}

func TestConcat(t *testing.T) {
	p := Concat([]*Pipeline[int]{FromSlice([]int{1, 2}), FromSlice([]int{}), FromSlice([]int{3})})
	got, err := Collect(context.Background(), p)
	if err != nil || !slices.Equal(got, []int{1, 2, 3}) {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestWithCapacity_AppliesBackpressure(t *testing.T) {
	var produced atomic.Int32
	src := Produce(func(context.Context) iter.Seq2[int, error] {
		return func(yield func(int, error) bool) {
			for i := range 100 {
				produced.Add(1)
				if !yield(i, nil) {
					return
				}
			}
		}
	}, WithCapacity(channel.Bounded(1)))

	it := src.Iter(context.Background())
	defer it.Close()

	time.Sleep(30 * time.Millisecond)
	if n := produced.Load(); n > 2 {
		t.Errorf("producer ran ahead of a bounded channel: %d items", n)
	}
	if v, ok, err := it.Next(context.Background()); v != 0 || !ok || err != nil {
		t.Fatalf("got %d %v %v", v, ok, err)
	}
}

func TestBuffer(t *testing.T) {
	got, err := Collect(context.Background(), Buffer(FromSlice(seqInts(5)), channel.Bounded(2)))
	if err != nil || !slices.Equal(got, seqInts(5)) {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestDrain_SinkErrorStopsTheRun(t *testing.T) {
	var stopped atomic.Bool
	src := Produce(func(context.Context) iter.Seq2[int, error] {
		return func(yield func(int, error) bool) {
			defer stopped.Store(true)
			for i := 0; ; i++ {
				if !yield(i, nil) {
					return
				}
			}
		}
	}, WithCapacity(channel.Bounded(2)))

	boom := stderrors.New("disk full")
	err := Drain(Pipe(src, func(n int) int { return n }), func(_ context.Context, n int) error {
		if n == 3 {
			return boom
		}
		return nil
	}, WithName("store")).Run(context.Background())

	if errors.CodeOf(err) != errors.ErrCodeSinkFailed || !stderrors.Is(err, boom) {
		t.Fatalf("expected SINK_FAILED wrapping the cause, got %v", err)
	}
	if !stopped.Load() {
		t.Error("upstream feeder still running after the run returned")
	}
}

func TestDrain_SinkPanic(t *testing.T) {
	err := ForEach(context.Background(), FromSlice([]int{1}), func(context.Context, int) error {
		panic("sink exploded")
	})
	if errors.CodeOf(err) != errors.ErrCodeStagePanic {
		t.Fatalf("expected STAGE_PANIC, got %v", err)
	}
}

func TestDrain_SinkErrorCarryingPanicCodeIsSinkFailed(t *testing.T) {
	nested := errors.Panic("inner", "nested run exploded")
	err := ForEach(context.Background(), FromSlice([]int{1}), func(context.Context, int) error {
		return nested
	})
	if errors.CodeOf(err) != errors.ErrCodeSinkFailed || !stderrors.Is(err, nested) {
		t.Fatalf("expected SINK_FAILED wrapping the returned error, got %v", err)
	}
}

func TestRun_InterruptedByContext(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := ForEach(ctx, naturals(), func(context.Context, int) error { return nil })
		if errors.CodeOf(err) != errors.ErrCodeTimeout || !stderrors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected TIMEOUT, got %v", err)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		err := ForEach(ctx, naturals(), func(_ context.Context, n int) error {
			if n == 3 {
				cancel()
			}
			return nil
		}, WithName("count"))
		if errors.CodeOf(err) != errors.ErrCodeCanceled || !stderrors.Is(err, context.Canceled) {
			t.Fatalf("expected CANCELED, got %v", err)
		}
		if appErr, _ := errors.AsAppError(err); appErr.Stage != "count" {
			t.Errorf("expected stage count, got %q", appErr.Stage)
		}
	})
}

func TestForEach_ArrivalOrder(t *testing.T) {
	var got []int
	err := ForEach(context.Background(), FromSlice(seqInts(5)), func(_ context.Context, n int) error {
		got = append(got, n)
		return nil
	})
	if err != nil || !slices.Equal(got, seqInts(5)) {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestCancellationUnblocksEveryStage(t *testing.T) {
	stuck := Produce(func(ctx context.Context) iter.Seq2[int, error] {
		return func(func(int, error) bool) { <-ctx.Done() }
	})
	fanned := Must(FanOut(Pipe(stuck, func(n int) int { return n }), 3, func(_ context.Context, n int) (int, error) {
		return n, nil
	}))
	batched := Must(Batch(fanned, 2, ProcessEach(func(n int) int { return n })))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := Collect(ctx, batched)
		done <- err
	}()
	select {
	case err := <-done:
		if !stderrors.Is(err, context.DeadlineExceeded) || errors.CodeOf(err) != errors.ErrCodeTimeout {
			t.Errorf("expected TIMEOUT wrapping deadline exceeded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not unblock after cancellation")
	}
}

func TestIter_CloseEarlyTearsDownUpstream(t *testing.T) {
	it := Pipe(naturals(), func(n int) int { return n * 2 }).Iter(context.Background())
	for want := 0; want < 6; want += 2 {
		v, ok, err := it.Next(context.Background())
		if err != nil || !ok || v != want {
			t.Fatalf("got %d %v %v, want %d", v, ok, err, want)
		}
	}

	closed := make(chan struct{})
	go func() {
		_ = it.Close()
		_ = it.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestAll_BreakStopsRun(t *testing.T) {
	var got []int
	for v, err := range naturals().All(context.Background()) {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, v)
		if len(got) == 3 {
			break
		}
	}
	if !slices.Equal(got, []int{0, 1, 2}) {
		t.Errorf("got %v", got)
	}
}

func TestRunnable_AssignsRunID(t *testing.T) {
	var ids []string
	r := Drain(FromSlice([]int{1}), func(ctx context.Context, _ int) error {
		id, ok := RunIDFromContext(ctx)
		if !ok || id == "" {
			t.Error("expected run ID in sink context")
		}
		ids = append(ids, id)
		return nil
	})
	for range 2 {
		if err := r.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Errorf("expected a fresh run ID per run, got %v", ids)
	}
}

func TestWithRetry_RecoversTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	retry := resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2,
		RetryIf:        resilience.DefaultRetryIf,
	}
	p := PipeAsync(FromSlice([]int{5}), func(_ context.Context, n int) (int, error) {
		if attempts.Add(1) < 3 {
			return 0, stderrors.New("transient")
		}
		return n * n, nil
	}, WithRetry(retry))

	got, err := Collect(context.Background(), p)
	if err != nil || !slices.Equal(got, []int{25}) {
		t.Fatalf("got %v, %v", got, err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestWithRateLimit_PacesInvocations(t *testing.T) {
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Name: "pace", Rate: 50, Burst: 1})
	p := Pipe(FromSlice(seqInts(5)), func(n int) int { return n }, WithRateLimit(rl))

	start := time.Now()
	got, err := Collect(context.Background(), p)
	if err != nil || len(got) != 5 {
		t.Fatalf("got %v, %v", got, err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("expected pacing at 50/s, finished in %v", elapsed)
	}
}

func TestWithMetrics_RecordsItemsAndErrors(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observability.NewStreamMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	p := PipeAsync(FromSlice(seqInts(4)), func(_ context.Context, n int) (int, error) {
		if n == 3 {
			return 0, stderrors.New("bad")
		}
		return n, nil
	}, WithName("square"), WithMetrics(m))
	if _, err := Collect(context.Background(), p); err == nil {
		t.Fatal("expected failure")
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	totals := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if sum, ok := metric.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[metric.Name] += dp.Value
				}
			}
		}
	}
	// Three items emitted plus one failed item.
	if totals["stream.items"] != 4 {
		t.Errorf("stream.items = %d, want 4", totals["stream.items"])
	}
	if totals["stream.errors"] != 1 {
		t.Errorf("stream.errors = %d, want 1", totals["stream.errors"])
	}
	if totals["stream.stage.active"] != 0 {
		t.Errorf("stream.stage.active = %d, want 0 after the run", totals["stream.stage.active"])
	}
}

func TestTransformFailure_LoggedOnce(t *testing.T) {
	log, buf := newWarnLogger()
	boom := stderrors.New("bad")
	p := PipeAsync(FromSlice(seqInts(3), WithLogger(log)), func(_ context.Context, n int) (int, error) {
		if n == 1 {
			return 0, boom
		}
		return n, nil
	}, WithName("first"), WithLogger(log))
	p = Pipe(p, func(n int) int { return n }, WithName("second"), WithLogger(log))

	if _, err := Collect(context.Background(), p); !stderrors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	lines := buf.lines(t)
	if n := countMessages(lines, "stage failed"); n != 1 {
		t.Fatalf("expected one failure log line, got %d: %v", n, lines)
	}
	if lines[0]["stage"] != "first" || lines[0]["code"] != string(errors.ErrCodeTransformFailed) {
		t.Errorf("unexpected log line %v", lines[0])
	}
}
