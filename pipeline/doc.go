// Package pipeline provides composable stream operators over channel.Channel.
//
// A Pipeline is cold: building one starts nothing. A terminal (Collect,
// ForEach, Drain(...).Run or Iter) creates a fresh channel and goroutine per
// stage, so the same Pipeline can be run many times. Every stage signals its
// output channel exactly once, completed or failed, on every exit path,
// including panics and cancellation, so a consumer never waits on a stage
// that died.
//
// # Operators
//
// Sources:
//
//   - Produce, FromSeq, FromSeq2, FromSlice: pull a lazy sequence one item at a time
//   - FromChannel, From: adapt an existing channel or Iterator (single run)
//
// Linear (one in-flight transform, order preserved):
//
//   - Pipe, PipeAsync: transform each item
//   - Filter, Tap: keep matching items, run a side effect
//   - Reduce, SortBy: fold to one value, sort the whole stream
//   - Buffer, Concat: decouple rates, join pipelines sequentially
//
// Grouping and concurrency:
//
//   - Batch: apply a BatchOp to consecutive groups of a fixed size
//   - FanOut: round-robin items over width lanes and merge the results
//   - Merge: interleave independent pipelines as items become ready
//
// Constructors that take a size, a width or a callback variant validate them
// and return an INVALID_CONFIG error; Must unwraps the result inline.
//
// # Failures
//
// A failure raised by a stage is wrapped as an errors.AppError naming the
// stage (TRANSFORM_FAILED, SOURCE_FAILED, SINK_FAILED or STAGE_PANIC), logged
// once, and forwarded unchanged by every stage downstream. The consumer sees
// it once, after every item queued before it. A run whose context ends first
// fails with CANCELED or TIMEOUT from Run or Collect.
//
// # Usage
//
//	src := pipeline.FromSeq(seq)
//	squares := pipeline.Pipe(src, func(n int) int { return n * n })
//	fetched := pipeline.Must(pipeline.FanOut(squares, 4, fetch,
//	    pipeline.WithName("fetch"),
//	    pipeline.WithRetry(resilience.DefaultRetryConfig()),
//	))
//	err := pipeline.Drain(fetched, store).Run(ctx)
package pipeline
