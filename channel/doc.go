// Package channel provides Channel, the asynchronous FIFO conduit every
// pipeline stage is built on.
//
// A Channel has a write side (Write, Complete, Fail) owned by exactly one
// producing stage and a read side (Next, TryNext, All, Changed) that any
// number of goroutines may use. Capacity is either Unbounded, the default,
// or Bounded(n), in which case Write suspends while n items are queued.
//
// Every blocking call takes a context.Context, so cancelling a run unblocks
// producers waiting on a full channel and consumers waiting on an empty one.
//
//	ch := channel.New[int](channel.Bounded(16))
//	go func() {
//	    defer ch.Complete()
//	    for i := range 100 {
//	        if err := ch.Write(ctx, i); err != nil {
//	            ch.Fail(err)
//	            return
//	        }
//	    }
//	}()
//	for v, err := range ch.All(ctx) {
//	    ...
//	}
package channel
