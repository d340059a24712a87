package channel

import "strconv"

// Capacity bounds how many items a Channel may queue before writers suspend.
// The zero value is unbounded.
type Capacity struct {
	limit int
}

// Unbounded returns a capacity that never suspends writers.
func Unbounded() Capacity { return Capacity{} }

// Bounded returns a capacity of n items. Values below 1 are raised to 1.
func Bounded(n int) Capacity {
	if n < 1 {
		n = 1
	}
	return Capacity{limit: n}
}

// IsBounded reports whether writers can be suspended by a full queue.
func (c Capacity) IsBounded() bool { return c.limit > 0 }

// Limit returns the bound, or 0 when unbounded.
func (c Capacity) Limit() int { return c.limit }

func (c Capacity) String() string {
	if !c.IsBounded() {
		return "unbounded"
	}
	return "bounded(" + strconv.Itoa(c.limit) + ")"
}
