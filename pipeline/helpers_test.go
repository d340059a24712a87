package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"iter"
	"strings"
	"sync"
	"testing"

	"github.com/kbukum/chanflow/channel"
	"github.com/kbukum/chanflow/logger"
)

// naturals yields 0, 1, 2, ... until the run is cancelled.
func naturals() *Pipeline[int] {
	return Produce(func(context.Context) iter.Seq2[int, error] {
		return func(yield func(int, error) bool) {
			for i := 0; ; i++ {
				if !yield(i, nil) {
					return
				}
			}
		}
	}, WithCapacity(channel.Bounded(4)))
}

func seqInts(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// syncBuffer is a bytes.Buffer safe for concurrent log writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func newWarnLogger() (*logger.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return logger.NewWithWriter(&logger.Config{Level: "warn", Format: logger.FormatJSON}, "test", buf), buf
}

func countMessages(lines []map[string]any, msg string) int {
	n := 0
	for _, l := range lines {
		if l["message"] == msg {
			n++
		}
	}
	return n
}
