package commands

import (
	"context"
	"fmt"
	"io"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/chanflow/pipeline"
)

var (
	squaresFrom  int
	squaresTo    int
	squaresWidth int
	squaresDelay time.Duration
)

var squaresCmd = &cobra.Command{
	Use:   "squares",
	Short: "Square a range of numbers on concurrent lanes",
	Long: `Square every number in [from, to] and print one line per number.

Each number waits for square x delay on one of width fan-out lanes, so larger
numbers finish later and lines arrive out of order across lanes. A per-lane
hit count is printed at the end.

Example:
  chanflow squares --from 1 --to 10 --width 2 --delay 10ms`,
	RunE: func(cmd *cobra.Command, args []string) error {
		width := squaresWidth
		if width == 0 {
			width = appConfig.Stream.Width
		}
		hits := newLaneHits()
		p, err := squaresPipeline(squaresFrom, squaresTo, width, squaresDelay, hits)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		err = pipeline.Drain(p, func(_ context.Context, line string) error {
			_, err := fmt.Fprintln(out, line)
			return err
		}, stageOptions("print")...).Run(cmd.Context())
		if err != nil {
			return err
		}
		hits.print(out)
		return nil
	},
}

func init() {
	squaresCmd.Flags().IntVar(&squaresFrom, "from", 1, "first number")
	squaresCmd.Flags().IntVar(&squaresTo, "to", 10, "last number, inclusive")
	squaresCmd.Flags().IntVarP(&squaresWidth, "width", "w", 0, "fan-out lanes (default: stream.width)")
	squaresCmd.Flags().DurationVar(&squaresDelay, "delay", 10*time.Millisecond, "latency per unit of the square")
	rootCmd.AddCommand(squaresCmd)
}

type square struct {
	n, sq, lane int
}

// squaresPipeline builds range -> (n, n*n) -> delayed fan-out -> format.
func squaresPipeline(from, to, width int, delay time.Duration, hits *laneHits) (*pipeline.Pipeline[string], error) {
	src := pipeline.FromSeq(numbers(from, to), stageOptions("range")...)
	squares := pipeline.Pipe(src, func(n int) square {
		return square{n: n, sq: n * n}
	}, stageOptions("square")...)

	delayed, err := pipeline.FanOut(squares, width, func(ctx context.Context, s square) (square, error) {
		lane, _ := pipeline.LaneFromContext(ctx)
		hits.add(lane)
		select {
		case <-time.After(time.Duration(s.sq) * delay):
		case <-ctx.Done():
			return s, ctx.Err()
		}
		s.lane = lane
		return s, nil
	}, stageOptions("delay")...)
	if err != nil {
		return nil, err
	}

	return pipeline.Pipe(delayed, func(s square) string {
		return fmt.Sprintf("%2d^2 = %4d  (lane %d)", s.n, s.sq, s.lane)
	}, stageOptions("format")...), nil
}

func numbers(from, to int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for n := from; n <= to; n++ {
			if !yield(n) {
				return
			}
		}
	}
}

// laneHits counts transform calls per lane. Lanes run concurrently, so the
// map is guarded.
type laneHits struct {
	mu   sync.Mutex
	hits map[int]int
}

func newLaneHits() *laneHits {
	return &laneHits{hits: make(map[int]int)}
}

func (h *laneHits) add(lane int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hits[lane]++
}

func (h *laneHits) snapshot() map[int]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[int]int, len(h.hits))
	for k, v := range h.hits {
		out[k] = v
	}
	return out
}

func (h *laneHits) print(w io.Writer) {
	snap := h.snapshot()
	lanes := make([]int, 0, len(snap))
	for lane := range snap {
		lanes = append(lanes, lane)
	}
	slices.Sort(lanes)
	for _, lane := range lanes {
		fmt.Fprintf(w, "lane %d: %d\n", lane, snap[lane])
	}
}
