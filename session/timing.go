package session

import (
	"fmt"
	"io"
	"time"
)

// Timing holds timing information for the engine operations.
type Timing struct {
	DataLoading time.Duration
	ModelInit   time.Duration
	Forward     time.Duration
	Backward    time.Duration
	Update      time.Duration
	Samples     int
}

// Total is the sum of every measured phase.
func (t Timing) Total() time.Duration {
	return t.DataLoading + t.ModelInit + t.Forward + t.Backward + t.Update
}

// Print writes the timing breakdown.
func (t Timing) Print(w io.Writer) {
	total := t.Total()
	share := func(d time.Duration) float64 {
		if total == 0 {
			return 0
		}
		return float64(d) / float64(total) * 100
	}

	fmt.Fprintln(w, "=== TIMING STATISTICS ===")
	fmt.Fprintf(w, "Total time: %v\n", total)
	fmt.Fprintf(w, "Samples trained: %d\n", t.Samples)
	fmt.Fprintln(w, "\nBreakdown by operation:")
	fmt.Fprintf(w, "  Data loading: %v (%.1f%%)\n", t.DataLoading, share(t.DataLoading))
	fmt.Fprintf(w, "  Model initialization: %v (%.1f%%)\n", t.ModelInit, share(t.ModelInit))
	fmt.Fprintf(w, "  Forward pass: %v (%.1f%%)\n", t.Forward, share(t.Forward))
	fmt.Fprintf(w, "  Backward pass: %v (%.1f%%)\n", t.Backward, share(t.Backward))
	fmt.Fprintf(w, "  Weight updates: %v (%.1f%%)\n", t.Update, share(t.Update))
	if t.Samples > 0 {
		fmt.Fprintf(w, "  Average update time: %v\n", t.Update/time.Duration(t.Samples))
	}
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}
