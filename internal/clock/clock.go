// Package clock provides the single monotonic time source used across the
// measurement pipeline. All latency and duration math is done in nanoseconds
// from this source; wall-clock time is only ever used for report timestamps.
package clock

import (
	"sync/atomic"
	"time"
)

// epoch anchors NowNS to process start so the returned values stay well
// within the range of a uint64 nanosecond count for the lifetime of a run.
var epoch = time.Now()

// last is the most recent value NowNS returned.
var last atomic.Uint64

// NowNS returns the current time in nanoseconds from a monotonic clock.
// It is strictly increasing across calls within a process.
func NowNS() uint64 {
	for {
		prev := last.Load()
		now := uint64(time.Since(epoch).Nanoseconds())
		if now <= prev {
			now = prev + 1
		}
		if last.CompareAndSwap(prev, now) {
			return now
		}
	}
}
