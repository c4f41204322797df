// Package capture implements the capture engine from spec §4.E: it drains a
// kernel buffer one read at a time and hands each frame to the caller as a
// frame.Captured stamped with its arrival time at emission, never at read
// completion (spec §9's open question, resolved in favor of the emission
// point on every backend so Linux and Darwin report comparable latency).
package capture

import (
	"errors"

	"netbench/internal/bpfprog"
	"netbench/internal/clock"
	"netbench/internal/frame"
	"netbench/internal/metrics"
)

// ErrPersistent signals a capture failure the Controller must treat as fatal
// for the current run, as opposed to the transient "no packet available"
// condition Poll reports by simply returning ok=false.
var ErrPersistent = errors.New("capture: persistent engine failure")

// Config configures an Engine.
type Config struct {
	Interface   string
	Promiscuous bool
	BufferSize  int // kernel read buffer size; 0 selects the backend default
	Filter      *bpfprog.Program
}

// Engine is the minimal capture-source contract the Controller drives. Poll
// is called in a tight loop; it must never block longer than the backend's
// own short read timeout.
type Engine interface {
	// Open acquires the underlying file descriptor and installs the filter.
	Open(cfg Config) error

	// Poll attempts to produce one captured frame. ok is false when no
	// frame was available (EAGAIN/EINTR/zero-byte read) -- this is not an
	// error, and the caller should retry after a short sleep. A non-nil
	// error is always wrapped in ErrPersistent and means the Controller
	// must end the current run.
	Poll(metricsCore *metrics.Core) (fr frame.Captured, ok bool, err error)

	// Close releases the file descriptor and any kernel buffer.
	Close() error
}

// stampArrival returns a frame.Captured for data already sized to its
// capture length, stamped at the moment of this call (the emission point).
func stampArrival(data []byte, wireLen int) frame.Captured {
	return frame.Captured{
		ArrivalNS: clock.NowNS(),
		Data:      data,
		WireLen:   wireLen,
	}
}

// truncate returns src cut to at most max bytes (a subslice, not a copy),
// reporting whether truncation occurred so the caller can account a
// capture drop.
func truncate(src []byte, max int) (out []byte, truncated bool) {
	if len(src) <= max {
		return src, false
	}
	return src[:max], true
}
