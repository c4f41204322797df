// Package metrics implements the process-wide lock-free metrics core: atomic
// counters, a log-bucketed latency histogram, and a snapshot protocol. It is
// the single point of truth the worker pool writes into and the controller
// reads out of between runs.
package metrics

import (
	"sync/atomic"

	"netbench/internal/clock"
)

// HistogramBuckets is the number of exponential latency buckets tracked.
// Bucket 0 covers [0,1)us; bucket i in [1,30] covers [2^(i-1), 2^i)us;
// bucket 31 catches everything at or above 2^30 us.
const HistogramBuckets = 32

// Core is the process-wide singleton metrics structure. Every counter field
// is updated with atomic read-modify-write operations so capture and worker
// goroutines never block on a lock to record an observation. Snapshot takes
// an independent atomic load of each field; fields are individually
// consistent but there is no cross-field consistency guarantee, which is
// sufficient for rate and percentile estimation (see spec §5).
type Core struct {
	pktsCaptured  uint64
	pktsProcessed uint64
	bytesCaptured uint64
	bytesProcessed uint64

	parseErrors       uint64
	checksumFailures  uint64
	queueDrops        uint64
	captureDrops      uint64

	etherIPv4 uint64
	etherIPv6 uint64
	etherARP  uint64
	etherOther uint64

	protoTCP   uint64
	protoUDP   uint64
	protoICMP  uint64
	protoOther uint64

	queueDepthMax uint32

	latencyCount uint64
	latencySumNS uint64
	latencyMaxNS uint64
	histogram    [HistogramBuckets]uint64

	// startNS and captureEndNS are written only by the controller goroutine
	// between phase transitions; workers only ever observe them through
	// Snapshot, which the controller does not call during a transition, so
	// no atomic is needed for the writes themselves. They are still read
	// with atomic.LoadUint64 so the race detector and any future concurrent
	// reader stay honest about the field being shared.
	startNS      uint64
	captureEndNS uint64
}

// New returns a zeroed metrics core, equivalent to calling Init on a fresh
// value.
func New() *Core {
	return &Core{}
}

// Init resets every field to zero. Called at the start of each run and again
// at the warmup-to-measure boundary, so warmup observations never leak into
// the aggregated result.
func (c *Core) Init() {
	atomic.StoreUint64(&c.pktsCaptured, 0)
	atomic.StoreUint64(&c.pktsProcessed, 0)
	atomic.StoreUint64(&c.bytesCaptured, 0)
	atomic.StoreUint64(&c.bytesProcessed, 0)

	atomic.StoreUint64(&c.parseErrors, 0)
	atomic.StoreUint64(&c.checksumFailures, 0)
	atomic.StoreUint64(&c.queueDrops, 0)
	atomic.StoreUint64(&c.captureDrops, 0)

	atomic.StoreUint64(&c.etherIPv4, 0)
	atomic.StoreUint64(&c.etherIPv6, 0)
	atomic.StoreUint64(&c.etherARP, 0)
	atomic.StoreUint64(&c.etherOther, 0)

	atomic.StoreUint64(&c.protoTCP, 0)
	atomic.StoreUint64(&c.protoUDP, 0)
	atomic.StoreUint64(&c.protoICMP, 0)
	atomic.StoreUint64(&c.protoOther, 0)

	atomic.StoreUint32(&c.queueDepthMax, 0)

	atomic.StoreUint64(&c.latencyCount, 0)
	atomic.StoreUint64(&c.latencySumNS, 0)
	atomic.StoreUint64(&c.latencyMaxNS, 0)
	for i := range c.histogram {
		atomic.StoreUint64(&c.histogram[i], 0)
	}

	atomic.StoreUint64(&c.startNS, 0)
	atomic.StoreUint64(&c.captureEndNS, 0)
}

// Start records the current monotonic time as the start of the measurement
// window. Writer-exclusive: only the controller goroutine calls this.
func (c *Core) Start() {
	atomic.StoreUint64(&c.startNS, clock.NowNS())
}

// StopCapture records the current monotonic time as the end of the capture
// loop, excluding any drain period that follows. Writer-exclusive.
func (c *Core) StopCapture() {
	atomic.StoreUint64(&c.captureEndNS, clock.NowNS())
}

// IsActive reports whether Start has been called since the last Init.
func (c *Core) IsActive() bool {
	return atomic.LoadUint64(&c.startNS) > 0
}

// IncCaptured records one captured frame of the given size.
func (c *Core) IncCaptured(bytes uint32) {
	atomic.AddUint64(&c.pktsCaptured, 1)
	atomic.AddUint64(&c.bytesCaptured, uint64(bytes))
}

// IncProcessed records one successfully decoded frame of the given size.
func (c *Core) IncProcessed(bytes uint32) {
	atomic.AddUint64(&c.pktsProcessed, 1)
	atomic.AddUint64(&c.bytesProcessed, uint64(bytes))
}

// IncParseErrors increments the parse error counter.
func (c *Core) IncParseErrors() { atomic.AddUint64(&c.parseErrors, 1) }

// IncChecksumFailures increments the advisory checksum failure counter.
func (c *Core) IncChecksumFailures() { atomic.AddUint64(&c.checksumFailures, 1) }

// IncQueueDrops increments the bounded-queue drop counter.
func (c *Core) IncQueueDrops() { atomic.AddUint64(&c.queueDrops, 1) }

// IncCaptureDrops increments the capture-truncation drop counter.
func (c *Core) IncCaptureDrops() { atomic.AddUint64(&c.captureDrops, 1) }

// EtherType identifies the L2/L3 ethertype bucket a processed frame falls
// into for RecordEtherType.
type EtherType uint16

const (
	EtherIPv4 EtherType = 0x0800
	EtherIPv6 EtherType = 0x86DD
	EtherARP  EtherType = 0x0806
)

// RecordEtherType buckets a decoded frame into one of the four L3 counters.
// Any ethertype other than IPv4/IPv6/ARP falls into the "other" catch-all.
func (c *Core) RecordEtherType(ether EtherType) {
	switch ether {
	case EtherIPv4:
		atomic.AddUint64(&c.etherIPv4, 1)
	case EtherIPv6:
		atomic.AddUint64(&c.etherIPv6, 1)
	case EtherARP:
		atomic.AddUint64(&c.etherARP, 1)
	default:
		atomic.AddUint64(&c.etherOther, 1)
	}
}

// Protocol identifies the L4 protocol bucket a processed frame falls into
// for RecordProtocol.
type Protocol uint8

const (
	ProtoTCP    Protocol = 6
	ProtoUDP    Protocol = 17
	ProtoICMP   Protocol = 1
	ProtoICMPv6 Protocol = 58
)

// RecordProtocol buckets a decoded frame into one of the four L4 counters.
// ICMP and ICMPv6 both count toward proto_icmp; anything else is "other".
func (c *Core) RecordProtocol(proto Protocol) {
	switch proto {
	case ProtoTCP:
		atomic.AddUint64(&c.protoTCP, 1)
	case ProtoUDP:
		atomic.AddUint64(&c.protoUDP, 1)
	case ProtoICMP, ProtoICMPv6:
		atomic.AddUint64(&c.protoICMP, 1)
	default:
		atomic.AddUint64(&c.protoOther, 1)
	}
}

// ObserveLatency records one end-to-end latency sample: bumps count and sum,
// raises max via a compare-exchange loop, and increments the histogram
// bucket Bucket(latencyNS) selects.
func (c *Core) ObserveLatency(latencyNS uint64) {
	atomic.AddUint64(&c.latencyCount, 1)
	atomic.AddUint64(&c.latencySumNS, latencyNS)

	for {
		cur := atomic.LoadUint64(&c.latencyMaxNS)
		if latencyNS <= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&c.latencyMaxNS, cur, latencyNS) {
			break
		}
	}

	atomic.AddUint64(&c.histogram[Bucket(latencyNS)], 1)
}

// UpdateQueueDepthMax raises the queue_depth_max watermark to depth if depth
// is greater than the current watermark, via a compare-exchange loop.
func (c *Core) UpdateQueueDepthMax(depth uint32) {
	for {
		cur := atomic.LoadUint32(&c.queueDepthMax)
		if depth <= cur {
			break
		}
		if atomic.CompareAndSwapUint32(&c.queueDepthMax, cur, depth) {
			break
		}
	}
}
