package metrics

import "sync/atomic"

// Snapshot is a non-atomic, point-in-time copy of the metrics core plus the
// derived fields a report needs. It owns no references into the core and is
// safe to hold onto after the core has moved on to its next run.
type Snapshot struct {
	PktsCaptured  uint64
	PktsProcessed uint64
	BytesCaptured uint64
	BytesProcessed uint64

	ParseErrors      uint64
	ChecksumFailures uint64
	QueueDrops       uint64
	CaptureDrops     uint64

	EtherIPv4  uint64
	EtherIPv6  uint64
	EtherARP   uint64
	EtherOther uint64

	ProtoTCP   uint64
	ProtoUDP   uint64
	ProtoICMP  uint64
	ProtoOther uint64

	QueueDepthMax uint32

	LatencyCount uint64
	LatencySumNS uint64
	LatencyMaxNS uint64
	Histogram    [HistogramBuckets]uint64

	StartNS      uint64
	SnapshotNS   uint64
	CaptureEndNS uint64

	ElapsedSec        float64
	CaptureElapsedSec float64
}

// Snapshot performs an independent atomic load of every field and computes
// the derived elapsed/capture_elapsed durations. It never blocks a writer.
func (c *Core) Snapshot() Snapshot {
	now := nowNSForSnapshot()

	s := Snapshot{
		PktsCaptured:   atomic.LoadUint64(&c.pktsCaptured),
		PktsProcessed:  atomic.LoadUint64(&c.pktsProcessed),
		BytesCaptured:  atomic.LoadUint64(&c.bytesCaptured),
		BytesProcessed: atomic.LoadUint64(&c.bytesProcessed),

		ParseErrors:      atomic.LoadUint64(&c.parseErrors),
		ChecksumFailures: atomic.LoadUint64(&c.checksumFailures),
		QueueDrops:       atomic.LoadUint64(&c.queueDrops),
		CaptureDrops:     atomic.LoadUint64(&c.captureDrops),

		EtherIPv4:  atomic.LoadUint64(&c.etherIPv4),
		EtherIPv6:  atomic.LoadUint64(&c.etherIPv6),
		EtherARP:   atomic.LoadUint64(&c.etherARP),
		EtherOther: atomic.LoadUint64(&c.etherOther),

		ProtoTCP:   atomic.LoadUint64(&c.protoTCP),
		ProtoUDP:   atomic.LoadUint64(&c.protoUDP),
		ProtoICMP:  atomic.LoadUint64(&c.protoICMP),
		ProtoOther: atomic.LoadUint64(&c.protoOther),

		QueueDepthMax: atomic.LoadUint32(&c.queueDepthMax),

		LatencyCount: atomic.LoadUint64(&c.latencyCount),
		LatencySumNS: atomic.LoadUint64(&c.latencySumNS),
		LatencyMaxNS: atomic.LoadUint64(&c.latencyMaxNS),

		StartNS:      atomic.LoadUint64(&c.startNS),
		SnapshotNS:   now,
		CaptureEndNS: atomic.LoadUint64(&c.captureEndNS),
	}
	for i := range c.histogram {
		s.Histogram[i] = atomic.LoadUint64(&c.histogram[i])
	}

	if s.StartNS > 0 {
		s.ElapsedSec = float64(now-s.StartNS) / 1e9
		if s.CaptureEndNS > 0 {
			s.CaptureElapsedSec = float64(s.CaptureEndNS-s.StartNS) / 1e9
		} else {
			s.CaptureElapsedSec = s.ElapsedSec
		}
	}

	return s
}

// P50 returns the 50th percentile latency in nanoseconds.
func (s Snapshot) P50() uint64 { return PercentileNS(s.Histogram, s.LatencyCount, 0.50) }

// P95 returns the 95th percentile latency in nanoseconds.
func (s Snapshot) P95() uint64 { return PercentileNS(s.Histogram, s.LatencyCount, 0.95) }

// P99 returns the 99th percentile latency in nanoseconds.
func (s Snapshot) P99() uint64 { return PercentileNS(s.Histogram, s.LatencyCount, 0.99) }

// Processed returns the number of frames this snapshot counted as
// processed, satisfying aggregate.RunMetrics.
func (s Snapshot) Processed() uint64 { return s.PktsProcessed }

// AvgLatencyNS returns the mean latency in nanoseconds, or 0 if no samples
// were observed.
func (s Snapshot) AvgLatencyNS() uint64 {
	if s.LatencyCount == 0 {
		return 0
	}
	return s.LatencySumNS / s.LatencyCount
}

// RatePPS returns packets processed per second over the capture-elapsed
// window, the only legal denominator for throughput (spec §4.G).
func (s Snapshot) RatePPS() float64 {
	if s.CaptureElapsedSec <= 0 {
		return 0
	}
	return float64(s.PktsProcessed) / s.CaptureElapsedSec
}

// RateMbps returns processed throughput in mebibytes per second over the
// capture-elapsed window, matching the original implementation's
// bytes_processed / capture_elapsed_sec / (1024*1024) (regression.c).
func (s Snapshot) RateMbps() float64 {
	if s.CaptureElapsedSec <= 0 {
		return 0
	}
	return float64(s.BytesProcessed) / s.CaptureElapsedSec / (1024 * 1024)
}

// DropRate returns the fraction of captured frames that were never
// processed: frames dropped on a full queue and frames that failed to
// parse. A frame truncated at capture (capture_drops) is still processed
// and does not count here. Returns 0 when processed is not below captured.
func (s Snapshot) DropRate() float64 {
	if s.PktsCaptured == 0 || s.PktsProcessed >= s.PktsCaptured {
		return 0
	}
	dropped := s.PktsCaptured - s.PktsProcessed
	return float64(dropped) / float64(s.PktsCaptured)
}

// nowNSForSnapshot is a seam over clock.NowNS so snapshot tests can observe
// deterministic elapsed values without sleeping; production code always
// calls the real clock.
var nowNSForSnapshot = defaultNowNS
