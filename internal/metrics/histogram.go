package metrics

import "math/bits"

// Bucket maps a latency in nanoseconds to a histogram bucket index per the
// contract in spec §4.B: let us = ns/1000; bucket 0 covers us==0; otherwise
// bucket i = min(floor(log2(us))+1, 31).
func Bucket(latencyNS uint64) int {
	us := latencyNS / 1000
	if us == 0 {
		return 0
	}
	i := bits.Len64(us) // floor(log2(us)) + 1, since us > 0
	if i > HistogramBuckets-1 {
		i = HistogramBuckets - 1
	}
	return i
}

// bucketMidpointNS returns the representative latency, in nanoseconds, for
// bucket i: bucket 0 is defined as 500ns; bucket i in [1,31] is the midpoint
// of [2^(i-1), 2^i) microseconds.
func bucketMidpointNS(i int) uint64 {
	if i <= 0 {
		return 500
	}
	lo := uint64(1) << uint(i-1)
	hi := uint64(1) << uint(i)
	return (lo + hi) / 2 * 1000
}

// PercentileNS walks the histogram in bucket order, accumulating counts,
// and returns the midpoint of the first bucket whose cumulative count
// reaches p*total. Returns 0 for an empty histogram.
func PercentileNS(histogram [HistogramBuckets]uint64, total uint64, p float64) uint64 {
	if total == 0 {
		return 0
	}
	target := p * float64(total)
	var cumulative uint64
	for i, count := range histogram {
		cumulative += count
		if float64(cumulative) >= target {
			return bucketMidpointNS(i)
		}
	}
	return bucketMidpointNS(HistogramBuckets - 1)
}
