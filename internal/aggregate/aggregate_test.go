package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeRun is a minimal RunMetrics fixture so these tests don't need to
// build a real metrics.Core.
type fakeRun struct {
	pps       float64
	mbps      float64
	p95       uint64
	processed uint64
}

func (f fakeRun) RatePPS() float64  { return f.pps }
func (f fakeRun) RateMbps() float64 { return f.mbps }
func (f fakeRun) P95() uint64       { return f.p95 }
func (f fakeRun) Processed() uint64 { return f.processed }

func runs(pps ...float64) []RunMetrics {
	out := make([]RunMetrics, len(pps))
	for i, p := range pps {
		out[i] = fakeRun{pps: p, processed: 100}
	}
	return out
}

func TestMedianOddCount(t *testing.T) {
	r := Aggregate(runs(1, 2, 3, 4, 5), 0)
	assert.Equal(t, 3.0, r.MedianPPS)
}

func TestMedianEvenCountIsMeanOfCentralTwo(t *testing.T) {
	r := Aggregate(runs(1, 2, 3, 4), 0)
	assert.Equal(t, 2.5, r.MedianPPS)
}

func TestMedianOfIdenticalValuesIsIdempotent(t *testing.T) {
	r := Aggregate(runs(7, 7, 7, 7, 7), 0)
	assert.Equal(t, 7.0, r.MedianPPS)
}

func TestMedianIgnoresInputOrder(t *testing.T) {
	r := Aggregate(runs(5, 1, 4, 2, 3), 0)
	assert.Equal(t, 3.0, r.MedianPPS)
}

func TestTotalProcessedSumsAllRuns(t *testing.T) {
	rs := []RunMetrics{
		fakeRun{processed: 60},
		fakeRun{processed: 50},
		fakeRun{processed: 40},
	}
	r := Aggregate(rs, 100)
	assert.EqualValues(t, 150, r.TotalProcessed)
	assert.False(t, r.Insufficient)
}

func TestInsufficientWhenBelowMinPackets(t *testing.T) {
	rs := []RunMetrics{
		fakeRun{processed: 80},
		fakeRun{processed: 70},
	}
	r := Aggregate(rs, 200)
	assert.EqualValues(t, 150, r.TotalProcessed)
	assert.True(t, r.Insufficient)
}

func TestEmptyRunsProducesZeroResult(t *testing.T) {
	r := Aggregate(nil, 0)
	assert.Zero(t, r.MedianPPS)
	assert.Zero(t, r.TotalProcessed)
	assert.False(t, r.Insufficient)
}
