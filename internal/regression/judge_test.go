package regression

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"netbench/internal/aggregate"
	"netbench/internal/metrics"
)

func baselineDoc(pps, mbps float64, p95 uint64) metrics.Document {
	var d metrics.Document
	d.Packets.RatePPS = pps
	d.Bytes.RateMbps = mbps
	d.LatencyNS.P95 = p95
	d.Metadata = metrics.Metadata{
		Filter:        "",
		Threads:       4,
		WarmupSec:     1,
		DurationSec:   10,
		TrafficMode:   "ping",
		TrafficTarget: "127.0.0.1",
		TrafficRate:   100,
	}
	return d
}

func sameMetadata(d metrics.Document) metrics.Metadata {
	return d.Metadata
}

func TestS1CleanPass(t *testing.T) {
	baseline := baselineDoc(100, 0.5, 200_000)
	current := sameMetadata(baseline)

	runs := []RunInput{
		{PPS: 99, Mbps: 0.5, P95NS: 200_000},
		{PPS: 101, Mbps: 0.5, P95NS: 200_000},
		{PPS: 100, Mbps: 0.5, P95NS: 200_000},
		{PPS: 98, Mbps: 0.5, P95NS: 200_000},
		{PPS: 102, Mbps: 0.5, P95NS: 200_000},
	}
	agg := aggregate.Result{MedianPPS: 100}

	r := Judge(baseline, current, agg, runs, DefaultThreshold)
	assert.Equal(t, Pass, r.Outcome)
}

func TestS2NoisyNonRegressionNotPersistent(t *testing.T) {
	baseline := baselineDoc(100, 0.5, 200_000)
	current := sameMetadata(baseline)

	runs := []RunInput{
		{PPS: 50, Mbps: 0.5, P95NS: 200_000},
		{PPS: 100, Mbps: 0.5, P95NS: 200_000},
		{PPS: 101, Mbps: 0.5, P95NS: 200_000},
		{PPS: 100, Mbps: 0.5, P95NS: 200_000},
		{PPS: 102, Mbps: 0.5, P95NS: 200_000},
	}
	agg := aggregate.Result{MedianPPS: 100}

	r := Judge(baseline, current, agg, runs, DefaultThreshold)
	assert.Equal(t, Pass, r.Outcome)

	for _, v := range r.MetricVerdicts {
		if v.Metric == "pps" {
			assert.Equal(t, 1, v.RegressedRuns)
			assert.Equal(t, 3, v.PersistenceGate)
			assert.False(t, v.Regressed)
		}
	}
}

func TestS3PersistentRegression(t *testing.T) {
	baseline := baselineDoc(100, 0.5, 200_000)
	current := sameMetadata(baseline)

	runs := []RunInput{
		{PPS: 70}, {PPS: 72}, {PPS: 75}, {PPS: 100}, {PPS: 101},
	}
	agg := aggregate.Result{}

	r := Judge(baseline, current, agg, runs, DefaultThreshold)
	assert.Equal(t, Regression, r.Outcome)

	for _, v := range r.MetricVerdicts {
		if v.Metric == "pps" {
			assert.Equal(t, 3, v.RegressedRuns)
			assert.True(t, v.Regressed)
		}
	}
}

func TestS5MetadataMismatchSkipsMetricComparison(t *testing.T) {
	baseline := baselineDoc(100, 0.5, 200_000)
	current := sameMetadata(baseline)
	current.TrafficRate = 100
	baseline.Metadata.TrafficRate = 50

	runs := []RunInput{{PPS: 1000, Mbps: 0.5, P95NS: 200_000}} // would otherwise clearly pass

	r := Judge(baseline, current, aggregate.Result{}, runs, DefaultThreshold)
	assert.Equal(t, MetadataMismatch, r.Outcome)
	assert.Nil(t, r.MetricVerdicts)

	found := false
	for _, s := range r.FieldStatuses {
		if s.Field == "traffic_rate" {
			found = true
			assert.True(t, s.MustMatch)
			assert.False(t, s.Matched)
		}
	}
	assert.True(t, found)
}

func TestWarnOnlyMismatchDoesNotFailComparison(t *testing.T) {
	baseline := baselineDoc(100, 0.5, 200_000)
	current := sameMetadata(baseline)
	current.Interface = "eth1"
	baseline.Metadata.Interface = "eth0"

	runs := []RunInput{{PPS: 100}}

	r := Judge(baseline, current, aggregate.Result{}, runs, DefaultThreshold)
	assert.NotEqual(t, MetadataMismatch, r.Outcome)
}

func TestMissingBaselineMetadataPassesWithWarning(t *testing.T) {
	var baseline metrics.Document
	baseline.Packets.RatePPS = 100

	current := metrics.Metadata{Threads: 4}
	runs := []RunInput{{PPS: 100}}

	r := Judge(baseline, current, aggregate.Result{}, runs, DefaultThreshold)
	assert.NotEqual(t, MetadataMismatch, r.Outcome)
	assert.NotEmpty(t, r.Warning)
	assert.Nil(t, r.FieldStatuses)
}

func TestLatencyRegressionFormula(t *testing.T) {
	baseline := baselineDoc(100, 0.5, 200_000)
	current := sameMetadata(baseline)

	runs := []RunInput{{PPS: 100, Mbps: 0.5, P95NS: 300_000}} // 50% over baseline

	r := Judge(baseline, current, aggregate.Result{}, runs, DefaultThreshold)
	assert.Equal(t, Regression, r.Outcome)
}

func TestDropRateRegressionFormulaWhenBaselineZero(t *testing.T) {
	baseline := baselineDoc(100, 0.5, 200_000) // Packets.Captured/Processed left 0 -> baseline drop rate 0
	current := sameMetadata(baseline)

	runs := []RunInput{{PPS: 100, Mbps: 0.5, P95NS: 200_000, DropRate: 0.5}}

	r := Judge(baseline, current, aggregate.Result{}, runs, DefaultThreshold)
	assert.Equal(t, Regression, r.Outcome)
}
