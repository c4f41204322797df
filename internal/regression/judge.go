// Package regression implements the regression judge from spec §4.I: it
// compares an aggregate measurement against a stored baseline, enforcing a
// must-match/warn-only metadata split before judging each metric for
// persistent regression across runs. It is grounded on the teacher's
// internal/alerter package for the general shape of a rule-evaluation stage
// that produces a structured verdict rather than throwing, translated here
// from per-task alert rules to a single baseline-vs-aggregate comparison.
package regression

import (
	"fmt"
	"math"

	"netbench/internal/aggregate"
	"netbench/internal/metrics"
)

// DefaultThreshold is θ from spec §4.I: the fractional degradation a single
// run must exceed before it counts as regressed on a given metric.
const DefaultThreshold = 0.10

// Outcome is the judge's overall verdict.
type Outcome int

const (
	Pass Outcome = iota
	Regression
	MetadataMismatch
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "Pass"
	case Regression:
		return "Regression"
	case MetadataMismatch:
		return "MetadataMismatch"
	default:
		return "Unknown"
	}
}

// mustMatchFields are fatal-on-mismatch per spec §4.I.
var mustMatchFields = []string{"filter", "threads", "warmup_sec", "duration_sec", "traffic_mode", "traffic_target", "traffic_rate"}

// warnOnlyFields are logged but never fail the comparison.
var warnOnlyFields = []string{"interface", "os", "bpf_buffer_size", "git_sha"}

// FieldStatus reports whether one metadata field matched between baseline
// and current run.
type FieldStatus struct {
	Field      string
	MustMatch  bool
	Matched    bool
	Baseline   string
	Current    string
}

// MetricVerdict reports the per-run regression count for one metric.
type MetricVerdict struct {
	Metric          string
	RegressedRuns   int
	TotalRuns       int
	PersistenceGate int
	Regressed       bool
}

// Report is the judge's full structured output. The judge never returns a
// bare error for a metric comparison; only a missing/invalid baseline is an
// error, handled by the caller of metrics.Load before Judge is ever invoked.
type Report struct {
	Outcome        Outcome
	FieldStatuses  []FieldStatus
	MetricVerdicts []MetricVerdict
	Warning        string // set when the baseline had no metadata block
	Aggregate      aggregate.Result
}

// fieldValues extracts the must-match/warn-only metadata fields as strings
// for uniform comparison, since the fields mix string and int types.
func fieldValues(m metrics.Metadata) map[string]string {
	return map[string]string{
		"interface":       m.Interface,
		"filter":          m.Filter,
		"threads":         fmt.Sprintf("%d", m.Threads),
		"warmup_sec":      fmt.Sprintf("%d", m.WarmupSec),
		"duration_sec":    fmt.Sprintf("%d", m.DurationSec),
		"traffic_mode":    m.TrafficMode,
		"traffic_target":  m.TrafficTarget,
		"traffic_rate":    fmt.Sprintf("%d", m.TrafficRate),
		"os":              m.OS,
		"bpf_buffer_size": fmt.Sprintf("%d", m.BPFBufferSize),
		"git_sha":         m.GitSHA,
	}
}

// checkMetadata compares current against baseline metadata, returning the
// per-field statuses and whether any must-match field mismatched.
func checkMetadata(baseline, current metrics.Metadata, baselineHasMetadata bool) ([]FieldStatus, bool) {
	if !baselineHasMetadata {
		return nil, false
	}

	baseVals := fieldValues(baseline)
	curVals := fieldValues(current)

	var statuses []FieldStatus
	mismatch := false

	for _, f := range mustMatchFields {
		matched := baseVals[f] == curVals[f]
		statuses = append(statuses, FieldStatus{Field: f, MustMatch: true, Matched: matched, Baseline: baseVals[f], Current: curVals[f]})
		if !matched {
			mismatch = true
		}
	}
	for _, f := range warnOnlyFields {
		matched := baseVals[f] == curVals[f]
		statuses = append(statuses, FieldStatus{Field: f, MustMatch: false, Matched: matched, Baseline: baseVals[f], Current: curVals[f]})
	}

	return statuses, mismatch
}

// RunInput is a single run's metrics, used for per-run persistence
// counting; the aggregate carries only the medians.
type RunInput struct {
	PPS      float64
	Mbps     float64
	P95NS    uint64
	DropRate float64
}

// Judge compares the aggregate and per-run results against baseline,
// per spec §4.I. A baseline whose Metadata is the zero value is treated as
// having no metadata block: the compatibility check passes and the report
// carries a warning.
func Judge(baseline metrics.Document, current metrics.Metadata, agg aggregate.Result, runs []RunInput, threshold float64) Report {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	baselineHasMetadata := baseline.Metadata != (metrics.Metadata{})
	statuses, mismatch := checkMetadata(baseline.Metadata, current, baselineHasMetadata)

	report := Report{FieldStatuses: statuses, Aggregate: agg}
	if !baselineHasMetadata {
		report.Warning = "baseline has no metadata block; compatibility check passed with a warning"
	}
	if mismatch {
		report.Outcome = MetadataMismatch
		return report
	}

	gate := persistenceGate(len(runs))

	ppsVerdict := judgeMetric("pps", runs, gate, func(r RunInput) bool {
		return r.PPS < baseline.Packets.RatePPS*(1-threshold)
	})
	mbpsVerdict := judgeMetric("mbps", runs, gate, func(r RunInput) bool {
		return r.Mbps < baseline.Bytes.RateMbps*(1-threshold)
	})
	latencyVerdict := judgeMetric("p95_latency", runs, gate, func(r RunInput) bool {
		return float64(r.P95NS) > float64(baseline.LatencyNS.P95)*(1+threshold)
	})
	dropVerdict := judgeMetric("drop_rate", runs, gate, func(r RunInput) bool {
		baselineDrop := baselineDropRate(baseline)
		if baselineDrop > 0 {
			return r.DropRate > baselineDrop*(1+threshold)
		}
		return r.DropRate > threshold
	})

	report.MetricVerdicts = []MetricVerdict{ppsVerdict, mbpsVerdict, latencyVerdict, dropVerdict}

	for _, v := range report.MetricVerdicts {
		if v.Regressed {
			report.Outcome = Regression
			return report
		}
	}
	report.Outcome = Pass
	return report
}

// persistenceGate is ceil(0.6*runs), minimum 1 (spec §4.I).
func persistenceGate(n int) int {
	if n == 0 {
		return 1
	}
	gate := int(math.Ceil(0.6 * float64(n)))
	if gate < 1 {
		gate = 1
	}
	return gate
}

func judgeMetric(name string, runs []RunInput, gate int, isRegressed func(RunInput) bool) MetricVerdict {
	count := 0
	for _, r := range runs {
		if isRegressed(r) {
			count++
		}
	}
	return MetricVerdict{
		Metric:          name,
		RegressedRuns:   count,
		TotalRuns:       len(runs),
		PersistenceGate: gate,
		Regressed:       count >= gate,
	}
}

func baselineDropRate(baseline metrics.Document) float64 {
	if baseline.Packets.Captured == 0 {
		return 0
	}
	dropped := baseline.Packets.Captured - baseline.Packets.Processed
	return float64(dropped) / float64(baseline.Packets.Captured)
}
