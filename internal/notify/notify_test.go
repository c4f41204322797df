package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"netbench/internal/config"
	"netbench/internal/regression"
)

func TestNewEmailNotifierNilWithoutHost(t *testing.T) {
	n := NewEmailNotifier(config.SMTPConfig{})
	assert.Nil(t, n)
}

func TestNewEmailNotifierBuildsWithHost(t *testing.T) {
	n := NewEmailNotifier(config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "ci@example.com", To: []string{"a@example.com"}})
	assert.NotNil(t, n)
}

func TestNotifyRegressionOnNilNotifierIsNoop(t *testing.T) {
	var n *EmailNotifier
	err := n.NotifyRegression("run-1", regression.Report{})
	assert.NoError(t, err)
}

func TestRenderMarkdownIncludesOutcomeAndMetrics(t *testing.T) {
	report := regression.Report{
		Outcome: regression.Regression,
		MetricVerdicts: []regression.MetricVerdict{
			{Metric: "pps", RegressedRuns: 4, TotalRuns: 5, PersistenceGate: 3, Regressed: true},
		},
		FieldStatuses: []regression.FieldStatus{
			{Field: "filter", MustMatch: true, Matched: true, Baseline: "tcp", Current: "tcp"},
		},
	}

	out := renderMarkdown("run-42", report)

	assert.True(t, strings.Contains(out, "run-42"))
	assert.True(t, strings.Contains(out, "Regression"))
	assert.True(t, strings.Contains(out, "pps"))
	assert.True(t, strings.Contains(out, "REGRESSED"))
	assert.True(t, strings.Contains(out, "filter"))
}

func TestRenderMarkdownIncludesWarning(t *testing.T) {
	report := regression.Report{
		Outcome: regression.Pass,
		Warning: "baseline has no metadata block; compatibility check passed with a warning",
	}

	out := renderMarkdown("run-1", report)

	assert.True(t, strings.Contains(out, "compatibility check passed with a warning"))
}
