package sink

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"netbench/internal/metrics"
)

func TestPrometheusMirrorServesMetrics(t *testing.T) {
	core := metrics.New()
	core.IncCaptured(100)
	core.IncProcessed(90)

	m := NewPrometheusMirror(core)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.router.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "netbench_pkts_captured")
	assert.Contains(t, body, "netbench_pkts_processed")
}

func TestPrometheusMirrorCloseWithoutServeIsNoop(t *testing.T) {
	m := NewPrometheusMirror(metrics.New())
	assert.NoError(t, m.Close())
}
