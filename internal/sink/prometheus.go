package sink

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"netbench/internal/metrics"
)

// PrometheusMirror exposes a live metrics.Core snapshot on /metrics via a
// read-only prometheus.Registry of GaugeFunc collectors, served by a
// gorilla/mux router -- the same router the teacher's API servers
// (cmd/ns-api) use. Exists so a long-running CI node can be scraped
// mid-run; never required for a single netbench run invocation.
type PrometheusMirror struct {
	core   *metrics.Core
	router *mux.Router
	srv    *http.Server
}

// NewPrometheusMirror builds the registry and router but does not start
// listening; call Serve to do that.
func NewPrometheusMirror(core *metrics.Core) *PrometheusMirror {
	reg := prometheus.NewRegistry()

	register := func(name, help string, fn func() float64) {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: name,
			Help: help,
		}, fn))
	}

	register("netbench_pkts_captured", "Frames captured in the current run.", func() float64 {
		return float64(core.Snapshot().PktsCaptured)
	})
	register("netbench_pkts_processed", "Frames successfully processed in the current run.", func() float64 {
		return float64(core.Snapshot().PktsProcessed)
	})
	register("netbench_rate_pps", "Processed packets per second over the capture-elapsed window.", func() float64 {
		return core.Snapshot().RatePPS()
	})
	register("netbench_rate_mbps", "Processed throughput in mebibytes per second.", func() float64 {
		return core.Snapshot().RateMbps()
	})
	register("netbench_drop_rate", "Fraction of captured frames never processed.", func() float64 {
		return core.Snapshot().DropRate()
	})
	register("netbench_latency_p95_ns", "95th percentile end-to-end latency in nanoseconds.", func() float64 {
		return float64(core.Snapshot().P95())
	})
	register("netbench_queue_depth_max", "High-water mark of the bounded queue's depth.", func() float64 {
		return float64(core.Snapshot().QueueDepthMax)
	})

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return &PrometheusMirror{core: core, router: router}
}

// Serve starts the HTTP listener on addr; it blocks until the server is
// shut down via Close, so callers run it in its own goroutine.
func (m *PrometheusMirror) Serve(addr string) error {
	m.srv = &http.Server{Addr: addr, Handler: m.router}
	err := m.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close gracefully shuts down the HTTP listener.
func (m *PrometheusMirror) Close() error {
	if m.srv == nil {
		return nil
	}
	return m.srv.Close()
}
