// Package controller implements the measurement controller from spec §4.G:
// the warmup/measure phase machine that drives the capture engine across N
// independent runs, resetting the metrics core at each phase boundary and
// deriving a RunResult from its snapshot once a run's drain period ends.
// It is grounded on the teacher's internal/engine/manager.Manager: the same
// goroutine-per-concern shape (a packet-processing worker pool started once,
// long-lived, alongside a phase loop that owns resets) translated from the
// teacher's fixed measurement-window/reset-ticker pair into a one-shot,
// signal-interruptible phase state machine.
package controller

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"netbench/internal/capture"
	"netbench/internal/clock"
	"netbench/internal/metrics"
	"netbench/internal/queue"
)

// drainDelay is the fixed sleep after stop_capture, before a run's snapshot
// is taken, so in-flight frames already past the capture engine have time
// to clear the worker pool (spec §4.G).
const drainDelay = 500 * time.Millisecond

// pollIdleSleep is the short backoff used when Poll reports no packet
// available, matching spec §7's transient-I/O recovery policy.
const pollIdleSleep = time.Millisecond

// TrafficGenerator is the lifecycle hook the Controller drives around the
// measurement window. Implementations must tolerate Stop being called when
// Start was never called or failed.
type TrafficGenerator interface {
	Start() error
	Stop()
}

// RunConfig holds the per-process configuration a Controller needs to drive
// every run. The baseline's metadata block is not built from it; the
// caller assembles that separately.
type RunConfig struct {
	Interface   string
	Promiscuous bool
	BufferSize  int
	Threads     int
	QueueDepth  int

	WarmupSec   int
	DurationSec int // measurement window length in seconds; 0 = unlimited
	MaxPackets  int // packet-count limit for the measurement window; 0 = unlimited
}

// Controller owns the capture engine, the bounded queue, and the worker
// pool for the lifetime of the process, and sequences `runs` independent
// warmup/measure cycles over them.
type Controller struct {
	cfg    RunConfig
	engine capture.Engine
	core   *metrics.Core
	q      *queue.Queue
	pool   *queue.Pool
	gen    TrafficGenerator

	log *logrus.Entry

	stop atomic.Bool
}

// New builds a Controller around a freshly constructed platform capture
// engine. gen may be nil when no traffic generator is configured.
func New(cfg RunConfig, core *metrics.Core, gen TrafficGenerator, log *logrus.Entry) *Controller {
	return NewWithEngine(cfg, core, gen, log, capture.New())
}

// NewWithEngine builds a Controller around a caller-supplied Engine,
// letting tests substitute a fake engine instead of a real capture socket.
func NewWithEngine(cfg RunConfig, core *metrics.Core, gen TrafficGenerator, log *logrus.Entry, eng capture.Engine) *Controller {
	if cfg.Threads <= 0 {
		cfg.Threads = 4
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 100
	}
	return &Controller{
		cfg:    cfg,
		engine: eng,
		core:   core,
		gen:    gen,
		log:    log,
	}
}

// Open acquires the capture file descriptor and starts the worker pool.
// Both live for the remainder of the process, per spec §5's resource
// lifecycle: the capture fd and worker threads are process-scoped, not
// per-run.
func (c *Controller) Open(captureCfg capture.Config) error {
	if err := c.engine.Open(captureCfg); err != nil {
		return fmt.Errorf("controller: open capture engine: %w", err)
	}

	c.q = queue.New(c.cfg.QueueDepth, c.core)
	c.pool = queue.NewPool(c.q, c.core)
	c.pool.Start(c.cfg.Threads)
	return nil
}

// Close shuts down the queue, waits for every worker to drain it, and
// releases the capture engine.
func (c *Controller) Close() error {
	if c.q != nil {
		c.q.Shutdown()
	}
	if c.pool != nil {
		c.pool.Wait()
	}
	return c.engine.Close()
}

// Stop sets the shared stop flag; the current run exits cleanly at its next
// loop iteration (spec §4.G). Safe to call from a signal handler.
func (c *Controller) Stop() {
	c.stop.Store(true)
}

// Stopped reports whether Stop has been called.
func (c *Controller) Stopped() bool {
	return c.stop.Load()
}

// RunAll sequences `runs` independent measurement cycles and returns one
// snapshot per completed run. It stops early, returning the runs completed
// so far, if Stop is called between runs.
func (c *Controller) RunAll(runs int) ([]metrics.Snapshot, error) {
	results := make([]metrics.Snapshot, 0, runs)
	for r := 1; r <= runs; r++ {
		if c.Stopped() {
			c.log.WithField("run", r).Warn("stop requested before run started, ending early")
			break
		}
		snap, err := c.runOne(r)
		if err != nil {
			return results, err
		}
		results = append(results, snap)
	}
	return results, nil
}

// runOne drives one warmup/measure cycle to completion and returns the
// resulting snapshot, exactly per the phase machine in spec §4.G.
func (c *Controller) runOne(run int) (metrics.Snapshot, error) {
	rlog := c.log.WithField("run", run)
	c.core.Init()

	if c.gen != nil {
		if err := c.gen.Start(); err != nil {
			rlog.WithError(err).Warn("traffic generator failed to start; run continues")
		}
	}

	phaseStart := clock.NowNS()
	warmupEnd := phaseStart + uint64(c.cfg.WarmupSec)*1e9
	var measureEnd uint64 // 0 means unlimited
	if c.cfg.DurationSec > 0 {
		measureEnd = warmupEnd + uint64(c.cfg.DurationSec)*1e9
	}

	inMeasure := c.cfg.WarmupSec == 0
	if inMeasure {
		c.core.Init()
		c.core.Start()
		rlog.Debug("warmup skipped, measurement begins immediately")
	} else {
		rlog.WithField("warmup_sec", c.cfg.WarmupSec).Debug("warmup phase begins")
	}

	var captured uint64
	for {
		if c.Stopped() {
			rlog.Warn("stop signal observed, ending run at next iteration")
			break
		}

		now := clock.NowNS()
		if !inMeasure && now >= warmupEnd {
			c.core.Init()
			c.core.Start()
			inMeasure = true
			rlog.Debug("measurement phase begins")
		}
		if inMeasure && measureEnd > 0 && now >= measureEnd {
			break
		}

		fr, ok, err := c.engine.Poll(c.core)
		if err != nil {
			if c.gen != nil {
				c.gen.Stop()
			}
			return metrics.Snapshot{}, fmt.Errorf("controller: run %d: %w", run, err)
		}
		if !ok {
			time.Sleep(pollIdleSleep)
			continue
		}

		c.core.IncCaptured(uint32(fr.CapLen()))
		c.q.Enqueue(fr)
		captured++

		if c.cfg.MaxPackets > 0 && captured >= uint64(c.cfg.MaxPackets) {
			break
		}
	}

	c.core.StopCapture()
	if c.gen != nil {
		c.gen.Stop()
	}

	time.Sleep(drainDelay)

	snap := c.core.Snapshot()
	rlog.WithFields(logrus.Fields{
		"processed": snap.PktsProcessed,
		"pps":       snap.RatePPS(),
	}).Info("run complete")
	return snap, nil
}
