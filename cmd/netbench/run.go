package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"netbench/internal/aggregate"
	"netbench/internal/bpfprog"
	"netbench/internal/capture"
	"netbench/internal/config"
	"netbench/internal/controller"
	"netbench/internal/gitinfo"
	"netbench/internal/metrics"
	"netbench/internal/notify"
	"netbench/internal/regression"
	"netbench/internal/sink"
	"netbench/internal/trafficgen"
)

func newRunCmd() *cobra.Command {
	var regressionMode bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run N measurement cycles and optionally judge them against a baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeasurement(regressionMode)
		},
	}
	cmd.Flags().BoolVar(&regressionMode, "check", false, "compare the aggregate against the configured baseline and exit non-zero on regression")
	return cmd
}

func runMeasurement(regressionMode bool) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	meta := metrics.Metadata{
		Interface:     cfg.Capture.Interface,
		Filter:        cfg.Capture.Filter,
		Threads:       cfg.Run.Threads,
		BPFBufferSize: cfg.Capture.BPFBufferSize,
		DurationSec:   cfg.Run.DurationSec,
		WarmupSec:     cfg.Run.WarmupSec,
		TrafficMode:   cfg.Traffic.Mode,
		TrafficTarget: cfg.Traffic.Target,
		TrafficRate:   cfg.Traffic.Rate,
		OS:            runtime.GOOS,
		GitSHA:        gitinfo.ShortSHA(),
	}

	filter, err := buildFilter(cfg.Capture.Filter)
	if err != nil {
		return err
	}

	core := metrics.New()
	gen := buildTrafficGenerator(cfg)

	runCfg := controller.RunConfig{
		Interface:   cfg.Capture.Interface,
		Promiscuous: cfg.Capture.Promiscuous,
		BufferSize:  cfg.Capture.BPFBufferSize,
		Threads:     cfg.Run.Threads,
		QueueDepth:  cfg.Run.QueueDepth,
		WarmupSec:   cfg.Run.WarmupSec,
		DurationSec: cfg.Run.DurationSec,
		MaxPackets:  cfg.Run.MaxPackets,
	}

	ctrl := controller.New(runCfg, core, gen, log.WithField("component", "controller"))

	if err := ctrl.Open(capture.Config{
		Interface:   cfg.Capture.Interface,
		Promiscuous: cfg.Capture.Promiscuous,
		BufferSize:  cfg.Capture.BPFBufferSize,
		Filter:      filter,
	}); err != nil {
		return err
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			log.WithError(err).Warn("error closing controller")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("shutdown signal received, stopping after the current run")
		ctrl.Stop()
	}()
	defer signal.Stop(sigCh)

	promMirror, chSink, natsPub, err := openSinks(cfg, core)
	if err != nil {
		return err
	}
	defer closeSinks(promMirror, chSink, natsPub)

	snapshots, err := ctrl.RunAll(cfg.Run.Runs)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	writeRunHistory(chSink, runID, snapshots, cfg)

	runMetrics := make([]aggregate.RunMetrics, len(snapshots))
	runInputs := make([]regression.RunInput, len(snapshots))
	for i, s := range snapshots {
		runMetrics[i] = s
		runInputs[i] = regression.RunInput{
			PPS:      s.RatePPS(),
			Mbps:     s.RateMbps(),
			P95NS:    s.P95(),
			DropRate: s.DropRate(),
		}
	}
	agg := aggregate.Aggregate(runMetrics, uint64(cfg.Run.MinPackets))

	doc := buildAggregateDocument(snapshots, agg, meta)
	if err := metrics.Save(cfg.OutputPath, doc); err != nil {
		return err
	}
	log.WithField("path", cfg.OutputPath).Info("wrote result document")

	if natsPub != nil {
		if err := natsPub.Publish(doc); err != nil {
			log.WithError(err).Warn("nats publish of final document failed")
		}
	}

	if agg.Insufficient {
		return &exitError{code: 3, err: fmt.Errorf("insufficient sample: %d processed < min_packets %d", agg.TotalProcessed, cfg.Run.MinPackets)}
	}

	if !regressionMode {
		return nil
	}
	return judgeAndNotify(cfg, runID, meta, agg, runInputs)
}

func judgeAndNotify(cfg *config.Config, runID string, meta metrics.Metadata, agg aggregate.Result, runs []regression.RunInput) error {
	baseline, err := metrics.Load(cfg.Regression.BaselinePath)
	if err != nil {
		return fmt.Errorf("regression: load baseline: %w", err)
	}
	if !baseline.Valid() {
		return fmt.Errorf("regression: baseline at %s has no valid fields", cfg.Regression.BaselinePath)
	}

	report := regression.Judge(baseline, meta, agg, runs, cfg.Regression.Threshold)

	notifier := notify.NewEmailNotifier(cfg.Sinks.SMTP)
	if report.Outcome != regression.Pass {
		if err := notifier.NotifyRegression(runID, report); err != nil {
			log.WithError(err).Warn("failed to send regression notification")
		}
	}

	switch report.Outcome {
	case regression.Pass:
		log.Info("no regression detected")
		return nil
	case regression.MetadataMismatch:
		return &exitError{code: 4, err: fmt.Errorf("baseline metadata mismatch on a must-match field")}
	case regression.Regression:
		if !cfg.Regression.FailOnRegression {
			log.Warn("regression detected but fail_on_regression is false, exiting 0")
			return nil
		}
		return &exitError{code: 2, err: fmt.Errorf("persistent regression detected")}
	default:
		return fmt.Errorf("regression: unknown outcome %v", report.Outcome)
	}
}

func buildFilter(filter string) (*bpfprog.Program, error) {
	switch filter {
	case "":
		return bpfprog.PassAll(), nil
	case "icmp":
		return bpfprog.CompileICMPFilter()
	default:
		return nil, fmt.Errorf("unsupported filter %q", filter)
	}
}

func buildTrafficGenerator(cfg *config.Config) controller.TrafficGenerator {
	gen := trafficgen.New(cfg.Traffic.Mode, cfg.Traffic.Target, cfg.Traffic.Rate)
	if gen == nil {
		return nil
	}
	return gen
}

func openSinks(cfg *config.Config, core *metrics.Core) (*sink.PrometheusMirror, *sink.ClickHouseSink, *sink.NATSPublisher, error) {
	var promMirror *sink.PrometheusMirror
	if cfg.Sinks.Prometheus.Enabled {
		promMirror = sink.NewPrometheusMirror(core)
		go func() {
			if err := promMirror.Serve(cfg.Sinks.Prometheus.Addr); err != nil {
				log.WithError(err).Warn("prometheus mirror stopped")
			}
		}()
	}

	var chSink *sink.ClickHouseSink
	if cfg.Sinks.ClickHouse.Enabled {
		s, err := sink.NewClickHouseSink(sink.ClickHouseConfig{
			Addr:     cfg.Sinks.ClickHouse.Addr,
			Database: cfg.Sinks.ClickHouse.Database,
			Username: cfg.Sinks.ClickHouse.Username,
			Password: cfg.Sinks.ClickHouse.Password,
		}, log.WithField("component", "clickhouse"))
		if err != nil {
			log.WithError(err).Warn("clickhouse sink disabled: connect failed")
		} else {
			chSink = s
		}
	}

	var natsPub *sink.NATSPublisher
	if cfg.Sinks.NATS.Enabled {
		p, err := sink.NewNATSPublisher(sink.NATSConfig{
			URL:     cfg.Sinks.NATS.URL,
			Subject: cfg.Sinks.NATS.Subject,
		}, log.WithField("component", "nats"))
		if err != nil {
			log.WithError(err).Warn("nats sink disabled: connect failed")
		} else {
			natsPub = p
			natsPub.StartTicking(func() metrics.Document { return core.Snapshot().ToDocument(metrics.Metadata{}) })
		}
	}

	return promMirror, chSink, natsPub, nil
}

func closeSinks(promMirror *sink.PrometheusMirror, chSink *sink.ClickHouseSink, natsPub *sink.NATSPublisher) {
	if promMirror != nil {
		_ = promMirror.Close()
	}
	if chSink != nil {
		_ = chSink.Close()
	}
	if natsPub != nil {
		natsPub.Stop()
		natsPub.Close()
	}
}

func writeRunHistory(chSink *sink.ClickHouseSink, runID string, snapshots []metrics.Snapshot, cfg *config.Config) {
	if chSink == nil {
		return
	}
	for i, s := range snapshots {
		if err := chSink.WriteRun(runID, i+1, s, cfg.Capture.Interface, cfg.Capture.Filter, gitinfo.ShortSHA()); err != nil {
			log.WithError(err).Warn("clickhouse write failed")
		}
	}
}

// buildAggregateDocument merges every run's snapshot into one Document:
// counters sum across runs (each run resets the metrics core, so these are
// disjoint contributions), while throughput/p95 use the medians spec §4.H
// computes independently, not a sum-then-divide across runs.
func buildAggregateDocument(snapshots []metrics.Snapshot, agg aggregate.Result, meta metrics.Metadata) metrics.Document {
	var combined metrics.Snapshot
	for _, s := range snapshots {
		combined.PktsCaptured += s.PktsCaptured
		combined.PktsProcessed += s.PktsProcessed
		combined.BytesCaptured += s.BytesCaptured
		combined.BytesProcessed += s.BytesProcessed
		combined.ParseErrors += s.ParseErrors
		combined.ChecksumFailures += s.ChecksumFailures
		combined.QueueDrops += s.QueueDrops
		combined.CaptureDrops += s.CaptureDrops
		combined.EtherIPv4 += s.EtherIPv4
		combined.EtherIPv6 += s.EtherIPv6
		combined.EtherARP += s.EtherARP
		combined.EtherOther += s.EtherOther
		combined.ProtoTCP += s.ProtoTCP
		combined.ProtoUDP += s.ProtoUDP
		combined.ProtoICMP += s.ProtoICMP
		combined.ProtoOther += s.ProtoOther
		combined.LatencyCount += s.LatencyCount
		combined.LatencySumNS += s.LatencySumNS
		combined.ElapsedSec += s.ElapsedSec
		combined.CaptureElapsedSec += s.CaptureElapsedSec
		if s.QueueDepthMax > combined.QueueDepthMax {
			combined.QueueDepthMax = s.QueueDepthMax
		}
		if s.LatencyMaxNS > combined.LatencyMaxNS {
			combined.LatencyMaxNS = s.LatencyMaxNS
		}
		for i := range s.Histogram {
			combined.Histogram[i] += s.Histogram[i]
		}
	}

	doc := combined.ToDocument(meta)
	doc.Packets.RatePPS = round(agg.MedianPPS, 100)
	doc.Bytes.RateMbps = round(agg.MedianMbps, 10000)
	doc.LatencyNS.P95 = agg.MedianP95NS
	return doc
}

func round(v, scale float64) float64 {
	return float64(int64(v*scale+0.5)) / scale
}
