// Package sink implements the optional domain-stack sinks from spec §4.L:
// a ClickHouse run-history table, a NATS live-snapshot publisher, and a
// Prometheus mirror. Every sink is best-effort: a connection or write
// failure is logged and never aborts a run (spec §5, §7).
package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"netbench/internal/metrics"
)

const createRunsTable = `
CREATE TABLE IF NOT EXISTS netbench_runs (
	RunID      String,
	RunIndex   UInt32,
	Timestamp  DateTime,
	PPS        Float64,
	Mbps       Float64,
	P50NS      UInt64,
	P95NS      UInt64,
	P99NS      UInt64,
	Processed  UInt64,
	DropRate   Float64,
	Interface  String,
	Filter     String,
	GitSHA     String
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (RunID, RunIndex);
`

// ClickHouseConfig configures the run-history sink, mirroring the teacher's
// config.ClickHouseConfig shape.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseSink appends one row per run into netbench_runs, for trend
// dashboards across many CI runs; no row for the multi-run aggregate is
// written. The file-based baseline remains the source of truth for pass/fail;
// this sink is purely additive history.
type ClickHouseSink struct {
	conn driver.Conn
	log  *logrus.Entry
}

// NewClickHouseSink connects to ClickHouse and ensures netbench_runs
// exists, grounded directly on the teacher's writer_clickhouse.go connect
// + CREATE TABLE IF NOT EXISTS pattern.
func NewClickHouseSink(cfg ClickHouseConfig, log *logrus.Entry) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return nil, fmt.Errorf("sink: clickhouse open: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("sink: clickhouse ping: %w", err)
	}
	if err := conn.Exec(context.Background(), createRunsTable); err != nil {
		return nil, fmt.Errorf("sink: clickhouse create table: %w", err)
	}

	log.Info("connected to clickhouse and ensured netbench_runs exists")
	return &ClickHouseSink{conn: conn, log: log}, nil
}

// WriteRun appends one run's snapshot as a row. runIndex is stored in the
// UInt32 RunIndex column; the run command passes 1-based run numbers.
func (s *ClickHouseSink) WriteRun(runID string, runIndex int, snap metrics.Snapshot, iface, filter, gitSHA string) error {
	batch, err := s.conn.PrepareBatch(context.Background(), "INSERT INTO netbench_runs")
	if err != nil {
		return fmt.Errorf("sink: prepare batch: %w", err)
	}

	err = batch.Append(
		runID,
		uint32(runIndex),
		time.Now().UTC(),
		snap.RatePPS(),
		snap.RateMbps(),
		snap.P50(),
		snap.P95(),
		snap.P99(),
		snap.PktsProcessed,
		snap.DropRate(),
		iface,
		filter,
		gitSHA,
	)
	if err != nil {
		return fmt.Errorf("sink: append row: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("sink: send batch: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}
