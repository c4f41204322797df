// Package config implements the YAML configuration loader from spec §4.J.
// It is grounded directly on the teacher's internal/config.LoadConfig: a
// single yaml.Unmarshal into a nested struct, generalized here from the
// teacher's aggregator-task definitions to the harness's capture/run/sink
// settings, plus structured validation the teacher's loader never needed.
package config

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// CaptureConfig configures the capture engine (spec §4.E/§6).
type CaptureConfig struct {
	Interface      string `yaml:"interface"`
	Filter         string `yaml:"filter"` // "" or "icmp"
	Promiscuous    bool   `yaml:"promiscuous"`
	BPFBufferSize  int    `yaml:"bpf_buffer_size"`
}

// RunConfig configures the measurement controller (spec §4.G).
type RunConfig struct {
	Runs        int `yaml:"runs"`
	Threads     int `yaml:"threads"`
	QueueDepth  int `yaml:"queue_depth"`
	WarmupSec   int `yaml:"warmup_sec"`
	DurationSec int `yaml:"duration_sec"`
	MaxPackets  int `yaml:"max_packets"`
	MinPackets  int `yaml:"min_packets"`
}

// TrafficConfig configures the external traffic generator (spec §4.K).
type TrafficConfig struct {
	Mode   string `yaml:"mode"` // "" disables the generator, or "ping"
	Target string `yaml:"target"`
	Rate   int    `yaml:"rate"` // packets/sec, 0 lets the tool pick its own pace
}

// RegressionConfig configures the regression judge (spec §4.I).
type RegressionConfig struct {
	BaselinePath string  `yaml:"baseline_path"`
	Threshold    float64 `yaml:"threshold"`
	FailOnRegression bool `yaml:"fail_on_regression"`
}

// PrometheusConfig configures the optional Prometheus mirror sink.
type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ClickHouseConfig configures the optional ClickHouse history sink.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NATSConfig configures the optional NATS live-snapshot fan-out.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// SMTPConfig configures the optional regression-notification email sink,
// grounded on the teacher's config.SMTPConfig consumed by
// notification.NewEmailNotifier.
type SMTPConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// SinksConfig groups the optional domain-stack sinks (spec §4.L).
type SinksConfig struct {
	Prometheus PrometheusConfig `yaml:"prometheus"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	NATS       NATSConfig       `yaml:"nats"`
	SMTP       SMTPConfig       `yaml:"smtp"`
}

// Config is the top-level configuration struct for a netbench invocation.
type Config struct {
	Capture    CaptureConfig     `yaml:"capture"`
	Run        RunConfig         `yaml:"run"`
	Traffic    TrafficConfig     `yaml:"traffic"`
	Regression RegressionConfig  `yaml:"regression"`
	Sinks      SinksConfig       `yaml:"sinks"`
	OutputPath string            `yaml:"output_path"`
}

// Load reads the configuration from a YAML file, applies defaults, and
// validates it. Validation errors are aggregated with multierr so a caller
// sees every problem in one report instead of stopping at the first.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filePath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filePath, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", filePath, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Run.Runs == 0 {
		c.Run.Runs = 5
	}
	if c.Run.Threads <= 0 {
		c.Run.Threads = 4
	}
	if c.Run.QueueDepth <= 0 {
		c.Run.QueueDepth = 100
	}
	if c.Capture.BPFBufferSize <= 0 {
		c.Capture.BPFBufferSize = 128 * 1024
	}
	if c.Regression.Threshold <= 0 {
		c.Regression.Threshold = 0.10
	}
	if c.OutputPath == "" {
		c.OutputPath = "netbench-result.json"
	}
}

// validate aggregates every structural problem via multierr rather than
// failing fast on the first one.
func (c *Config) validate() error {
	var errs error
	if c.Capture.Interface == "" {
		errs = multierr.Append(errs, fmt.Errorf("capture.interface is required"))
	}
	if c.Capture.Filter != "" && c.Capture.Filter != "icmp" {
		errs = multierr.Append(errs, fmt.Errorf("capture.filter %q is not supported (only \"icmp\" or empty)", c.Capture.Filter))
	}
	if c.Run.Runs < 1 {
		errs = multierr.Append(errs, fmt.Errorf("run.runs must be >= 1"))
	}
	if c.Run.WarmupSec < 0 {
		errs = multierr.Append(errs, fmt.Errorf("run.warmup_sec must be >= 0"))
	}
	if c.Run.DurationSec < 0 {
		errs = multierr.Append(errs, fmt.Errorf("run.duration_sec must be >= 0"))
	}
	if c.Traffic.Mode != "" && c.Traffic.Mode != "ping" {
		errs = multierr.Append(errs, fmt.Errorf("traffic.mode %q is not supported (only \"ping\" or empty)", c.Traffic.Mode))
	}
	if c.Regression.Threshold < 0 || c.Regression.Threshold >= 1 {
		errs = multierr.Append(errs, fmt.Errorf("regression.threshold must be in [0, 1)"))
	}
	return errs
}
