package sink

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"netbench/internal/metrics"
)

// NATSConfig configures the live-snapshot fan-out, mirroring the teacher's
// config.ProbeConfig shape (NATSURL, Subject).
type NATSConfig struct {
	URL     string
	Subject string
}

// NATSPublisher publishes a JSON-encoded snapshot once per second between
// StartTicking and Stop (warmup and drain periods included), plus any
// document passed to Publish, for a fleet dashboard to tail many concurrent
// CI runners. Grounded directly on the teacher's internal/probe.Publisher,
// with a JSON payload in place of the teacher's protobuf PacketInfo: there
// is no generated message type for a run snapshot, and the on-disk schema
// (spec §6) already defines the wire shape this sink reuses verbatim.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	log     *logrus.Entry

	stop chan struct{}
	done chan struct{}
}

// NewNATSPublisher connects to the NATS server at cfg.URL.
func NewNATSPublisher(cfg NATSConfig, log *logrus.Entry) (*NATSPublisher, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("sink: nats connect: %w", err)
	}
	log.WithField("url", cfg.URL).Info("connected to nats")
	return &NATSPublisher{nc: nc, subject: cfg.Subject, log: log}, nil
}

// Publish sends a single JSON-encoded document (spec §6 schema) on the
// configured subject.
func (p *NATSPublisher) Publish(doc metrics.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("sink: marshal snapshot: %w", err)
	}
	return p.nc.Publish(p.subject, data)
}

// StartTicking publishes snap() once per second until Stop is called.
func (p *NATSPublisher) StartTicking(snap func() metrics.Document) {
	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := p.Publish(snap()); err != nil {
					p.log.WithError(err).Warn("nats publish failed")
				}
			case <-p.stop:
				return
			}
		}
	}()
}

// Stop halts the ticking goroutine started by StartTicking, if any.
func (p *NATSPublisher) Stop() {
	if p.stop != nil {
		close(p.stop)
		<-p.done
	}
}

// Close drains and closes the NATS connection, per the teacher's
// Publisher.Close.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.log.Info("nats connection drained and closed")
	}
}
