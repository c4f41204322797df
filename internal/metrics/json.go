package metrics

import (
	"encoding/json"
	"fmt"
	"os"
)

// Metadata carries the baseline compatibility fields from spec §4.I / §6.
type Metadata struct {
	Interface      string `json:"interface"`
	Filter         string `json:"filter"`
	Threads        int    `json:"threads"`
	BPFBufferSize  int    `json:"bpf_buffer_size"`
	DurationSec    int    `json:"duration_sec"`
	WarmupSec      int    `json:"warmup_sec"`
	TrafficMode    string `json:"traffic_mode"`
	TrafficTarget  string `json:"traffic_target"`
	TrafficRate    int    `json:"traffic_rate"`
	OS             string `json:"os"`
	GitSHA         string `json:"git_sha"`
}

// Document is the on-disk JSON schema from spec §6. Every nested struct
// mirrors the schema's field grouping so Load/Save round-trip exactly.
type Document struct {
	ElapsedSec        float64 `json:"elapsed_sec"`
	CaptureElapsedSec float64 `json:"capture_elapsed_sec"`

	Packets struct {
		Captured  uint64  `json:"captured"`
		Processed uint64  `json:"processed"`
		RatePPS   float64 `json:"rate_pps"`
	} `json:"packets"`

	Bytes struct {
		Captured  uint64  `json:"captured"`
		Processed uint64  `json:"processed"`
		RateMbps  float64 `json:"rate_mbps"`
	} `json:"bytes"`

	Errors struct {
		ParseErrors      uint64 `json:"parse_errors"`
		ChecksumFailures uint64 `json:"checksum_failures"`
		QueueDrops       uint64 `json:"queue_drops"`
		CaptureDrops     uint64 `json:"capture_drops"`
	} `json:"errors"`

	EtherType struct {
		IPv4  uint64 `json:"ipv4"`
		IPv6  uint64 `json:"ipv6"`
		ARP   uint64 `json:"arp"`
		Other uint64 `json:"other"`
	} `json:"ethertype"`

	Protocols struct {
		TCP   uint64 `json:"tcp"`
		UDP   uint64 `json:"udp"`
		ICMP  uint64 `json:"icmp"`
		Other uint64 `json:"other"`
	} `json:"protocols"`

	Queue struct {
		DepthMax uint32 `json:"depth_max"`
	} `json:"queue"`

	LatencyNS struct {
		Count uint64 `json:"count"`
		Sum   uint64 `json:"sum"`
		Avg   uint64 `json:"avg"`
		Max   uint64 `json:"max"`
		P50   uint64 `json:"p50"`
		P95   uint64 `json:"p95"`
		P99   uint64 `json:"p99"`
	} `json:"latency_ns"`

	LatencyHistogram [HistogramBuckets]uint64 `json:"latency_histogram"`

	Metadata Metadata `json:"metadata"`
}

// ToDocument converts a live snapshot into the on-disk schema, computing
// mbps to 4 decimal places and pps to 2, per spec §6.
func (s Snapshot) ToDocument(meta Metadata) Document {
	var d Document
	d.ElapsedSec = s.ElapsedSec
	d.CaptureElapsedSec = s.CaptureElapsedSec

	d.Packets.Captured = s.PktsCaptured
	d.Packets.Processed = s.PktsProcessed
	d.Packets.RatePPS = round2(s.RatePPS())

	d.Bytes.Captured = s.BytesCaptured
	d.Bytes.Processed = s.BytesProcessed
	d.Bytes.RateMbps = round4(s.RateMbps())

	d.Errors.ParseErrors = s.ParseErrors
	d.Errors.ChecksumFailures = s.ChecksumFailures
	d.Errors.QueueDrops = s.QueueDrops
	d.Errors.CaptureDrops = s.CaptureDrops

	d.EtherType.IPv4 = s.EtherIPv4
	d.EtherType.IPv6 = s.EtherIPv6
	d.EtherType.ARP = s.EtherARP
	d.EtherType.Other = s.EtherOther

	d.Protocols.TCP = s.ProtoTCP
	d.Protocols.UDP = s.ProtoUDP
	d.Protocols.ICMP = s.ProtoICMP
	d.Protocols.Other = s.ProtoOther

	d.Queue.DepthMax = s.QueueDepthMax

	d.LatencyNS.Count = s.LatencyCount
	d.LatencyNS.Sum = s.LatencySumNS
	d.LatencyNS.Avg = s.AvgLatencyNS()
	d.LatencyNS.Max = s.LatencyMaxNS
	d.LatencyNS.P50 = s.P50()
	d.LatencyNS.P95 = s.P95()
	d.LatencyNS.P99 = s.P99()

	d.LatencyHistogram = s.Histogram
	d.Metadata = meta

	return d
}

func round2(v float64) float64 { return roundTo(v, 100) }
func round4(v float64) float64 { return roundTo(v, 10000) }

func roundTo(v float64, scale float64) float64 {
	return float64(int64(v*scale+0.5)) / scale
}

// Save writes the document to filePath as indented JSON.
func Save(filePath string, doc Document) error {
	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("metrics: create %s: %w", filePath, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("metrics: encode %s: %w", filePath, err)
	}
	return nil
}

// Load reads a document from filePath, tolerating missing keys (they decode
// to their zero value) and recomputing rate_pps/rate_mbps from
// processed/elapsed when the stored rate is zero but elapsed time is known.
// capture_elapsed_sec is the preferred denominator (spec §4.G); a document
// that carries elapsed_sec but no capture_elapsed_sec -- e.g. a third-party
// baseline -- falls back to elapsed_sec rather than leaving the rate at 0.
func Load(filePath string) (Document, error) {
	var doc Document
	data, err := os.ReadFile(filePath)
	if err != nil {
		return doc, fmt.Errorf("metrics: read %s: %w", filePath, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("metrics: parse %s: %w", filePath, err)
	}

	elapsed := doc.CaptureElapsedSec
	if elapsed <= 0 {
		elapsed = doc.ElapsedSec
	}
	if doc.Packets.RatePPS == 0 && elapsed > 0 {
		doc.Packets.RatePPS = round2(float64(doc.Packets.Processed) / elapsed)
	}
	if doc.Bytes.RateMbps == 0 && elapsed > 0 {
		doc.Bytes.RateMbps = round4(float64(doc.Bytes.Processed) / elapsed / (1024 * 1024))
	}

	return doc, nil
}

// Valid reports whether the loaded document is usable as a baseline: spec
// §3 defines a baseline as valid if pps>0 or processed>0.
func (d Document) Valid() bool {
	return d.Packets.RatePPS > 0 || d.Packets.Processed > 0
}
