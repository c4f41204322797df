// Package frame defines the wire-level types that flow from the capture
// engine through the bounded queue to a worker: Captured owns its raw
// bytes, Decoded holds the fields the decoder classified from them without
// copying any bytes.
package frame

// MaxFrameLen is the largest raw frame the pipeline ever handles: 65,535
// bytes, the largest value a 16-bit length field can hold.
const MaxFrameLen = 65535

// Captured is one frame read off the wire. ArrivalNS is stamped once, at
// emission from the capture engine (spec §4.E, §9 open question resolved),
// and propagated unchanged through the queue so a worker can compute
// end-to-end latency as now() - ArrivalNS.
type Captured struct {
	ArrivalNS uint64
	Data      []byte // length == CapLen; may be shorter than WireLen
	WireLen   int    // length on the wire before any truncation
}

// CapLen is the number of bytes actually captured, which may be less than
// WireLen if the frame was truncated to the caller's buffer size.
func (c Captured) CapLen() int { return len(c.Data) }

// EtherType identifies the L2/L3 ethertype carried by a decoded frame.
type EtherType uint16

const (
	EtherIPv4 EtherType = 0x0800
	EtherIPv6 EtherType = 0x86DD
	EtherARP  EtherType = 0x0806
)

// Decoded is derived from a Captured frame's bytes without copying them; it
// holds only classified scalar fields and owns no copy of any sub-header. Validity flags record which layers parsed cleanly so a
// worker can decide what to do with a partially-decoded frame without the
// decoder having to allocate an error for every layer.
type Decoded struct {
	EtherType EtherType
	L4Proto   uint8 // IPv4 protocol byte, or IPv6 next-header byte

	EthernetValid bool
	L3Valid       bool
	L4Valid       bool

	ChecksumOK bool // advisory only; false never aborts processing
}
