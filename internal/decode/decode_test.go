package decode

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"netbench/internal/frame"
)

func ethHeader(ethertype uint16) []byte {
	b := make([]byte, ethernetHeaderLen)
	binary.BigEndian.PutUint16(b[12:14], ethertype)
	return b
}

func TestDecodeTooShortIsParseError(t *testing.T) {
	r := Decode(make([]byte, 10))
	assert.True(t, r.ParseError)
}

func TestDecodeIPv4TCP(t *testing.T) {
	buf := ethHeader(0x0800)
	ip := make([]byte, ipv4MinHeaderLen)
	ip[0] = 0x45 // version 4, IHL 5 (20 bytes)
	ip[9] = 6    // TCP
	tcp := make([]byte, tcpMinHeaderLen)
	tcp[12] = 0x50 // data offset 5 (20 bytes)
	buf = append(buf, ip...)
	buf = append(buf, tcp...)

	r := Decode(buf)
	assert.False(t, r.ParseError)
	assert.Equal(t, frame.EtherIPv4, r.Decoded.EtherType)
	assert.True(t, r.Decoded.L3Valid)
	assert.True(t, r.Decoded.L4Valid)
	assert.EqualValues(t, 6, r.Decoded.L4Proto)
}

func TestDecodeIPv4TruncatedIsParseError(t *testing.T) {
	buf := ethHeader(0x0800)
	buf = append(buf, make([]byte, 5)...) // too short for IPv4 header

	r := Decode(buf)
	// A frame whose ethertype claims an IPv4 header it doesn't have is
	// malformed outright (spec §9): it belongs to no ethertype/protocol
	// bucket, so Decode reports a whole-frame parse error.
	assert.True(t, r.ParseError)
	assert.False(t, r.Decoded.L3Valid)
}

func TestDecodeIPv4BadIHLRejected(t *testing.T) {
	buf := ethHeader(0x0800)
	ip := make([]byte, ipv4MinHeaderLen)
	ip[0] = 0x43 // IHL=3 -> 12 bytes, below the 20-byte floor
	buf = append(buf, ip...)

	r := Decode(buf)
	assert.True(t, r.ParseError)
	assert.False(t, r.Decoded.L3Valid)
}

func TestDecodeIPv6ICMPv6(t *testing.T) {
	buf := ethHeader(0x86DD)
	ip6 := make([]byte, ipv6HeaderLen)
	ip6[6] = 58 // ICMPv6 next header
	icmp6 := make([]byte, 8)
	buf = append(buf, ip6...)
	buf = append(buf, icmp6...)

	r := Decode(buf)
	assert.False(t, r.ParseError)
	assert.True(t, r.Decoded.L3Valid)
	assert.True(t, r.Decoded.L4Valid)
	assert.EqualValues(t, 58, r.Decoded.L4Proto)
}

func TestDecodeUnknownEthertypeNoParseError(t *testing.T) {
	// An ethertype Decode doesn't parse further (e.g. ARP, LLDP) is not
	// malformed: it still belongs to its own ethertype bucket.
	buf := ethHeader(0x88CC) // LLDP, not handled
	r := Decode(buf)
	assert.False(t, r.ParseError)
	assert.True(t, r.Decoded.EthernetValid)
	assert.False(t, r.Decoded.L3Valid)
}

func TestDecodeARPIsEthernetValidOnly(t *testing.T) {
	buf := ethHeader(0x0806)
	r := Decode(buf)
	assert.False(t, r.ParseError)
	assert.True(t, r.Decoded.EthernetValid)
	assert.Equal(t, frame.EtherARP, r.Decoded.EtherType)
	assert.False(t, r.Decoded.L3Valid)
}

func TestDecodeUDPShortHeaderRejected(t *testing.T) {
	buf := ethHeader(0x0800)
	ip := make([]byte, ipv4MinHeaderLen)
	ip[0] = 0x45
	ip[9] = 17 // UDP
	buf = append(buf, ip...)
	buf = append(buf, make([]byte, 4)...) // short of the 8-byte UDP header

	r := Decode(buf)
	assert.True(t, r.ParseError)
	assert.False(t, r.Decoded.L4Valid)
}

func TestDecodeUnknownL4ProtoIsNotParseError(t *testing.T) {
	buf := ethHeader(0x0800)
	ip := make([]byte, ipv4MinHeaderLen)
	ip[0] = 0x45
	ip[9] = 47 // GRE, not handled at L4
	buf = append(buf, ip...)

	r := Decode(buf)
	assert.False(t, r.ParseError)
	assert.True(t, r.Decoded.L3Valid)
	assert.False(t, r.Decoded.L4Valid)
}

// referenceWordSum and referenceUDPChecksum are an independent
// re-implementation of the pseudo-header checksum algorithm (RFC 768),
// used to build fixtures with genuinely valid checksums -- exercising the
// decoder's verification against a correctly-computed value rather than
// against itself.
func referenceWordSum(b []byte) uint32 {
	var sum uint32
	n := len(b)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if n%2 == 1 {
		sum += uint32(b[n-1]) << 8
	}
	return sum
}

func referenceUDPChecksum(src, dst [4]byte, udpSegment []byte) uint16 {
	pseudo := make([]byte, 12)
	copy(pseudo[0:4], src[:])
	copy(pseudo[4:8], dst[:])
	pseudo[9] = 17
	binary.BigEndian.PutUint16(pseudo[10:12], uint16(len(udpSegment)))

	sum := referenceWordSum(pseudo) + referenceWordSum(udpSegment)
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}

func buildIPv4UDPFrame(src, dst [4]byte, payload []byte, corrupt bool) []byte {
	buf := ethHeader(0x0800)

	udp := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint16(udp[0:2], 5000)
	binary.BigEndian.PutUint16(udp[2:4], 53)
	binary.BigEndian.PutUint16(udp[4:6], uint16(len(udp)))
	copy(udp[8:], payload)
	checksum := referenceUDPChecksum(src, dst, udp)
	binary.BigEndian.PutUint16(udp[6:8], checksum)

	if corrupt {
		udp[len(udp)-1] ^= 0xFF
	}

	ip := make([]byte, ipv4MinHeaderLen)
	ip[0] = 0x45
	ip[9] = 17 // UDP
	binary.BigEndian.PutUint16(ip[2:4], uint16(ipv4MinHeaderLen+len(udp)))
	copy(ip[12:16], src[:])
	copy(ip[16:20], dst[:])

	buf = append(buf, ip...)
	buf = append(buf, udp...)
	return buf
}

func TestDecodeValidUDPChecksumIsOK(t *testing.T) {
	src := [4]byte{10, 0, 0, 1}
	dst := [4]byte{10, 0, 0, 2}
	buf := buildIPv4UDPFrame(src, dst, []byte("hello"), false)

	r := Decode(buf)
	assert.False(t, r.ParseError)
	assert.True(t, r.Decoded.L4Valid)
	assert.True(t, r.Decoded.ChecksumOK)
}

func TestDecodeCorruptedUDPChecksumIsFlagged(t *testing.T) {
	src := [4]byte{10, 0, 0, 1}
	dst := [4]byte{10, 0, 0, 2}
	buf := buildIPv4UDPFrame(src, dst, []byte("hello"), true)

	r := Decode(buf)
	assert.False(t, r.ParseError)
	assert.True(t, r.Decoded.L4Valid)
	assert.False(t, r.Decoded.ChecksumOK)
}
