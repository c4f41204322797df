// Package bpfprog compiles the in-kernel classifier from spec §4.D: accept a
// frame iff it is ICMP-over-IPv4 or ICMPv6-over-IPv6, reject everything else.
// It is built on golang.org/x/net/bpf, the ecosystem's classic-BPF assembler,
// rather than hand-encoding raw instruction words, matching the way the rest
// of the example pack reaches for golang.org/x for low-level networking
// primitives instead of re-deriving them (e.g. dep2p's transport stack).
package bpfprog

import (
	"fmt"

	"golang.org/x/net/bpf"
)

// AcceptLen is the capture length returned by the compiled program when a
// frame is accepted; large enough to ask the kernel for the full frame.
const AcceptLen = 65535

// Program is a compiled classic-BPF accept/reject classifier together with
// the raw instruction words a socket or BPF device installs.
type Program struct {
	Raw []bpf.RawInstruction
}

// CompileICMPFilter builds the fixed <=10 instruction program from spec
// §4.D:
//
//	(ethertype == IPv4 && ip.proto == ICMP) || (ethertype == IPv6 && ip6.next == ICMPv6)
//
// On Linux offsets are relative to the start of the Ethernet frame, exactly
// as the AF_PACKET classic-BPF attach point expects; on BSD/macOS the same
// instruction stream is installed on a BPF device via BIOCSETF, which uses
// the same link-layer-relative offsets.
func CompileICMPFilter() (*Program, error) {
	// Instruction layout (indices match the SkipTrue/SkipFalse arithmetic
	// below):
	//   0: ldh  [12]            ; ethertype
	//   1: jeq  #0x0800 -> 3,2  ; ipv4? else check ipv6 next
	//   2: jeq  #0x86dd -> 5,7  ; ipv6? else reject
	//   3: ldb  [23]            ; ipv4.protocol
	//   4: jeq  #1      -> 8,7  ; icmp? else reject
	//   5: ldb  [20]            ; ipv6.next_header
	//   6: jeq  #58     -> 8,7  ; icmpv6? else reject
	//   7: ret  #0               ; reject
	//   8: ret  #AcceptLen       ; accept
	insns := []bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0800, SkipTrue: 1, SkipFalse: 0},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x86DD, SkipTrue: 2, SkipFalse: 4},
		bpf.LoadAbsolute{Off: 23, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 1, SkipTrue: 3, SkipFalse: 2},
		bpf.LoadAbsolute{Off: 20, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 58, SkipTrue: 1, SkipFalse: 0},
		bpf.RetConstant{Val: 0},
		bpf.RetConstant{Val: AcceptLen},
	}

	raw, err := bpf.Assemble(insns)
	if err != nil {
		return nil, fmt.Errorf("bpfprog: assemble: %w", err)
	}
	if len(raw) > 10 {
		return nil, fmt.Errorf("bpfprog: program exceeds 10-instruction budget (%d)", len(raw))
	}
	return &Program{Raw: raw}, nil
}

// PassAll returns nil, signaling "no filter configured, all frames pass"
// per spec §4.D.
func PassAll() *Program { return nil }
