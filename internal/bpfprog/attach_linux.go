//go:build linux

package bpfprog

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Attach installs the compiled classifier on an AF_PACKET socket via
// SO_ATTACH_FILTER, the classic-BPF socket-level install path spec §4.D
// calls for on Linux.
func Attach(fd int, prog *Program) error {
	if prog == nil {
		return nil
	}

	filters := make([]unix.SockFilter, len(prog.Raw))
	for i, ins := range prog.Raw {
		filters[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	fprog := unix.SockFprog{
		Len:    uint16(len(filters)),
		Filter: &filters[0],
	}

	if err := unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &fprog); err != nil {
		return fmt.Errorf("bpfprog: SO_ATTACH_FILTER: %w", err)
	}
	return nil
}

// Detach removes any classifier currently attached to fd.
func Detach(fd int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_DETACH_FILTER, 0); err != nil {
		return fmt.Errorf("bpfprog: SO_DETACH_FILTER: %w", err)
	}
	return nil
}
