//go:build darwin

package bpfprog

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// BSD BPF device ioctl commands (see <net/bpf.h>); golang.org/x/sys/unix
// does not expose these on darwin, so they are named here the way the
// original C socket_handler.c names its raw ioctl constants.
const (
	biocSetf = 0x80104267
)

type bpfProgramT struct {
	bfLen   uint32
	bfInsns uintptr
}

// Attach installs the compiled classifier on a BPF device file descriptor
// via BIOCSETF, the BSD/macOS install path spec §4.D calls for.
func Attach(fd int, prog *Program) error {
	if prog == nil {
		return nil
	}

	type bpfInsn struct {
		code uint16
		jt   uint8
		jf   uint8
		k    uint32
	}
	insns := make([]bpfInsn, len(prog.Raw))
	for i, ins := range prog.Raw {
		insns[i] = bpfInsn{code: ins.Op, jt: ins.Jt, jf: ins.Jf, k: ins.K}
	}

	p := bpfProgramT{
		bfLen:   uint32(len(insns)),
		bfInsns: uintptr(unsafe.Pointer(&insns[0])),
	}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), biocSetf, uintptr(unsafe.Pointer(&p))); errno != 0 {
		return fmt.Errorf("bpfprog: BIOCSETF: %w", os.NewSyscallError("ioctl", errno))
	}
	return nil
}

// Detach is a no-op on BPF devices: closing the device file descriptor is
// the only supported way to clear an installed filter.
func Detach(fd int) error { return nil }
