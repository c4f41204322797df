//go:build darwin

package capture

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// openBPFDevice opens the first free /dev/bpfN device, mirroring the probe
// loop in the original C socket_handler.c's socket_bind_raw.
func openBPFDevice() (*os.File, error) {
	for i := 0; i < 256; i++ {
		path := fmt.Sprintf("/dev/bpf%d", i)
		f, err := os.OpenFile(path, os.O_RDONLY, 0)
		if err == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("capture: no free /dev/bpfN device (run with elevated privileges)")
}

// ifreqIoctl performs an ioctl that takes a struct ifreq (16-byte interface
// name followed by a union), used for BIOCSETIF.
func ifreqIoctl(f *os.File, cmd uintptr, ifaceName string) error {
	var ifr [32]byte // IFNAMSIZ(16) + sockaddr-sized union, zeroed
	copy(ifr[:16], ifaceName)

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), cmd, uintptr(unsafe.Pointer(&ifr[0])))
	if errno != 0 {
		return os.NewSyscallError("ioctl", errno)
	}
	return nil
}

// intIoctl performs an ioctl whose argument is a single int32, used for
// BIOCIMMEDIATE, BIOCPROMISC, and BIOCSBLEN.
func intIoctl(f *os.File, cmd uintptr, val *int32) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), cmd, uintptr(unsafe.Pointer(val)))
	if errno != 0 {
		return os.NewSyscallError("ioctl", errno)
	}
	return nil
}
