//go:build linux

package capture

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
	"netbench/internal/bpfprog"
	"netbench/internal/frame"
	"netbench/internal/metrics"
)

const defaultBufferSize = 65536

// readTimeout bounds each recvfrom so Poll returns "no packet" on an idle
// interface instead of blocking.
const readTimeout = 100 * time.Millisecond

// linuxEngine captures from an AF_PACKET raw socket bound to one interface,
// per spec §6: protocol ETH_P_ALL, optional classic BPF attached via socket
// option. One frame is delivered per recvfrom, matching spec §4.E's
// raw-socket contract ("one frame per recvfrom").
type linuxEngine struct {
	fd     int
	opened bool
	buf    []byte
}

// New returns the platform capture engine for Linux.
func New() Engine { return &linuxEngine{} }

func (e *linuxEngine) Open(cfg Config) error {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return fmt.Errorf("capture: socket(AF_PACKET): %w", err)
	}

	idx, err := ifaceIndex(cfg.Interface)
	if err != nil {
		unix.Close(fd)
		return fmt.Errorf("capture: resolve interface %q: %w", cfg.Interface, err)
	}

	sll := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  idx,
	}
	if err := unix.Bind(fd, &sll); err != nil {
		unix.Close(fd)
		return fmt.Errorf("capture: bind: %w", err)
	}

	if cfg.Promiscuous {
		mreq := unix.PacketMreq{
			Ifindex: int32(idx),
			Type:    unix.PACKET_MR_PROMISC,
		}
		if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &mreq); err != nil {
			unix.Close(fd)
			return fmt.Errorf("capture: enable promiscuous mode: %w", err)
		}
	}

	tv := unix.NsecToTimeval(readTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return fmt.Errorf("capture: set read timeout: %w", err)
	}

	if err := bpfprog.Attach(fd, cfg.Filter); err != nil {
		unix.Close(fd)
		return err
	}

	bufSize := cfg.BufferSize
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}

	e.fd = fd
	e.opened = true
	e.buf = make([]byte, bufSize)
	return nil
}

func (e *linuxEngine) Poll(m *metrics.Core) (frame.Captured, bool, error) {
	n, _, err := unix.Recvfrom(e.fd, e.buf, 0)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			return frame.Captured{}, false, nil
		}
		return frame.Captured{}, false, fmt.Errorf("%w: recvfrom: %v", ErrPersistent, err)
	}
	if n == 0 {
		return frame.Captured{}, false, nil
	}

	data, truncated := truncate(e.buf[:n], frame.MaxFrameLen)
	if truncated && m != nil {
		m.IncCaptureDrops()
	}

	out := make([]byte, len(data))
	copy(out, data)
	return stampArrival(out, n), true, nil
}

func (e *linuxEngine) Close() error {
	if !e.opened {
		return nil
	}
	e.opened = false
	return unix.Close(e.fd)
}

func htons(v int) uint16 {
	return (uint16(v)<<8)&0xFF00 | (uint16(v)>>8)&0x00FF
}

func ifaceIndex(name string) (int, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return 0, err
	}
	return iface.Index, nil
}
