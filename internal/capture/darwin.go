//go:build darwin

package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
	"netbench/internal/bpfprog"
	"netbench/internal/frame"
	"netbench/internal/metrics"
)

const (
	defaultBPFBufferSize = 128 * 1024

	biocSetif      = 0x8020426c
	biocImmediate  = 0x80044270
	biocPromisc    = 0x20004269
	biocSetblen    = 0xc0044266
	bpfAlignment   = 4
)

// darwinEngine captures from a /dev/bpfN device, per spec §6: interface
// binding, immediate mode on, optional promiscuous mode, optional filter,
// 128KiB read buffer. A single read can return several frames packed back
// to back with a bpf_hdr in front of each (bh_caplen, bh_datalen,
// bh_hdrlen); walkBuffer advances through them one at a time.
type darwinEngine struct {
	fd   *os.File
	buf  []byte
	pend []byte // unconsumed tail of the most recent buffer read
}

// New returns the platform capture engine for Darwin/BSD.
func New() Engine { return &darwinEngine{} }

func (e *darwinEngine) Open(cfg Config) error {
	f, err := openBPFDevice()
	if err != nil {
		return err
	}

	if err := ifreqIoctl(f, biocSetif, cfg.Interface); err != nil {
		f.Close()
		return fmt.Errorf("capture: BIOCSETIF: %w", err)
	}

	one := int32(1)
	if err := intIoctl(f, biocImmediate, &one); err != nil {
		f.Close()
		return fmt.Errorf("capture: BIOCIMMEDIATE: %w", err)
	}

	if cfg.Promiscuous {
		if err := intIoctl(f, biocPromisc, &one); err != nil {
			f.Close()
			return fmt.Errorf("capture: BIOCPROMISC: %w", err)
		}
	}

	bufSize := cfg.BufferSize
	if bufSize <= 0 {
		bufSize = defaultBPFBufferSize
	}
	size := int32(bufSize)
	if err := intIoctl(f, biocSetblen, &size); err != nil {
		f.Close()
		return fmt.Errorf("capture: BIOCSBLEN: %w", err)
	}

	if err := bpfprog.Attach(int(f.Fd()), cfg.Filter); err != nil {
		f.Close()
		return err
	}

	e.fd = f
	e.buf = make([]byte, bufSize)
	return nil
}

func (e *darwinEngine) Poll(m *metrics.Core) (frame.Captured, bool, error) {
	for {
		if len(e.pend) > 0 {
			fr, rest, ok := walkOneRecord(e.pend, m)
			e.pend = rest
			if ok {
				return fr, true, nil
			}
			// Invalid record: discard the remainder of the buffer, per
			// spec §4.E, and fall through to issue a fresh read.
			e.pend = nil
			continue
		}

		n, err := e.fd.Read(e.buf)
		if err != nil {
			if os.IsTimeout(err) || errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				return frame.Captured{}, false, nil
			}
			return frame.Captured{}, false, fmt.Errorf("%w: read bpf device: %v", ErrPersistent, err)
		}
		if n == 0 {
			return frame.Captured{}, false, nil
		}
		e.pend = e.buf[:n]
	}
}

func (e *darwinEngine) Close() error {
	if e.fd == nil {
		return nil
	}
	err := e.fd.Close()
	e.fd = nil
	return err
}

// bpfHdrLen is the byte length of a bpf_hdr's fields on 64-bit Darwin: a
// bpf_timeval (two 32-bit fields), then bh_caplen, bh_datalen, and
// bh_hdrlen. The struct's 2 bytes of trailing padding are not counted; each
// record's own bh_hdrlen gives the offset of its frame.
const bpfHdrLen = 18

// walkOneRecord parses the bpf_hdr at the front of buf and returns the
// frame it describes plus the remaining, word-aligned tail of buf. ok is
// false when the record is invalid (caplen==0 or hdrlen==0) per spec §4.E.
func walkOneRecord(buf []byte, m *metrics.Core) (frame.Captured, []byte, bool) {
	if len(buf) < bpfHdrLen {
		return frame.Captured{}, nil, false
	}

	capLen := binary.LittleEndian.Uint32(buf[8:12])
	dataLen := binary.LittleEndian.Uint32(buf[12:16])
	hdrLen := uint32(binary.LittleEndian.Uint16(buf[16:18]))

	if capLen == 0 || hdrLen == 0 {
		return frame.Captured{}, nil, false
	}
	if int(hdrLen+capLen) > len(buf) {
		return frame.Captured{}, nil, false
	}

	payload, truncated := truncate(buf[hdrLen:hdrLen+capLen], frame.MaxFrameLen)
	if truncated && m != nil {
		m.IncCaptureDrops()
	}

	out := make([]byte, len(payload))
	copy(out, payload)

	next := align(int(hdrLen + capLen))
	var rest []byte
	if next < len(buf) {
		rest = buf[next:]
	}

	return stampArrival(out, int(dataLen)), rest, true
}

func align(n int) int {
	return (n + bpfAlignment - 1) &^ (bpfAlignment - 1)
}
