//go:build linux

package socketcan

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/rahul91115/canfd-eth-gateway/internal/can"
	"github.com/rahul91115/canfd-eth-gateway/internal/metrics"
)

type Device struct {
	fd int
}

// Open binds a raw CAN socket with CAN-FD frame delivery enabled to iface.
// Failure here is a startup failure; the device is never reopened.
func Open(iface string) (*Device, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socket(AF_CAN): %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 1); err != nil {
		// Without this option the kernel only delivers classic frames,
		// so an old kernel is a hard failure for an FD gateway.
		_ = unix.Close(fd)
		return nil, fmt.Errorf("enable CAN FD: %w", err)
	}
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("if %q: %w", iface, err)
	}
	sa := &unix.SockaddrCAN{Ifindex: ifi.Index}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind(can@%s): %w", iface, err)
	}
	return &Device{fd: fd}, nil
}

func (d *Device) Close() error { return unix.Close(d.fd) }

// ReadFrame reads one CAN-FD frame from the raw CAN socket. It blocks until
// a frame arrives, resuming transparently on EINTR. A read that is not a
// complete canfd_frame (e.g. a classic 16-byte frame from a mixed bus)
// yields can.ErrIncompleteFrame and no frame.
func (d *Device) ReadFrame(fr *can.Frame) error {
	var buf [FrameSize]byte
	for {
		n, err := unix.Read(d.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if err := parseFrame(buf[:n], fr); err != nil {
			return err
		}
		metrics.IncCANRx()
		return nil
	}
}
