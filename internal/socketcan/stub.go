//go:build !linux

package socketcan

import (
	"errors"

	"github.com/rahul91115/canfd-eth-gateway/internal/can"
)

// ErrUnsupported is returned on platforms without SocketCAN so the
// command and its tests still compile off linux.
var ErrUnsupported = errors.New("socketcan: unsupported platform")

type Device struct{}

func Open(iface string) (*Device, error) { return nil, ErrUnsupported }

func (d *Device) Close() error { return ErrUnsupported }

func (d *Device) ReadFrame(fr *can.Frame) error { return ErrUnsupported }
