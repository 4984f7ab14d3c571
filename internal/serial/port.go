package serial

import (
	"time"

	"github.com/tarm/serial"
)

// Port is the read side of the adapter link. The gateway never transmits
// on it; tests substitute an in-memory implementation.
type Port interface {
	Read(p []byte) (int, error)
	Close() error
}

// Open opens the adapter's serial device. A read timeout is required so
// Source can poll for shutdown between quiet periods on the bus.
func Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}
