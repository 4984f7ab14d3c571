package serial

import (
	"bytes"
	"io"
	"time"

	"github.com/rahul91115/canfd-eth-gateway/internal/can"
)

const (
	readBufSize = 4096
	// reclaim the RX accumulation buffer if it grew past this while fully
	// drained, so bursts of line noise do not retain large backing arrays
	reclaimThreshold = 16 * 1024
	idlePause        = 5 * time.Millisecond
)

// Source turns a UART CAN-FD adapter into a blocking frame source.
// ReadFrame has the same contract as the SocketCAN device: it blocks until
// a complete frame is available and never returns a partial one. Not safe
// for concurrent use; the gateway loop is the single reader.
type Source struct {
	port    Port
	codec   Codec
	acc     *bytes.Buffer
	buf     []byte
	pending []can.Frame
}

func NewSource(p Port) *Source {
	return &Source{
		port: p,
		acc:  bytes.NewBuffer(nil),
		buf:  make([]byte, readBufSize),
	}
}

// ReadFrame blocks until one decoded frame is available. Read timeouts on
// the port (surfaced as io.EOF by tarm/serial) keep the wait going; any
// other port error is fatal and ends the gateway.
func (s *Source) ReadFrame(fr *can.Frame) error {
	for {
		if len(s.pending) > 0 {
			*fr = s.pending[0]
			s.pending = s.pending[1:]
			return nil
		}
		n, err := s.port.Read(s.buf)
		if n > 0 {
			s.acc.Write(s.buf[:n])
			_ = s.codec.DecodeStream(s.acc, func(f can.Frame) {
				s.pending = append(s.pending, f)
			})
			if s.acc.Len() == 0 && s.acc.Cap() > reclaimThreshold {
				s.acc = bytes.NewBuffer(nil)
			}
		}
		if err != nil && err != io.EOF {
			// deliver frames decoded from this read first; a dead port
			// keeps failing, so the error resurfaces on the next call
			if len(s.pending) > 0 {
				continue
			}
			return err
		}
		if n == 0 && err == io.EOF {
			// read timeout with no data; keep waiting without spinning
			time.Sleep(idlePause)
		}
	}
}

func (s *Source) Close() error { return s.port.Close() }
