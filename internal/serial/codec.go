package serial

import (
	"bytes"
	"encoding/binary"

	"github.com/rahul91115/canfd-eth-gateway/internal/can"
	"github.com/rahul91115/canfd-eth-gateway/internal/metrics"
)

// Codec encodes/decodes CAN-FD frames on the UART adapter link.
// Stateless and safe for concurrent use.
//
// Wire envelope:
//
//	[0x2D, 0xD5, ln, FLAGS(1), ID(4 BE), PAYLOAD(0..64), checksum]
//
// ln = FLAGS + ID + PAYLOAD bytes + 1 (checksum), so 6..70.
// FLAGS carries the FD frame bits (bit0 BRS, bit1 ESI); ID is the verbatim
// 32-bit identifier including SocketCAN flag bits.
// checksum = 0x2D + ln + sum(bytes between ln and checksum), mod 256.
type Codec struct{}

const (
	pre0 = 0x2D
	pre1 = 0xD5

	headLen = 1 + 4 // FLAGS + ID
	minLn   = headLen + 0 + 1
	maxLn   = headLen + can.MaxDataLen + 1
)

// CompactBuffer reclaims consumed prefix capacity when the underlying buffer
// grows too large relative to unread bytes. It returns true if compaction
// occurred. Thresholds chosen to avoid excessive copying.
func CompactBuffer(b *bytes.Buffer) bool {
	data := b.Bytes()
	if len(data) < 1024 {
		return false
	}
	if cap(data) > 0 && len(data)*4 < cap(data) {
		clone := make([]byte, len(data))
		copy(clone, data)
		b.Reset()
		_, _ = b.Write(clone)
		return true
	}
	return false
}

// Encode builds the wire envelope for one frame. The gateway itself only
// listens, but the encoder keeps the codec symmetric for adapters that
// expect an explicit open/ack exchange and for building test fixtures.
func (Codec) Encode(f can.Frame) []byte {
	n := int(f.Len)
	if n > can.MaxDataLen {
		n = can.MaxDataLen
	}
	ln := headLen + n + 1
	env := make([]byte, 3+ln)
	env[0] = pre0
	env[1] = pre1
	env[2] = byte(ln)
	env[3] = f.Flags & (can.CANFD_BRS | can.CANFD_ESI)
	binary.BigEndian.PutUint32(env[4:8], f.CANID)
	copy(env[8:8+n], f.Data[:n])

	sum := uint(pre0) + uint(env[2])
	for _, b := range env[3 : len(env)-1] {
		sum += uint(b)
	}
	env[len(env)-1] = byte(sum)
	return env
}

// DecodeStream reads from in and emits complete frames via out.
// Garbage between envelopes is skipped byte-wise (resync on preamble);
// rejected envelopes are counted as malformed. A truncated envelope is
// left in the buffer until more bytes arrive.
func (Codec) DecodeStream(in *bytes.Buffer, out func(can.Frame)) error {
	header := []byte{pre0, pre1}

	for {
		// Periodically compact to avoid unbounded growth from misaligned
		// garbage. Must happen before capturing the buffer contents:
		// compaction rewrites the backing array, so a slice taken earlier
		// would alias shifted bytes.
		_ = CompactBuffer(in)
		data := in.Bytes()
		if len(data) < 3 { // need preamble + len
			return nil
		}

		// align to preamble
		i := bytes.Index(data, header)
		if i < 0 {
			// keep last byte in case next buffer starts with preamble second byte
			if in.Len() > 1 {
				last := data[len(data)-1]
				in.Reset()
				_ = in.WriteByte(last)
			}
			return nil
		}
		if i > 0 {
			in.Next(i)
			continue
		}

		// preamble at start; need length
		if len(data) < 4 {
			return nil
		}
		ln := int(data[2])
		if ln < minLn || ln > maxLn {
			// malformed length; advance one byte to resync
			metrics.IncMalformed()
			in.Next(1)
			continue
		}

		req := 3 + ln // total bytes: 2 preamble + 1 len + ln
		if len(data) < req {
			return nil
		}

		sum := uint(pre0) + uint(data[2])
		for _, b := range data[3 : req-1] {
			sum += uint(b)
		}
		if byte(sum) != data[req-1] {
			// checksum mismatch: count and attempt resync
			metrics.IncMalformed()
			in.Next(1)
			continue
		}

		var f can.Frame
		f.Flags = data[3] & (can.CANFD_BRS | can.CANFD_ESI)
		f.CANID = binary.BigEndian.Uint32(data[4:8])
		payload := data[8 : req-1]
		f.Len = uint8(len(payload))
		copy(f.Data[:], payload)

		out(f)
		metrics.IncSerialRx()
		in.Next(req)
	}
}
