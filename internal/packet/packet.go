// Package packet defines the fixed-layout gateway wire packet and its codec.
//
// One GatewayPacket is emitted per forwarded CAN-FD frame. The serialized
// image is exactly 78 bytes, little-endian, with no padding between fields:
//
//	offset  size  field
//	0       8     timestamp_ns (monotonic)
//	8       4     can_id (verbatim, incl. EFF/RTR/ERR flag bits)
//	12      1     dlc (0..64)
//	13      1     flags (bit0 BRS, bit1 ESI, rest zero)
//	14      64    data (zero-padded beyond dlc)
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rahul91115/canfd-eth-gateway/internal/can"
)

// Size is the serialized packet size in bytes.
const Size = 8 + 4 + 1 + 1 + can.MaxDataLen

// Packet flag bits.
const (
	FlagBRS = 0x01
	FlagESI = 0x02
)

// ErrShortBuffer is returned by Unmarshal for inputs below Size bytes.
var ErrShortBuffer = errors.New("packet: short buffer")

// GatewayPacket is the in-memory form of one wire packet. It is constructed
// per frame, serialized, and discarded; never mutated after Encode.
type GatewayPacket struct {
	TimestampNS uint64
	CANID       uint32
	DLC         uint8
	Flags       uint8
	Data        [can.MaxDataLen]byte
}

// Encode maps a CAN-FD frame plus its arrival timestamp to a packet.
// Pure and total for fr.Len <= 64; the caller enforces the length contract
// (sources never hand out longer frames), Encode still clamps so an
// out-of-contract value cannot index past the payload buffer.
// Data beyond fr.Len is explicitly zeroed; stale bytes in fr.Data never
// reach the wire.
func Encode(fr can.Frame, tsNS uint64) GatewayPacket {
	n := fr.Len
	if n > can.MaxDataLen {
		n = can.MaxDataLen
	}
	p := GatewayPacket{
		TimestampNS: tsNS,
		CANID:       fr.CANID,
		DLC:         n,
	}
	if fr.BRS() {
		p.Flags |= FlagBRS
	}
	if fr.ESI() {
		p.Flags |= FlagESI
	}
	copy(p.Data[:n], fr.Data[:n])
	// p.Data past n is zero from initialization
	return p
}

// MarshalTo writes the 78-byte wire image into b, which must hold at least
// Size bytes, and returns the bytes written.
func (p *GatewayPacket) MarshalTo(b []byte) int {
	_ = b[Size-1] // bounds hint
	binary.LittleEndian.PutUint64(b[0:8], p.TimestampNS)
	binary.LittleEndian.PutUint32(b[8:12], p.CANID)
	b[12] = p.DLC
	b[13] = p.Flags
	copy(b[14:14+can.MaxDataLen], p.Data[:])
	return Size
}

// Marshal returns a freshly allocated wire image.
func (p *GatewayPacket) Marshal() []byte {
	b := make([]byte, Size)
	p.MarshalTo(b)
	return b
}

// Unmarshal parses one wire image. Extra trailing bytes are ignored so a
// consumer can hand in a whole datagram buffer.
func Unmarshal(b []byte) (GatewayPacket, error) {
	var p GatewayPacket
	if len(b) < Size {
		return p, fmt.Errorf("%w: %d bytes", ErrShortBuffer, len(b))
	}
	p.TimestampNS = binary.LittleEndian.Uint64(b[0:8])
	p.CANID = binary.LittleEndian.Uint32(b[8:12])
	p.DLC = b[12]
	p.Flags = b[13]
	copy(p.Data[:], b[14:14+can.MaxDataLen])
	return p, nil
}
