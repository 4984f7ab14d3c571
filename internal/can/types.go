package can

import "errors"

// SocketCAN flag bits for can_id (same values as <linux/can.h>)
const (
	CAN_EFF_FLAG = 0x80000000
	CAN_RTR_FLAG = 0x40000000
	CAN_ERR_FLAG = 0x20000000
	CAN_SFF_MASK = 0x7FF
	CAN_EFF_MASK = 0x1FFFFFFF
)

// CAN-FD frame flag bits (canfd_frame.flags in <linux/can.h>)
const (
	CANFD_BRS = 0x01 // bit rate switch: data phase used the second bitrate
	CANFD_ESI = 0x02 // error state indicator of the transmitting node
)

// MaxDataLen is the largest CAN-FD payload.
const MaxDataLen = 64

// ErrIncompleteFrame reports a read that did not yield a complete CAN-FD
// frame (short read, truncated adapter envelope). Sources return it wrapped;
// it is never fatal and no partial frame accompanies it.
var ErrIncompleteFrame = errors.New("can: incomplete frame")

// Frame is the CAN-FD frame holder used across the gateway.
// CANID contains EFF/RTR/ERR flags in its upper bits like SocketCAN.
// Len is the payload length (0..64); only the first Len bytes of Data are
// valid. Flags carries the FD per-frame bits (BRS/ESI).
type Frame struct {
	CANID uint32
	Len   uint8
	Flags uint8
	Data  [MaxDataLen]byte
}

// BRS reports whether the frame's data phase used the switched bitrate.
func (f Frame) BRS() bool { return f.Flags&CANFD_BRS != 0 }

// ESI reports whether the transmitting node signalled error-passive state.
func (f Frame) ESI() bool { return f.Flags&CANFD_ESI != 0 }
