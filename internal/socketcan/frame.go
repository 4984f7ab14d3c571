package socketcan

import (
	"encoding/binary"
	"fmt"

	"github.com/rahul91115/canfd-eth-gateway/internal/can"
)

// FrameSize is the size of a kernel canfd_frame image (CANFD_MTU).
const FrameSize = 72

// parseFrame decodes one canfd_frame image into fr.
//
// struct canfd_frame (linux/can.h):
//
//	can_id u32   [0:4]  (includes EFF/RTR/ERR flags)
//	len    u8    [4]
//	flags  u8    [5]    (BRS/ESI)
//	res    2B    [6:8]
//	data   [64]  [8:72]
//
// NOTE: The kernel provides can_id in host byte order. On common Linux
// archs (little-endian) this matches binary.LittleEndian. If you ever
// target big-endian, switch to BigEndian here.
func parseFrame(buf []byte, fr *can.Frame) error {
	if len(buf) != FrameSize {
		return fmt.Errorf("%w: %d bytes", can.ErrIncompleteFrame, len(buf))
	}
	dlc := buf[4]
	if dlc > can.MaxDataLen {
		// The kernel never hands out len > 64; a larger value means the
		// buffer is not a canfd_frame at all.
		return fmt.Errorf("%w: len %d", can.ErrIncompleteFrame, dlc)
	}
	fr.CANID = binary.LittleEndian.Uint32(buf[0:4])
	fr.Len = dlc
	fr.Flags = buf[5] & (can.CANFD_BRS | can.CANFD_ESI)
	copy(fr.Data[:], buf[8:8+dlc])
	return nil
}
