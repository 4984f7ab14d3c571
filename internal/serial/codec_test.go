package serial

import (
	"bytes"
	"testing"

	"github.com/rahul91115/canfd-eth-gateway/internal/can"
	"github.com/rahul91115/canfd-eth-gateway/internal/metrics"
)

func f(id uint32, flags uint8, data ...byte) can.Frame {
	var fr can.Frame
	fr.CANID = id
	fr.Flags = flags
	fr.Len = uint8(len(data))
	copy(fr.Data[:], data)
	return fr
}

func sameFrame(a, b can.Frame) bool {
	return a.CANID == b.CANID && a.Len == b.Len && a.Flags == b.Flags &&
		bytes.Equal(a.Data[:a.Len], b.Data[:b.Len])
}

func TestCodec_RoundTrip_Chunked(t *testing.T) {
	codec := Codec{}

	want := []can.Frame{
		f(0x0001E5A, 0, 0x34, 0x7B, 0x70, 0xD7, 0x94, 0x10, 0x0D, 0xF7),
		f(0x80000789|can.CAN_EFF_FLAG, can.CANFD_ESI), // zero-length payload
		f(0x456, can.CANFD_BRS, bytes.Repeat([]byte{0xAA}, 20)...),
		f(0x458, can.CANFD_BRS|can.CANFD_ESI, bytes.Repeat([]byte{0x5A}, 64)...), // max FD payload
		f(0x0123456, 0, 0x9A, 0xBC),
	}

	stream := make([]byte, 0, 512)
	for _, fr := range want {
		stream = append(stream, codec.Encode(fr)...)
	}

	var buf bytes.Buffer
	got := make([]can.Frame, 0, len(want))

	// Feed in irregular small chunks to stress preamble alignment & partials.
	chunkSizes := []int{1, 2, 3, 4, 5, 7, 11}
	cs := 0
	for pos := 0; pos < len(stream); {
		n := chunkSizes[cs%len(chunkSizes)]
		cs++
		if pos+n > len(stream) {
			n = len(stream) - pos
		}
		buf.Write(stream[pos : pos+n])
		pos += n

		if err := codec.DecodeStream(&buf, func(fr can.Frame) {
			got = append(got, fr)
		}); err != nil {
			t.Fatalf("DecodeStream error: %v", err)
		}
	}

	if len(got) != len(want) {
		t.Fatalf("decoded %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if !sameFrame(got[i], want[i]) {
			t.Fatalf("frame %d mismatch\n got  id=0x%X len=%d flags=0x%02X data=% X\n want id=0x%X len=%d flags=0x%02X data=% X",
				i,
				got[i].CANID, got[i].Len, got[i].Flags, got[i].Data[:got[i].Len],
				want[i].CANID, want[i].Len, want[i].Flags, want[i].Data[:want[i].Len])
		}
	}
}

func TestCodec_ResyncAfterGarbage(t *testing.T) {
	codec := Codec{}
	want := f(0x1AB, can.CANFD_BRS, 0xDE, 0xAD)

	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0xFF, 0x2D, 0x01, 0x13}) // noise, incl. a lone preamble byte
	buf.Write(codec.Encode(want))

	var got []can.Frame
	if err := codec.DecodeStream(&buf, func(fr can.Frame) {
		got = append(got, fr)
	}); err != nil {
		t.Fatalf("DecodeStream error: %v", err)
	}
	if len(got) != 1 || !sameFrame(got[0], want) {
		t.Fatalf("resync failed, got %d frames", len(got))
	}
}

// A long-lived RX buffer that grew during a burst and drained must decode
// later traffic intact: compaction rewrites the backing array, and the
// decoder has to look at the buffer only after that.
func TestCodec_DecodeAfterDrainedBurst(t *testing.T) {
	codec := Codec{}
	var buf bytes.Buffer

	// grow the buffer well past the compaction threshold, then drain it
	var n1 int
	for i := 0; i < 120; i++ {
		fr := f(0x100+uint32(i), 0, bytes.Repeat([]byte{byte(i)}, 64)...)
		buf.Write(codec.Encode(fr))
	}
	if err := codec.DecodeStream(&buf, func(can.Frame) { n1++ }); err != nil {
		t.Fatalf("DecodeStream burst 1: %v", err)
	}
	if n1 != 120 || buf.Len() != 0 {
		t.Fatalf("burst 1: decoded %d frames, %d bytes left", n1, buf.Len())
	}

	// the next burst reuses the grown buffer and lands in the compaction
	// window (over 1 KiB unread, far below the retained capacity)
	before := metrics.Snap().Malformed
	want := make([]uint32, 30)
	for i := range want {
		want[i] = uint32(0x4E8 + i)
		buf.Write(codec.Encode(f(want[i], 0, bytes.Repeat([]byte{0xA5}, 40)...)))
	}
	var got []uint32
	if err := codec.DecodeStream(&buf, func(fr can.Frame) { got = append(got, fr.CANID) }); err != nil {
		t.Fatalf("DecodeStream burst 2: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("burst 2: decoded %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("burst 2 frame %d: got id=0x%X, want id=0x%X", i, got[i], want[i])
		}
	}
	if d := metrics.Snap().Malformed - before; d != 0 {
		t.Fatalf("malformed counter advanced by %d on valid traffic", d)
	}
}

func TestCodec_ChecksumMismatchCounted(t *testing.T) {
	codec := Codec{}
	before := metrics.Snap().Malformed

	env := codec.Encode(f(0x77, 0, 1, 2, 3))
	env[len(env)-1] ^= 0xFF // corrupt checksum
	good := codec.Encode(f(0x78, 0, 4, 5))

	var buf bytes.Buffer
	buf.Write(env)
	buf.Write(good)

	var got []can.Frame
	if err := codec.DecodeStream(&buf, func(fr can.Frame) {
		got = append(got, fr)
	}); err != nil {
		t.Fatalf("DecodeStream error: %v", err)
	}
	if len(got) != 1 || got[0].CANID != 0x78 {
		t.Fatalf("expected only the intact frame, got %d", len(got))
	}
	if metrics.Snap().Malformed == before {
		t.Fatal("malformed counter did not advance")
	}
}
