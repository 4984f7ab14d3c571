package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rahul91115/canfd-eth-gateway/internal/can"
	"github.com/rahul91115/canfd-eth-gateway/internal/metrics"
	"github.com/rahul91115/canfd-eth-gateway/internal/packet"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var errScriptDone = errors.New("script exhausted")

// scriptSource replays a fixed sequence of read outcomes. When the script
// runs out it fails fatally so Run terminates.
type scriptSource struct {
	steps []func(*can.Frame) error
	i     int
}

func (s *scriptSource) ReadFrame(fr *can.Frame) error {
	if s.i >= len(s.steps) {
		return errScriptDone
	}
	step := s.steps[s.i]
	s.i++
	return step(fr)
}

func (s *scriptSource) Close() error { return nil }

func yield(fr can.Frame) func(*can.Frame) error {
	return func(out *can.Frame) error {
		*out = fr
		return nil
	}
}

func fail(err error) func(*can.Frame) error {
	return func(*can.Frame) error { return err }
}

// collectSink records every packet; optional per-call errors simulate
// transient transport failures.
type collectSink struct {
	mu   sync.Mutex
	got  []packet.GatewayPacket
	errs map[int]error // by call index (0-based)
	call int
}

func (c *collectSink) Send(p packet.GatewayPacket) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.call
	c.call++
	if err, ok := c.errs[n]; ok {
		return err
	}
	c.got = append(c.got, p)
	return nil
}

func (c *collectSink) Close() error { return nil }

func (c *collectSink) packets() []packet.GatewayPacket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]packet.GatewayPacket(nil), c.got...)
}

// tickClock returns strictly increasing timestamps.
func tickClock(start, step uint64) Clock {
	t := start
	return func() uint64 {
		v := t
		t += step
		return v
	}
}

func frameN(id uint32, b byte) can.Frame {
	var fr can.Frame
	fr.CANID = id
	fr.Len = 1
	fr.Data[0] = b
	return fr
}

func TestRunForwardsInArrivalOrder(t *testing.T) {
	frames := []can.Frame{frameN(0x100, 1), frameN(0x200, 2), frameN(0x300, 3)}
	src := &scriptSource{steps: []func(*can.Frame) error{
		yield(frames[0]), yield(frames[1]), yield(frames[2]),
	}}
	sink := &collectSink{}
	g := New(
		WithSource(src),
		WithSink(sink),
		WithLogger(testLogger()),
		WithClock(tickClock(1000, 10)),
	)

	err := g.Run(context.Background())
	if !errors.Is(err, ErrSourceRead) {
		t.Fatalf("Run err = %v, want wrapped ErrSourceRead at script end", err)
	}

	got := sink.packets()
	if len(got) != len(frames) {
		t.Fatalf("forwarded %d packets, want %d", len(got), len(frames))
	}
	var prevTS uint64
	for i, p := range got {
		if p.CANID != frames[i].CANID || p.Data[0] != frames[i].Data[0] {
			t.Fatalf("packet %d out of order: id=0x%X", i, p.CANID)
		}
		if p.TimestampNS < prevTS {
			t.Fatalf("timestamp regressed at %d: %d < %d", i, p.TimestampNS, prevTS)
		}
		prevTS = p.TimestampNS
	}
	if got[0].TimestampNS != 1000 {
		t.Fatalf("first timestamp = %d, want 1000", got[0].TimestampNS)
	}
}

func TestRunSkipsIncompleteReads(t *testing.T) {
	before := metrics.Snap().Incomplete
	src := &scriptSource{steps: []func(*can.Frame) error{
		yield(frameN(1, 0xA)),
		fail(fmt.Errorf("%w: 16 bytes", can.ErrIncompleteFrame)),
		yield(frameN(2, 0xB)),
	}}
	sink := &collectSink{}
	g := New(WithSource(src), WithSink(sink), WithLogger(testLogger()), WithClock(tickClock(0, 1)))

	_ = g.Run(context.Background())

	if got := sink.packets(); len(got) != 2 {
		t.Fatalf("forwarded %d packets, want 2 (incomplete read must emit none)", len(got))
	}
	if d := metrics.Snap().Incomplete - before; d != 1 {
		t.Fatalf("incomplete counter delta = %d, want 1", d)
	}
}

func TestRunContinuesOnSendError(t *testing.T) {
	before := metrics.Snap().Dropped
	src := &scriptSource{steps: []func(*can.Frame) error{
		yield(frameN(1, 0xA)), yield(frameN(2, 0xB)), yield(frameN(3, 0xC)),
	}}
	sink := &collectSink{errs: map[int]error{1: errors.New("sendto: network is unreachable")}}
	g := New(WithSource(src), WithSink(sink), WithLogger(testLogger()), WithClock(tickClock(0, 1)))

	_ = g.Run(context.Background())

	got := sink.packets()
	if len(got) != 2 {
		t.Fatalf("forwarded %d packets, want 2 (failed send is dropped, not retried)", len(got))
	}
	if got[0].CANID != 1 || got[1].CANID != 3 {
		t.Fatalf("unexpected survivors: 0x%X 0x%X", got[0].CANID, got[1].CANID)
	}
	if d := metrics.Snap().Dropped - before; d != 1 {
		t.Fatalf("dropped counter delta = %d, want 1", d)
	}
}

func TestRunFatalSourceError(t *testing.T) {
	src := &scriptSource{steps: []func(*can.Frame) error{
		fail(errors.New("read can0: bad file descriptor")),
	}}
	g := New(WithSource(src), WithSink(&collectSink{}), WithLogger(testLogger()))

	err := g.Run(context.Background())
	if !errors.Is(err, ErrSourceRead) {
		t.Fatalf("Run err = %v, want ErrSourceRead", err)
	}
}

func TestRunClampsOversizedFrame(t *testing.T) {
	before := metrics.Snap().Clamped
	var big can.Frame
	big.CANID = 0x42
	big.Len = 100
	src := &scriptSource{steps: []func(*can.Frame) error{yield(big)}}
	sink := &collectSink{}
	var logBuf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&logBuf, nil))
	g := New(WithSource(src), WithSink(sink), WithLogger(l), WithClock(tickClock(0, 1)))

	_ = g.Run(context.Background())

	got := sink.packets()
	if len(got) != 1 || got[0].DLC != can.MaxDataLen {
		t.Fatalf("oversized frame not clamped: %+v", got)
	}
	if d := metrics.Snap().Clamped - before; d != 1 {
		t.Fatalf("clamp counter delta = %d, want 1", d)
	}
	// The log must carry the offending length, not the clamped one.
	if out := logBuf.String(); !strings.Contains(out, "frame_length_clamped") || !strings.Contains(out, "len=100") {
		t.Fatalf("clamp log missing original length:\n%s", out)
	}
}

// blockingSource waits until released, then reports a closed descriptor,
// mimicking a device unblocked by Close during shutdown.
type blockingSource struct {
	release chan struct{}
}

func (b *blockingSource) ReadFrame(*can.Frame) error {
	<-b.release
	return errors.New("use of closed file")
}

func (b *blockingSource) Close() error { return nil }

func TestRunReturnsNilOnCancel(t *testing.T) {
	src := &blockingSource{release: make(chan struct{})}
	g := New(WithSource(src), WithSink(&collectSink{}), WithLogger(testLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	cancel()
	close(src.release) // simulate main closing the source after cancel

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after cancel = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRequiresSourceAndSink(t *testing.T) {
	if err := New().Run(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}
