// Package gateway runs the frame-to-packet forwarding loop.
//
// The loop is strictly sequential: read one frame, stamp its arrival time,
// encode, send, repeat. One goroutine owns both endpoints; ordering of
// emitted packets follows frame arrival order and timestamps are
// non-decreasing by construction.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rahul91115/canfd-eth-gateway/internal/can"
	"github.com/rahul91115/canfd-eth-gateway/internal/logging"
	"github.com/rahul91115/canfd-eth-gateway/internal/metrics"
	"github.com/rahul91115/canfd-eth-gateway/internal/packet"
)

// Source yields one CAN-FD frame per call, blocking until available.
// Implementations retry interrupted waits internally and report an
// incomplete read as can.ErrIncompleteFrame; any other error is fatal.
type Source interface {
	ReadFrame(*can.Frame) error
	Close() error
}

// Sink transmits one encoded packet to the fixed destination. Errors are
// transient by contract and never block or retry.
type Sink interface {
	Send(packet.GatewayPacket) error
	Close() error
}

// Clock supplies monotonic nanoseconds for the arrival timestamp.
type Clock func() uint64

// Gateway owns one Source and one Sink for its lifetime.
type Gateway struct {
	src   Source
	sink  Sink
	l     *slog.Logger
	clock Clock
}

// Option configures the Gateway.
type Option func(*Gateway)

func WithSource(s Source) Option { return func(g *Gateway) { g.src = s } }

func WithSink(s Sink) Option { return func(g *Gateway) { g.sink = s } }

func WithLogger(l *slog.Logger) Option { return func(g *Gateway) { g.l = l } }

func WithClock(c Clock) Option { return func(g *Gateway) { g.clock = c } }

// New builds a Gateway. Source and sink are required; logger and clock
// default to the global logger and the monotonic clock.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		l:     logging.L(),
		clock: MonotonicNow,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Run executes the forwarding loop until ctx is cancelled or the source
// fails fatally. There is no other exit: the steady state is to run
// forever, with per-iteration conditions absorbed inside the loop.
//
// Per iteration: an incomplete read produces no packet and continues; a
// send failure loses exactly that packet, is counted and logged, and
// continues. The timestamp is captured immediately after the frame is
// obtained so it reflects arrival, not encode or send time.
func (g *Gateway) Run(ctx context.Context) error {
	if g.src == nil || g.sink == nil {
		return fmt.Errorf("%w: source and sink required", ErrNotConfigured)
	}
	var fr can.Frame
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := g.src.ReadFrame(&fr); err != nil {
			if ctx.Err() != nil { // shutting down; unblocked by source close
				return nil
			}
			if errors.Is(err, can.ErrIncompleteFrame) {
				metrics.IncIncomplete()
				g.l.Debug("incomplete_frame_read", "error", err)
				continue
			}
			metrics.IncError(metrics.ErrCANRead)
			g.l.Error("source_read_error", "error", err)
			return fmt.Errorf("%w: %v", ErrSourceRead, err)
		}
		ts := g.clock()
		if fr.Len > can.MaxDataLen {
			// Source contract violation. Clamp loudly rather than either
			// crashing the loop or truncating silently.
			got := fr.Len
			fr.Len = can.MaxDataLen
			metrics.IncClamped()
			metrics.IncError(metrics.ErrFrameLength)
			g.l.Error("frame_length_clamped", "id", fr.CANID, "len", got)
		}
		pkt := packet.Encode(fr, ts)
		if err := g.sink.Send(pkt); err != nil {
			metrics.IncDropped()
			metrics.IncError(metrics.ErrUDPSend)
			g.l.Warn("packet_send_error", "error", err)
			continue
		}
		metrics.IncUDPTx()
	}
}
