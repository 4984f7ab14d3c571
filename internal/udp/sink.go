// Package udp implements the datagram packet sink of the gateway.
package udp

import (
	"fmt"
	"net"

	"github.com/rahul91115/canfd-eth-gateway/internal/packet"
)

// DefaultSendBuf is the default SO_SNDBUF hint (1 MiB). The send buffer
// absorbs short bursts; it is a tuning knob, not a delivery guarantee —
// packets are dropped, never queued, once the kernel rejects them.
const DefaultSendBuf = 1 << 20

// Sink sends one fixed-size datagram per gateway packet to a destination
// fixed at open time. Send never blocks the caller on network capacity
// and never retries; a failed send loses exactly one packet.
type Sink struct {
	conn *net.UDPConn
	dest *net.UDPAddr
	buf  [packet.Size]byte
}

// Open resolves dest ("host:port") once and binds a connected UDP socket
// to it. A malformed or unresolvable destination is a startup failure.
// sndbuf <= 0 selects DefaultSendBuf; a failing buffer resize is ignored
// (the socket still works, just with the OS default).
func Open(dest string, sndbuf int) (*Sink, error) {
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", dest, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp %s: %w", addr, err)
	}
	if sndbuf <= 0 {
		sndbuf = DefaultSendBuf
	}
	_ = conn.SetWriteBuffer(sndbuf)
	return &Sink{conn: conn, dest: addr}, nil
}

// Dest returns the resolved destination address.
func (s *Sink) Dest() *net.UDPAddr { return s.dest }

// Send transmits one packet, fire-and-forget. The returned error is
// transient by contract; retry policy belongs to the caller (the gateway
// loop does not retry).
func (s *Sink) Send(p packet.GatewayPacket) error {
	p.MarshalTo(s.buf[:])
	if _, err := s.conn.Write(s.buf[:]); err != nil {
		return fmt.Errorf("udp send: %w", err)
	}
	return nil
}

func (s *Sink) Close() error { return s.conn.Close() }
