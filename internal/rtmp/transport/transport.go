// Package transport implements the RTMP transport adapter abstraction: a
// single narrow interface over a byte stream, with concrete adapters for
// plain TCP, TLS-TCP, and the RTMPT (HTTP long-poll tunnel) pseudo-stream.
// Handshake, chunking, and message-layer code is written against net.Conn;
// NetConn adapts any Conn to net.Conn, so a session can run over any of the
// three without caring which one it got.
package transport

import (
	"net"
	"time"
)

// Conn is the transport adapter interface: read/write a byte stream, flush
// any buffering, close, and report basic byte/peer accounting. All three
// concrete adapters (TCP, TLS, RTMPT) satisfy it.
type Conn interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Flush() error
	Close() error
	IsClosed() bool
	BytesRead() uint64
	BytesWritten() uint64
	RemoteAddr() string
	SetDeadline(t time.Time) error
}

// netConn wraps a net.Conn (plain TCP or an already-established
// *tls.Conn — both satisfy net.Conn) as a Conn, tracking byte counts and a
// closed flag the interface requires but net.Conn doesn't expose.
type netConn struct {
	c         net.Conn
	bytesIn   uint64
	bytesOut  uint64
	closed    bool
}

// NewTCPConn wraps an already-accepted or already-dialed net.Conn.
// TLS-TCP connections use the same wrapper: *tls.Conn implements net.Conn,
// so TLS is "just" a net.Conn that does its handshake and record framing
// underneath — the adapter layer doesn't need a separate code path, only a
// separate dial/listen constructor (see tls.go).
func NewTCPConn(c net.Conn) Conn {
	return &netConn{c: c}
}

func (n *netConn) Read(p []byte) (int, error) {
	nn, err := n.c.Read(p)
	n.bytesIn += uint64(nn)
	return nn, err
}

func (n *netConn) Write(p []byte) (int, error) {
	nn, err := n.c.Write(p)
	n.bytesOut += uint64(nn)
	return nn, err
}

// Flush is a no-op for a raw net.Conn: every Write already hits the socket
// (or the TLS record layer, which buffers only within a single Write call).
func (n *netConn) Flush() error { return nil }

func (n *netConn) Close() error {
	n.closed = true
	return n.c.Close()
}

func (n *netConn) IsClosed() bool { return n.closed }

func (n *netConn) BytesRead() uint64 { return n.bytesIn }

func (n *netConn) BytesWritten() uint64 { return n.bytesOut }

func (n *netConn) RemoteAddr() string {
	if n.c.RemoteAddr() == nil {
		return ""
	}
	return n.c.RemoteAddr().String()
}

func (n *netConn) SetDeadline(t time.Time) error { return n.c.SetDeadline(t) }

// strAddr adapts Conn.RemoteAddr()'s plain string (needed so an RTMPT
// pseudo-stream, which has no real net.Addr, can still satisfy net.Addr)
// into the net.Addr interface.
type strAddr string

func (a strAddr) Network() string { return "rtmp" }
func (a strAddr) String() string  { return string(a) }

// netConnAdapter makes any Conn satisfy net.Conn, so existing code built
// against net.Conn (handshake.ServerHandshake, chunk.NewReader/NewWriter,
// conn.Connection's netConn field) can run unmodified over TCP, TLS, or
// RTMPT alike: server.Server picks the Listener implementation, everything
// below it keeps dealing with the net.Conn it already knew how to use.
type netConnAdapter struct {
	Conn
	local net.Addr
}

// NetConn adapts c to the net.Conn interface. For plain TCP/TLS connections
// prefer using the underlying net.Conn directly where available; NetConn
// exists so RTMPT sessions (which have no real socket) can be handed to
// code that only accepts net.Conn.
func NetConn(c Conn) net.Conn {
	return &netConnAdapter{Conn: c, local: strAddr("local")}
}

func (a *netConnAdapter) LocalAddr() net.Addr  { return a.local }
func (a *netConnAdapter) RemoteAddr() net.Addr { return strAddr(a.Conn.RemoteAddr()) }

func (a *netConnAdapter) SetReadDeadline(t time.Time) error  { return a.Conn.SetDeadline(t) }
func (a *netConnAdapter) SetWriteDeadline(t time.Time) error { return a.Conn.SetDeadline(t) }

var _ net.Conn = (*netConnAdapter)(nil)

// Listener mirrors net.Listener but hands back the Conn abstraction,
// letting server.Server accept connections from any transport uniformly.
type Listener interface {
	Accept() (Conn, error)
	Close() error
	Addr() net.Addr
}

// tcpListener adapts a net.Listener to Listener.
type tcpListener struct {
	l net.Listener
}

// ListenTCP opens a plain TCP listener on addr (host:port), used for
// rtmp:// (port 1935 by convention).
func ListenTCP(addr string) (Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &tcpListener{l: l}, nil
}

func (t *tcpListener) Accept() (Conn, error) {
	c, err := t.l.Accept()
	if err != nil {
		return nil, err
	}
	return NewTCPConn(c), nil
}

func (t *tcpListener) Close() error { return t.l.Close() }

func (t *tcpListener) Addr() net.Addr { return t.l.Addr() }
