package transport

import (
	"net"
	"testing"
	"time"
)

func TestNewTCPConnReadWrite(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := NewTCPConn(server)
	cc := NewTCPConn(client)

	go func() {
		cc.Write([]byte("hello"))
	}()

	buf := make([]byte, 5)
	n, err := sc.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("unexpected payload: %q", buf[:n])
	}
	if sc.BytesRead() != 5 {
		t.Fatalf("expected BytesRead=5, got %d", sc.BytesRead())
	}
}

func TestNewTCPConnCloseMarksClosed(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	sc := NewTCPConn(server)
	if sc.IsClosed() {
		t.Fatalf("expected not closed initially")
	}
	if err := sc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !sc.IsClosed() {
		t.Fatalf("expected closed after Close")
	}
}

func TestListenTCPAcceptsConnections(t *testing.T) {
	l, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	dialed := make(chan error, 1)
	go func() {
		conn, err := net.DialTimeout("tcp", l.Addr().String(), 2*time.Second)
		if err != nil {
			dialed <- err
			return
		}
		defer conn.Close()
		dialed <- nil
	}()

	accepted, err := l.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer accepted.Close()

	if err := <-dialed; err != nil {
		t.Fatalf("dial: %v", err)
	}
	if accepted.RemoteAddr() == "" {
		t.Fatalf("expected non-empty remote addr")
	}
}
