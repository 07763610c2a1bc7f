package transport

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestRTMPTRoundTrip(t *testing.T) {
	listener := NewRTMPTListener(nil)
	srv := httptest.NewServer(listener.Handler())
	defer srv.Close()
	defer listener.Close()

	client, err := DialRTMPT(srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	serverConn, err := listener.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer serverConn.Close()

	if _, err := client.Write([]byte("ping")); err != nil {
		t.Fatalf("client write: %v", err)
	}
	if err := client.Flush(); err != nil {
		t.Fatalf("client flush: %v", err)
	}

	buf := make([]byte, 4)
	n, err := serverConn.Read(buf)
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if string(buf[:n]) != "ping" {
		t.Fatalf("unexpected server-side payload: %q", buf[:n])
	}

	if _, err := serverConn.Write([]byte("pong")); err != nil {
		t.Fatalf("server write: %v", err)
	}

	readDone := make(chan struct{})
	var got []byte
	go func() {
		b := make([]byte, 4)
		n, _ := client.Read(b)
		got = b[:n]
		close(readDone)
	}()

	select {
	case <-readDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for client read")
	}
	if string(got) != "pong" {
		t.Fatalf("unexpected client-side payload: %q", got)
	}
}

func TestRTMPTIdent2RejectsSuccessStatus(t *testing.T) {
	listener := NewRTMPTListener(nil)
	srv := httptest.NewServer(listener.Handler())
	defer srv.Close()
	defer listener.Close()

	resp, err := srv.Client().Post(srv.URL+"/fcs/ident2", rtmptContentType, nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 400 {
		t.Fatalf("expected 4xx from ident2, got %d", resp.StatusCode)
	}
}
