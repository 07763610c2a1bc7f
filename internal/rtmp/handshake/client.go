package handshake

// Client-side RTMP handshake finite state machine.
// Implements: Send C0+C1 -> Read S0+S1 -> Send C2 -> (optional) Read S2 -> Complete.
// Mirrors server.go patterns for deadlines, logging, and error wrapping.
//
// The client sends a simple C1 (timestamp + zero + random, no digest). A
// server whose S1 carries a valid Adobe digest is answered with an HMAC
// challenge-response C2 (complex); a plain, undigested S1 is treated as a
// simple-handshake peer and answered with a byte-echo C2.

import (
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"time"

	rerrors "github.com/alxayo/go-rtmp/internal/errors"
	"github.com/alxayo/go-rtmp/internal/logger"
)

const (
	clientReadTimeout  = 5 * time.Second
	clientWriteTimeout = 5 * time.Second
)

// ClientHandshake performs the RTMP handshake as a client. It emits a simple
// C1 and answers in the form the server's S1 uses: a complex (digest)
// challenge response when S1 carries a recognizable digest, a byte-echo of
// S1 otherwise. On success the
// connection is positioned immediately after the S2 read and ready for
// chunk stream negotiation.
func ClientHandshake(conn net.Conn) error {
	if conn == nil {
		return rerrors.NewHandshakeError("init", fmt.Errorf("nil conn"))
	}
	log := logger.Logger().With("phase", "handshake", "side", "client")

	// Construct C1: timestamp(4) + zero(4) + random(1528).
	var c1 [PacketSize]byte
	ts := uint32(time.Now().UnixMilli() & 0xFFFFFFFF)
	c1[0] = byte(ts >> 24)
	c1[1] = byte(ts >> 16)
	c1[2] = byte(ts >> 8)
	c1[3] = byte(ts)
	if _, err := rand.Read(c1[randomFieldOffset:]); err != nil {
		return rerrors.NewHandshakeError("rand C1", err)
	}

	// Send C0+C1 atomically.
	c0c1 := make([]byte, 1+PacketSize)
	c0c1[0] = Version
	copy(c0c1[1:], c1[:])
	if err := setWriteDeadline(conn, clientWriteTimeout); err != nil {
		return err
	}
	if err := writeFull(conn, c0c1); err != nil {
		if isTimeoutErr(err) {
			return rerrors.NewTimeoutError("write C0+C1", clientWriteTimeout, err)
		}
		return rerrors.NewHandshakeError("write C0+C1", err)
	}

	// Read S0+S1 (1+1536).
	if err := setReadDeadline(conn, clientReadTimeout); err != nil {
		return err
	}
	s0s1 := make([]byte, 1+PacketSize)
	if _, err := io.ReadFull(conn, s0s1); err != nil {
		if isTimeoutErr(err) {
			return rerrors.NewTimeoutError("read S0+S1", clientReadTimeout, err)
		}
		return rerrors.NewHandshakeError("read S0+S1", err)
	}
	if s0s1[0] != Version {
		return rerrors.NewHandshakeError("validate S0", fmt.Errorf("unsupported version 0x%02x", s0s1[0]))
	}
	s1 := s0s1[1:]

	serverScheme := detectServerScheme(s1)
	complex := serverScheme != schemeNone
	if complex {
		log = log.With("handshake_mode", "complex")
	} else {
		log = log.With("handshake_mode", "simple")
	}

	// Prepare C2: HMAC challenge response for complex mode, byte-echo of S1
	// for simple mode.
	var c2 []byte
	if complex {
		random := make([]byte, sigSize-digestLen)
		if _, err := rand.Read(random); err != nil {
			return rerrors.NewHandshakeError("rand C2", err)
		}
		c2 = buildComplexC2(serverScheme, s1, random)
	} else {
		c2 = make([]byte, PacketSize)
		copy(c2, s1)
	}

	if err := setWriteDeadline(conn, clientWriteTimeout); err != nil {
		return err
	}
	if err := writeFull(conn, c2); err != nil {
		if isTimeoutErr(err) {
			return rerrors.NewTimeoutError("write C2", clientWriteTimeout, err)
		}
		return rerrors.NewHandshakeError("write C2", err)
	}

	// Read S2 and, for simple mode only, verify it echoes our C1.
	if err := setReadDeadline(conn, clientReadTimeout); err != nil {
		return err
	}
	s2 := make([]byte, PacketSize)
	if _, err := io.ReadFull(conn, s2); err != nil {
		if isTimeoutErr(err) {
			return rerrors.NewTimeoutError("read S2", clientReadTimeout, err)
		}
		return rerrors.NewHandshakeError("read S2", err)
	}
	if !complex && !bytesEqual(s2, c1[:]) {
		log.Warn("S2 echo mismatch", "expected_echo_len", len(c1))
	}

	// Clear deadlines after successful handshake so subsequent chunk operations
	// can operate without timeout constraints. This prevents spurious "i/o timeout"
	// errors during media streaming when connection is used for extended periods.
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		log.Warn("Failed to clear read deadline", "error", err)
	}
	if err := conn.SetWriteDeadline(time.Time{}); err != nil {
		log.Warn("Failed to clear write deadline", "error", err)
	}

	log.Info("Handshake completed", "c1_ts", ts, "complex", complex)
	return nil
}
