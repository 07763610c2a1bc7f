package transport

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// rtmptContentType and rtmptUserAgent are the fixed headers every RTMPT
// request carries, per spec.md §6.
const (
	rtmptContentType = "application/x-fcs"
	rtmptUserAgent   = "Shockwave Flash"
)

// RTMPTClientConn is the client side of the RTMPT (HTTP long-poll tunnel)
// pseudo-stream. It emulates a byte stream over a sequence of HTTP POSTs:
// Write buffers bytes locally; Read blocks until a /send or /idle response
// delivers inbound bytes. The *http.Client used for every request is
// injected by the caller, matching the Non-goals' "HTTP client used for
// RTMPT tunneling is an external collaborator" — this package never
// constructs its own.
type RTMPTClientConn struct {
	client   *http.Client
	baseURL  string
	sid      string
	seq      uint64
	mu       sync.Mutex
	readBuf  bytes.Buffer
	writeBuf bytes.Buffer
	closed   atomic.Bool
	bytesIn  uint64
	bytesOut uint64
}

// DialRTMPT establishes an RTMPT session against baseURL (e.g.
// "http://host:80"): sends the /fcs/ident2 probe, then /open/1 to obtain a
// session id.
func DialRTMPT(client *http.Client, baseURL string) (*RTMPTClientConn, error) {
	if client == nil {
		client = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	c := &RTMPTClientConn{client: client, baseURL: baseURL}

	if err := c.identify(); err != nil {
		return nil, err
	}
	sid, err := c.open()
	if err != nil {
		return nil, err
	}
	c.sid = sid
	c.seq = 1
	return c, nil
}

func (c *RTMPTClientConn) post(path string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transport.rtmpt: build request: %w", err)
	}
	req.Header.Set("Content-Type", rtmptContentType)
	req.Header.Set("User-Agent", rtmptUserAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport.rtmpt: %s: %w", path, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transport.rtmpt: %s: read response: %w", path, err)
	}
	return respBody, nil
}

// identify sends the /fcs/ident2 probe; a 2xx or 5xx response is a protocol
// error per spec.md §6 (a genuine RTMPT endpoint always answers with 4xx
// here, since the probe body is deliberately malformed).
func (c *RTMPTClientConn) identify() error {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/fcs/ident2", bytes.NewReader([]byte{0x00}))
	if err != nil {
		return fmt.Errorf("transport.rtmpt: build ident2 request: %w", err)
	}
	req.Header.Set("Content-Type", rtmptContentType)
	req.Header.Set("User-Agent", rtmptUserAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport.rtmpt: ident2: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 400 || resp.StatusCode >= 500 {
		return fmt.Errorf("transport.rtmpt: ident2: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *RTMPTClientConn) open() (string, error) {
	body, err := c.post("/open/1", nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// send ships the accumulated write buffer (possibly empty, in which case it
// behaves like an idle poll) and appends the response body, minus its
// leading polling-interval-hint byte, to the read buffer.
func (c *RTMPTClientConn) send(body []byte) error {
	seq := atomic.AddUint64(&c.seq, 1) - 1
	path := fmt.Sprintf("/send/%s/%d", c.sid, seq)
	if len(body) == 0 {
		path = fmt.Sprintf("/idle/%s/%d", c.sid, seq)
	}
	resp, err := c.post(path, body)
	if err != nil {
		return err
	}
	c.bytesOut += uint64(len(body))
	if len(resp) > 1 {
		c.readBuf.Write(resp[1:])
		c.bytesIn += uint64(len(resp) - 1)
	}
	return nil
}

func (c *RTMPTClientConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return 0, fmt.Errorf("transport.rtmpt: read on closed session")
	}
	for c.readBuf.Len() == 0 {
		if err := c.send(nil); err != nil {
			return 0, err
		}
		if c.readBuf.Len() == 0 {
			time.Sleep(10 * time.Millisecond)
		}
	}
	return c.readBuf.Read(p)
}

func (c *RTMPTClientConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return 0, fmt.Errorf("transport.rtmpt: write on closed session")
	}
	return c.writeBuf.Write(p)
}

// Flush ships any buffered outbound bytes immediately via /send.
func (c *RTMPTClientConn) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeBuf.Len() == 0 {
		return nil
	}
	body := append([]byte(nil), c.writeBuf.Bytes()...)
	c.writeBuf.Reset()
	return c.send(body)
}

func (c *RTMPTClientConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	_, err := c.post("/close/"+c.sid, nil)
	return err
}

func (c *RTMPTClientConn) IsClosed() bool { return c.closed.Load() }

func (c *RTMPTClientConn) BytesRead() uint64 { return c.bytesIn }

func (c *RTMPTClientConn) BytesWritten() uint64 { return c.bytesOut }

func (c *RTMPTClientConn) RemoteAddr() string { return c.baseURL }

// SetDeadline is a no-op: per-request timeouts are the injected
// *http.Client's responsibility (its Timeout field), not this adapter's.
func (c *RTMPTClientConn) SetDeadline(time.Time) error { return nil }

var _ Conn = (*RTMPTClientConn)(nil)

// parseSeq is a small helper used by the server-side handler to parse the
// <seq> path segment; kept here since both sides share the URL shape.
func parseSeq(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
