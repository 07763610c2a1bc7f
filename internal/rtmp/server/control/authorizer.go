// Package control implements the server's optional control plane: an
// external coordinator that authorizes or denies publish attempts over a
// websocket RPC channel, a JWT-based token for authenticating to it, and a
// Redis pub/sub channel for out-of-band session-kill commands.
//
// None of this is required to run the server stand-alone: every piece
// degrades to a no-op when its corresponding configuration is absent, the
// same way the coordinator connection it's grounded on runs "stand-alone"
// when CONTROL_BASE_URL is unset.
package control

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	messages "github.com/AgustinSRG/go-simple-rpc-message"
	"github.com/gorilla/websocket"
)

// StreamAuthorizer decides whether a publish attempt for (channel, key) from
// userIP may proceed. Implementations may block for the duration of a
// round-trip to an external coordinator.
type StreamAuthorizer interface {
	// Authorize returns whether the attempt is accepted and, when accepted,
	// the stream id the coordinator assigned to the session.
	Authorize(ctx context.Context, channel, key, userIP string) (accepted bool, streamID string, err error)
	// PublishEnded notifies the authorizer that a previously accepted
	// session has finished, so the coordinator can release its bookkeeping.
	PublishEnded(channel, streamID string)
}

// AllowAllAuthorizer accepts every publish attempt and assigns no external
// stream id. It is the default StreamAuthorizer so a server with no
// control-plane URL configured behaves exactly as it did before this
// package existed.
type AllowAllAuthorizer struct{}

func (AllowAllAuthorizer) Authorize(context.Context, string, string, string) (bool, string, error) {
	return true, "", nil
}

func (AllowAllAuthorizer) PublishEnded(string, string) {}

var _ StreamAuthorizer = AllowAllAuthorizer{}

// pendingRequest tracks a publish request awaiting a PUBLISH-ACCEPT or
// PUBLISH-DENY reply from the coordinator.
type pendingRequest struct {
	waiter chan publishResponse
}

type publishResponse struct {
	accepted bool
	streamID string
}

// Killer is implemented by the server so WebsocketAuthorizer can act on a
// STREAM-KILL push from the coordinator without importing the server
// package (which would create an import cycle).
type Killer interface {
	KillPublisher(channel, streamID string)
}

// WebsocketAuthorizer is a StreamAuthorizer backed by a persistent websocket
// RPC connection to a coordinator server. Requests and pushed commands use
// the wire format from github.com/AgustinSRG/go-simple-rpc-message:
// newline-delimited "METHOD\nKey: Value\n..." messages.
type WebsocketAuthorizer struct {
	url      string
	token    string
	killer   Killer
	dialer   *websocket.Dialer
	mu       sync.Mutex
	conn     *websocket.Conn
	nextID   uint64
	pending  map[string]*pendingRequest
	stopCh   chan struct{}
	connOnce sync.Once
}

// NewWebsocketAuthorizer creates an authorizer that connects to
// controlURL (ws:// or wss://) and authenticates with token (normally a JWT
// minted by TokenIssuer). killer receives STREAM-KILL pushes. The
// connection is established lazily and reconnects automatically; call
// Start to begin the connect loop.
func NewWebsocketAuthorizer(controlURL, token string, killer Killer) *WebsocketAuthorizer {
	return &WebsocketAuthorizer{
		url:     controlURL,
		token:   token,
		killer:  killer,
		dialer:  websocket.DefaultDialer,
		pending: make(map[string]*pendingRequest),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the connect-and-reconnect loop in the background. Safe to
// call once; a zero-value url disables the loop entirely (stand-alone
// mode, matching the reference coordinator client).
func (w *WebsocketAuthorizer) Start() {
	if w.url == "" {
		return
	}
	w.connOnce.Do(func() {
		go w.connectLoop()
	})
}

// Stop terminates the connect loop and closes any open connection.
func (w *WebsocketAuthorizer) Stop() {
	close(w.stopCh)
	w.mu.Lock()
	if w.conn != nil {
		w.conn.Close()
	}
	w.mu.Unlock()
}

func (w *WebsocketAuthorizer) connectLoop() {
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}
		if err := w.connectOnce(); err != nil {
			time.Sleep(5 * time.Second)
			continue
		}
		time.Sleep(time.Second)
	}
}

func (w *WebsocketAuthorizer) connectOnce() error {
	u, err := url.Parse(w.url)
	if err != nil {
		return err
	}
	header := map[string][]string{}
	if w.token != "" {
		header["Authorization"] = []string{"Bearer " + w.token}
	}
	conn, _, err := w.dialer.Dial(u.String(), header)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	go w.heartbeatLoop(conn)
	w.readLoop(conn)
	return nil
}

func (w *WebsocketAuthorizer) heartbeatLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		w.mu.Lock()
		active := w.conn == conn
		w.mu.Unlock()
		if !active {
			return
		}
		w.send(messages.RPCMessage{Method: "HEARTBEAT"})
	}
}

func (w *WebsocketAuthorizer) readLoop(conn *websocket.Conn) {
	for {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			w.mu.Lock()
			if w.conn == conn {
				w.conn = nil
			}
			w.mu.Unlock()
			return
		}
		msg := messages.ParseRPCMessage(string(raw))
		w.dispatch(&msg)
	}
}

func (w *WebsocketAuthorizer) dispatch(msg *messages.RPCMessage) {
	switch msg.Method {
	case "PUBLISH-ACCEPT":
		w.resolve(msg.GetParam("Request-Id"), publishResponse{accepted: true, streamID: msg.GetParam("Stream-Id")})
	case "PUBLISH-DENY":
		w.resolve(msg.GetParam("Request-Id"), publishResponse{accepted: false})
	case "STREAM-KILL":
		if w.killer != nil {
			w.killer.KillPublisher(msg.GetParam("Stream-Channel"), msg.GetParam("Stream-Id"))
		}
	}
}

func (w *WebsocketAuthorizer) resolve(requestID string, resp publishResponse) {
	w.mu.Lock()
	req := w.pending[requestID]
	w.mu.Unlock()
	if req == nil {
		return
	}
	req.waiter <- resp
}

func (w *WebsocketAuthorizer) send(msg messages.RPCMessage) bool {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return false
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(msg.Serialize())) == nil
}

func (w *WebsocketAuthorizer) nextRequestID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	return fmt.Sprint(w.nextID)
}

// Authorize requests publish approval from the coordinator and blocks until
// a PUBLISH-ACCEPT/PUBLISH-DENY reply arrives or 20 seconds elapse. When no
// connection is established (stand-alone mode or a dropped socket) it
// accepts unconditionally, matching the reference client's fail-open
// behavior for an unconfigured control plane.
func (w *WebsocketAuthorizer) Authorize(ctx context.Context, channel, key, userIP string) (bool, string, error) {
	if w.url == "" {
		return true, "", nil
	}

	requestID := w.nextRequestID()
	req := &pendingRequest{waiter: make(chan publishResponse, 1)}

	w.mu.Lock()
	w.pending[requestID] = req
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.pending, requestID)
		w.mu.Unlock()
	}()

	msg := messages.RPCMessage{
		Method: "PUBLISH-REQUEST",
		Params: map[string]string{
			"Request-ID":     requestID,
			"Stream-Channel": channel,
			"Stream-Key":     key,
			"User-IP":        userIP,
		},
	}
	if !w.send(msg) {
		return true, "", nil
	}

	timer := time.NewTimer(20 * time.Second)
	defer timer.Stop()
	select {
	case res := <-req.waiter:
		return res.accepted, res.streamID, nil
	case <-timer.C:
		return false, "", fmt.Errorf("control: publish request %s timed out", requestID)
	case <-ctx.Done():
		return false, "", ctx.Err()
	}
}

// PublishEnded notifies the coordinator a session finished.
func (w *WebsocketAuthorizer) PublishEnded(channel, streamID string) {
	if w.url == "" {
		return
	}
	w.send(messages.RPCMessage{
		Method: "PUBLISH-END",
		Params: map[string]string{
			"Stream-Channel": channel,
			"Stream-ID":      streamID,
		},
	})
}

var _ StreamAuthorizer = (*WebsocketAuthorizer)(nil)
