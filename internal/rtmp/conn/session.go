package conn

// SessionState represents the lifecycle state of an RTMP session.
// The progression follows the spec/data-model:
//   Uninitialized → Connected → StreamCreated → Publishing/Playing
// For this task we model Publishing and Playing distinctly but the
// transition mechanics (publish vs play command) will be handled by
// higher RPC/command layers – here we just provide helpers.
type SessionState uint8

const (
	SessionStateUninitialized SessionState = iota
	SessionStateConnected
	SessionStateStreamCreated
	SessionStatePublishing
	SessionStatePlaying
)

// StreamIDProvider allocates RTMP message stream IDs for createStream
// responses. Message stream ID 0 is reserved for the control/connection
// channel; a provider must never hand that value out. The default provider
// assigns 1, 2, 3, ... in order; a server wanting to reuse IDs released by
// closed streams (rather than growing monotonically forever) can supply its
// own.
type StreamIDProvider interface {
	NextStreamID() uint32
}

// sequentialStreamIDProvider is the default StreamIDProvider: a simple
// per-session counter starting at 1.
type sequentialStreamIDProvider struct {
	next uint32
}

func (p *sequentialStreamIDProvider) NextStreamID() uint32 {
	if p.next == 0 {
		p.next = 1
	}
	id := p.next
	p.next++
	return id
}

// Session holds per-connection RTMP session metadata established
// after the handshake and connect command. See data-model.md.
// Concurrency: mutated only by the command handling goroutine; no locks
// required. transactionID uses a simple increment method – if future
// parallel command processing is added we can switch to atomic.
type Session struct {
	app            string
	tcUrl          string
	flashVer       string
	objectEncoding uint8

	transactionID uint32 // starts at 1 (per data model)
	streamID      uint32 // allocated by createStream (starts at 0 until set)
	streamKey     string // app/streamName once publish/play received
	streamIDs     StreamIDProvider

	state SessionState
}

// NewSession creates a new Session in Uninitialized state, allocating stream
// IDs with the default sequential provider.
func NewSession() *Session {
	return NewSessionWithStreamIDProvider(&sequentialStreamIDProvider{})
}

// NewSessionWithStreamIDProvider creates a new Session whose createStream
// responses are allocated by the given provider, letting a server reuse IDs
// across the lifetime of a connection instead of growing them monotonically.
func NewSessionWithStreamIDProvider(p StreamIDProvider) *Session {
	if p == nil {
		p = &sequentialStreamIDProvider{}
	}
	return &Session{transactionID: 1, state: SessionStateUninitialized, streamIDs: p}
}

// SetConnectInfo sets fields derived from the "connect" command and
// moves the session into Connected state.
func (s *Session) SetConnectInfo(app, tcUrl, flashVer string, objectEncoding uint8) {
	s.app = app
	s.tcUrl = tcUrl
	s.flashVer = flashVer
	s.objectEncoding = objectEncoding
	if s.state == SessionStateUninitialized {
		s.state = SessionStateConnected
	}
}

// NextTransactionID increments and returns the next transaction id.
// Starts from 1 so the first call returns 2. This mirrors common RTMP
// client behavior (FFmpeg/OBS) where the connect command uses an id
// of 1 and responses increment from there.
func (s *Session) NextTransactionID() uint32 {
	s.transactionID++
	return s.transactionID
}

// AllocateStreamID asks the session's StreamIDProvider for the next message
// stream ID. Most RTMP sessions only ever allocate a single stream, but the
// provider indirection lets a server assign IDs from a pool shared across
// connections (e.g. to cap concurrent streams) instead of a bare counter.
// Returns the allocated stream id.
func (s *Session) AllocateStreamID() uint32 {
	if s.streamIDs == nil {
		s.streamIDs = &sequentialStreamIDProvider{}
	}
	s.streamID = s.streamIDs.NextStreamID()
	if s.state == SessionStateConnected {
		s.state = SessionStateStreamCreated
	}
	return s.streamID
}

// SetStreamKey composes and stores the fully-qualified stream key
// using the application name and provided streamName. Returns the
// constructed key. The higher-level publish/play handlers will set
// the appropriate final state (Publishing or Playing); we only set
// Publishing as a neutral placeholder if not already set.
func (s *Session) SetStreamKey(app, streamName string) string {
	// Prefer explicit app param (may match s.app); do not override if empty.
	if app != "" {
		s.app = app
	}
	s.streamKey = s.app + "/" + streamName
	// If stream was created but role not yet specified, mark as Publishing placeholder.
	if s.state == SessionStateStreamCreated {
		s.state = SessionStatePublishing
	}
	return s.streamKey
}

// Accessor methods (read-only) ------------------------------------------------

func (s *Session) App() string           { return s.app }
func (s *Session) TcUrl() string         { return s.tcUrl }
func (s *Session) FlashVer() string      { return s.flashVer }
func (s *Session) ObjectEncoding() uint8 { return s.objectEncoding }
func (s *Session) TransactionID() uint32 { return s.transactionID }
func (s *Session) StreamID() uint32      { return s.streamID }
func (s *Session) StreamKey() string     { return s.streamKey }
func (s *Session) State() SessionState   { return s.state }
