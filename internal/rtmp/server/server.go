package server

// RTMP Server Listener (Task T051)
// --------------------------------
// Provides a minimal TCP listener + connection manager integrating the
// existing handshake + control burst + connection lifecycle implemented in
// the conn package. Command dispatch is wired onto each accepted connection
// by attachCommandHandling (command_integration.go). This provides:
//   * Listen on configured address (default :1935)
//   * Accept loop spawning a goroutine per connection (via conn.Accept)
//   * Track active connections in a concurrent-safe map
//   * Graceful shutdown: stop accepting, close all connections, wait
//   * Configuration options (chunk/window sizes, recording placeholders)
//   * Exposed methods for tests: Start, Stop, Addr, ConnectionCount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alxayo/go-rtmp/internal/logger"
	"github.com/alxayo/go-rtmp/internal/rtmp/client"
	iconn "github.com/alxayo/go-rtmp/internal/rtmp/conn"
	"github.com/alxayo/go-rtmp/internal/rtmp/relay"
	"github.com/alxayo/go-rtmp/internal/rtmp/server/control"
	"github.com/alxayo/go-rtmp/internal/rtmp/server/hooks"
	"github.com/alxayo/go-rtmp/internal/rtmp/transport"
)

// Config holds server configuration knobs. Future tasks may extend with
// validation / functional options. For now we keep a plain struct.
type Config struct {
	ListenAddr        string
	ChunkSize         uint32 // not read: the control burst always announces a 4096-byte chunk size
	WindowAckSize     uint32 // not read: the control burst always advertises a 2,500,000-byte window
	RecordAll         bool
	RecordDir         string
	LogLevel          string
	RelayDestinations []string // NEW: List of destination URLs for relay
	// Hook configuration (all optional for backward compatibility)
	HookScripts     []string // event_type=script_path pairs
	HookWebhooks    []string // event_type=webhook_url pairs
	HookStdioFormat string   // "json", "env", or "" (disabled)
	HookTimeout     string   // timeout duration
	HookConcurrency int      // max concurrent hook executions

	// Transport selects the listener implementation: "tcp" (default),
	// "tls", or "rtmpt". TLS and RTMPT share the same chunk/handshake/
	// command-dispatch stack via the transport package's net.Conn adapter.
	Transport        string
	TLSCertPath      string
	TLSKeyPath       string
	TLSReloadSeconds int

	// Control-plane: an external coordinator that authorizes publishes
	// over a websocket RPC channel. Empty ControlURL runs stand-alone
	// (every publish is accepted locally).
	ControlURL    string
	ControlSecret string

	// Redis out-of-band kill-session / close-stream command channel.
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisChannel  string
	RedisTLS      bool
}

// applyDefaults fills zero values with sensible defaults.
func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":1935"
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 4096
	} // matches control burst constant
	if c.WindowAckSize == 0 {
		c.WindowAckSize = 2_500_000
	} // matches control burst
	if c.RecordDir == "" {
		c.RecordDir = "recordings"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Transport == "" {
		c.Transport = "tcp"
	}
	if c.TLSReloadSeconds == 0 {
		c.TLSReloadSeconds = 300
	}
}

// Server encapsulates listener + active connection tracking.
type Server struct {
	cfg                Config
	l                  net.Listener
	log                *slog.Logger
	reg                *Registry
	destinationManager *relay.DestinationManager // NEW: Multi-destination relay manager
	hookManager        *hooks.HookManager        // NEW: Event hook manager
	authorizer         control.StreamAuthorizer
	wsAuthorizer       *control.WebsocketAuthorizer // non-nil only when ControlURL is set; needs Stop on shutdown
	redisCancel        context.CancelFunc           // non-nil only when Redis command receiver is running

	mu          sync.RWMutex
	conns       map[string]*iconn.Connection
	acceptingWg sync.WaitGroup // waits for accept loop exit
	closing     bool
}

// New creates a new, unstarted Server instance.
func New(cfg Config) *Server {
	cfg.applyDefaults()

	// Initialize destination manager if destinations are provided
	var destMgr *relay.DestinationManager
	if len(cfg.RelayDestinations) > 0 {
		var err error
		// Create a client factory that wraps the client.New function
		clientFactory := func(url string) (relay.RTMPClient, error) {
			return client.New(url)
		}
		destMgr, err = relay.NewDestinationManager(cfg.RelayDestinations, logger.Logger(), clientFactory)
		if err != nil {
			logger.Logger().Error("Failed to initialize destination manager", "error", err)
			// Continue without relay functionality
		}
	}

	// Initialize hook manager (always safe, even with empty config)
	hookMgr := initializeHookManager(cfg, logger.Logger())

	s := &Server{
		cfg:                cfg,
		reg:                NewRegistry(),
		conns:              make(map[string]*iconn.Connection),
		log:                logger.Logger().With("component", "rtmp_server"),
		destinationManager: destMgr,
		hookManager:        hookMgr,
		authorizer:         control.AllowAllAuthorizer{},
	}

	if cfg.ControlURL != "" {
		issuer := control.NewHMACTokenIssuer(cfg.ControlSecret)
		token, err := issuer.IssueControlToken()
		if err != nil {
			s.log.Error("failed to mint control-plane token, continuing unauthenticated", "error", err)
		}
		ws := control.NewWebsocketAuthorizer(cfg.ControlURL, token, s.reg)
		ws.Start()
		s.wsAuthorizer = ws
		s.authorizer = ws
	}

	return s
}

// Start begins listening and launches the accept loop. It's safe to call
// only once; repeated calls return an error.
func (s *Server) Start() error {
	if s == nil {
		return errors.New("nil server")
	}
	s.mu.Lock()
	if s.l != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	ln, err := s.listen()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.l = ln
	s.mu.Unlock()

	s.log.Info("RTMP server listening", "addr", ln.Addr().String(), "transport", s.cfg.Transport)
	s.acceptingWg.Add(1)
	go s.acceptLoop()

	if s.cfg.RedisEnabled {
		ctx, cancel := context.WithCancel(context.Background())
		s.redisCancel = cancel
		receiver := control.NewRedisCommandReceiver(control.RedisCommandReceiverConfig{
			Host:     s.cfg.RedisHost,
			Port:     s.cfg.RedisPort,
			Password: s.cfg.RedisPassword,
			Channel:  s.cfg.RedisChannel,
			UseTLS:   s.cfg.RedisTLS,
		}, s.reg, s.log.With("component", "redis_commands"))
		go receiver.Run(ctx)
	}

	return nil
}

// listen opens the configured transport's listener and wraps it as a
// net.Listener (via transport.NetConn for RTMPT's pseudo-connections) so
// acceptLoop's handshake/chunk/command stack never needs to know which
// transport handed it a byte stream.
func (s *Server) listen() (net.Listener, error) {
	switch s.cfg.Transport {
	case "", "tcp":
		ln, err := net.Listen("tcp", s.cfg.ListenAddr)
		if err != nil {
			return nil, fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
		}
		return ln, nil
	case "tls":
		loader, err := transport.NewFileCertificateLoader(s.cfg.TLSCertPath, s.cfg.TLSKeyPath, s.cfg.TLSReloadSeconds)
		if err != nil {
			return nil, fmt.Errorf("tls cert loader: %w", err)
		}
		tl, err := transport.ListenTLS(s.cfg.ListenAddr, loader)
		if err != nil {
			return nil, fmt.Errorf("listen tls %s: %w", s.cfg.ListenAddr, err)
		}
		return &transportListenerAdapter{inner: tl}, nil
	case "rtmpt":
		addr, err := net.ResolveTCPAddr("tcp", s.cfg.ListenAddr)
		if err != nil {
			addr = &net.TCPAddr{}
		}
		rl := transport.NewRTMPTListener(addr)
		httpSrv := &http.Server{Addr: s.cfg.ListenAddr, Handler: rl.Handler()}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.log.Error("rtmpt http server error", "error", err)
			}
		}()
		return &transportListenerAdapter{inner: rl, httpSrv: httpSrv}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", s.cfg.Transport)
	}
}

// transportListenerAdapter adapts a transport.Listener to net.Listener so
// conn.Accept (built against net.Listener/net.Conn) runs unchanged over
// TLS and RTMPT. httpSrv is non-nil only for RTMPT, whose "listener" is
// really an *http.Server mux; Close tears that down too.
type transportListenerAdapter struct {
	inner   transport.Listener
	httpSrv *http.Server
}

func (a *transportListenerAdapter) Accept() (net.Conn, error) {
	c, err := a.inner.Accept()
	if err != nil {
		return nil, err
	}
	return transport.NetConn(c), nil
}

func (a *transportListenerAdapter) Close() error {
	err := a.inner.Close()
	if a.httpSrv != nil {
		_ = a.httpSrv.Close()
	}
	return err
}

func (a *transportListenerAdapter) Addr() net.Addr { return a.inner.Addr() }

// acceptLoop runs until listener close. Each successful accept performs the
// RTMP handshake via conn.Accept which internally sends the control burst.
func (s *Server) acceptLoop() {
	defer s.acceptingWg.Done()
	for {
		s.mu.RLock()
		l := s.l
		s.mu.RUnlock()
		if l == nil {
			return
		}
		raw, err := l.Accept()
		if err != nil {
			// If we are shutting down, Accept will return an error (use closing flag to suppress noise).
			s.mu.RLock()
			closing := s.closing
			s.mu.RUnlock()
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if closing || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept error", "error", err)
			return
		}
		// Handshake + control burst integration lives in conn.Accept.
		// We temporarily wrap the raw listener to reuse existing function.
		// Trick: create a one-off fake listener returning this raw conn.
		single := &singleConnListener{conn: raw}
		c, err := iconn.Accept(single)
		if err != nil { // handshake failure already logged; continue accepting.
			continue
		}
		s.mu.Lock()
		s.conns[c.ID()] = c
		s.mu.Unlock()
		s.log.Info("connection registered", "conn_id", c.ID(), "remote", raw.RemoteAddr().String())

		// Trigger connection accept hook event. Only plain TCP/TLS listeners
		// hand back a *net.TCPAddr; RTMPT sessions carry their remote address
		// as an opaque string (see transport.strAddr), so fall back to
		// whatever String() reports rather than assuming the concrete type.
		eventData := map[string]interface{}{
			"client_addr": raw.RemoteAddr().String(),
			"server_addr": s.l.Addr().String(),
		}
		if tcpAddr, ok := raw.RemoteAddr().(*net.TCPAddr); ok {
			eventData["client_ip"] = tcpAddr.IP.String()
			eventData["client_port"] = tcpAddr.Port
		}
		if tcpAddr, ok := s.l.Addr().(*net.TCPAddr); ok {
			eventData["server_ip"] = tcpAddr.IP.String()
			eventData["server_port"] = tcpAddr.Port
		}
		s.triggerHookEvent(hooks.EventConnectionAccept, c.ID(), "", eventData)

		// Wire command handling so real clients (OBS/ffmpeg) can complete
		// connect/createStream/publish. (Incremental integration step.)
		attachCommandHandling(c, s.reg, &s.cfg, s.log, s.destinationManager, s.authorizer)
		// Start readLoop AFTER message handler is attached to avoid race condition
		c.Start()
	}
}

// Stop gracefully shuts down the server: stops accepting new connections,
// closes all active ones, waits for accept loop completion.
func (s *Server) Stop() error {
	if s == nil {
		return errors.New("nil server")
	}
	s.mu.Lock()
	if s.l == nil {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	l := s.l
	s.l = nil
	s.mu.Unlock()
	_ = l.Close()

	// Close all connections and clean up recorders.
	s.mu.RLock()
	for id, c := range s.conns {
		// Trigger connection close event before closing
		s.triggerHookEvent(hooks.EventConnectionClose, c.ID(), "", map[string]interface{}{
			"reason": "server_shutdown",
		})
		_ = c.Close()
		delete(s.conns, id)
	}
	s.mu.RUnlock()

	// Clean up all active recorders
	s.cleanupAllRecorders()

	// Close destination manager
	if s.destinationManager != nil {
		if err := s.destinationManager.Close(); err != nil {
			s.log.Error("Error closing destination manager", "error", err)
		}
	}

	if s.wsAuthorizer != nil {
		s.wsAuthorizer.Stop()
	}
	if s.redisCancel != nil {
		s.redisCancel()
	}

	// Close hook manager
	if s.hookManager != nil {
		if err := s.hookManager.Close(); err != nil {
			s.log.Error("Error closing hook manager", "error", err)
		}
	}

	s.acceptingWg.Wait()
	s.log.Info("RTMP server stopped")
	return nil
}

// Addr returns the bound listener address (nil if not started).
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.l == nil {
		return nil
	}
	return s.l.Addr()
}

// ConnectionCount returns current number of tracked active connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// singleConnListener is a tiny adapter implementing net.Listener for a single
// pre-accepted net.Conn. It returns the conn once then permanently errors.
type singleConnListener struct{ conn net.Conn }

func (s *singleConnListener) Accept() (net.Conn, error) {
	if s.conn == nil {
		return nil, errors.New("no conn")
	}
	c := s.conn
	s.conn = nil
	return c, nil
}
func (s *singleConnListener) Close() error {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	return nil
}
func (s *singleConnListener) Addr() net.Addr {
	if s.conn != nil {
		return s.conn.LocalAddr()
	}
	return &net.TCPAddr{}
}

// cleanupAllRecorders closes all active recorders in the registry.
// This is called during server shutdown to ensure all FLV files are properly closed.
func (s *Server) cleanupAllRecorders() {
	if s == nil || s.reg == nil {
		return
	}

	s.reg.mu.RLock()
	streams := make([]*Stream, 0, len(s.reg.streams))
	for _, stream := range s.reg.streams {
		streams = append(streams, stream)
	}
	s.reg.mu.RUnlock()

	for _, stream := range streams {
		if stream == nil {
			continue
		}

		stream.mu.Lock()
		if stream.Recorder != nil {
			if err := stream.Recorder.Close(); err != nil {
				s.log.Error("recorder close error", "error", err, "stream_key", stream.Key)
			} else {
				s.log.Info("recorder closed", "stream_key", stream.Key)
			}
			stream.Recorder = nil
		}
		stream.mu.Unlock()
	}
}

// initializeHookManager creates and configures the hook manager based on server config
func initializeHookManager(cfg Config, logger *slog.Logger) *hooks.HookManager {
	// Create hook config from server config
	hookConfig := hooks.HookConfig{
		Timeout:     cfg.HookTimeout,
		Concurrency: cfg.HookConcurrency,
		StdioFormat: cfg.HookStdioFormat,
	}

	// Apply defaults if not specified
	if hookConfig.Timeout == "" {
		hookConfig.Timeout = "30s"
	}
	if hookConfig.Concurrency == 0 {
		hookConfig.Concurrency = 10
	}

	// Create hook manager
	hookManager := hooks.NewHookManager(hookConfig, logger)

	// Register shell hooks from configuration
	if err := registerShellHooks(hookManager, cfg.HookScripts, logger); err != nil {
		logger.Error("Failed to register shell hooks", "error", err)
	}

	// Register webhook hooks from configuration
	if err := registerWebhookHooks(hookManager, cfg.HookWebhooks, logger); err != nil {
		logger.Error("Failed to register webhook hooks", "error", err)
	}

	return hookManager
}

// triggerHookEvent is a helper method to trigger hook events safely
func (s *Server) triggerHookEvent(eventType hooks.EventType, connID, streamKey string, data map[string]interface{}) {
	if s == nil || s.hookManager == nil {
		return // Hooks disabled or server not initialized
	}

	event := hooks.NewEvent(eventType).
		WithConnID(connID).
		WithStreamKey(streamKey)

	// Add data fields if provided
	for key, value := range data {
		event.WithData(key, value)
	}

	s.hookManager.TriggerEvent(context.Background(), *event)
}

// registerShellHooks parses and registers shell hooks from configuration
func registerShellHooks(hookManager *hooks.HookManager, scripts []string, logger *slog.Logger) error {
	for i, script := range scripts {
		parts := strings.SplitN(script, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid shell hook format: %s", script)
		}

		eventType := hooks.EventType(parts[0])
		scriptPath := parts[1]

		// Create shell hook with a fixed 30s timeout (HookTimeout is not applied)
		shellHook := hooks.NewShellHook(
			fmt.Sprintf("shell_%d", i),
			scriptPath,
			30*time.Second, // fixed timeout enforced by the shell hook itself
		)

		if err := hookManager.RegisterHook(eventType, shellHook); err != nil {
			return fmt.Errorf("failed to register shell hook %s: %w", script, err)
		}

		logger.Info("Registered shell hook", "event_type", eventType, "script_path", scriptPath)
	}

	return nil
}

// registerWebhookHooks parses and registers webhook hooks from configuration
func registerWebhookHooks(hookManager *hooks.HookManager, webhooks []string, logger *slog.Logger) error {
	for i, webhook := range webhooks {
		parts := strings.SplitN(webhook, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid webhook hook format: %s", webhook)
		}

		eventType := hooks.EventType(parts[0])
		webhookURL := parts[1]

		// Create webhook hook with default timeout
		webhookHook := hooks.NewWebhookHook(
			fmt.Sprintf("webhook_%d", i),
			webhookURL,
			30*time.Second, // Default timeout
		)

		if err := hookManager.RegisterHook(eventType, webhookHook); err != nil {
			return fmt.Errorf("failed to register webhook hook %s: %w", webhook, err)
		}

		logger.Info("Registered webhook hook", "event_type", eventType, "webhook_url", webhookURL)
	}

	return nil
}
