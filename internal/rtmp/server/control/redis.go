package control

import (
	"context"
	"crypto/tls"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCommandReceiverConfig configures the out-of-band session-kill
// channel: an operator publishes "kill-session>channel" or
// "close-stream>channel|streamID" to a Redis channel and every server
// instance subscribed to it acts on the command, without needing a
// websocket coordinator in front of it.
type RedisCommandReceiverConfig struct {
	Host     string
	Port     string
	Password string
	Channel  string
	UseTLS   bool
}

func (c RedisCommandReceiverConfig) addr() string {
	host, port := c.Host, c.Port
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}
	return host + ":" + port
}

// RedisCommandReceiver subscribes to a Redis pub/sub channel and dispatches
// kill-session / close-stream commands to a Killer (normally the server's
// registry). It reconnects with a fixed backoff on any subscribe error,
// matching the reference receiver's indefinite retry loop.
type RedisCommandReceiver struct {
	cfg    RedisCommandReceiverConfig
	killer Killer
	log    *slog.Logger
}

// NewRedisCommandReceiver returns a receiver; Run blocks until ctx is
// cancelled, so callers launch it in its own goroutine.
func NewRedisCommandReceiver(cfg RedisCommandReceiverConfig, killer Killer, log *slog.Logger) *RedisCommandReceiver {
	return &RedisCommandReceiver{cfg: cfg, killer: killer, log: log}
}

// Run subscribes to the configured channel and dispatches commands until
// ctx is cancelled, reconnecting after a 10-second backoff on any error.
func (r *RedisCommandReceiver) Run(ctx context.Context) {
	channel := r.cfg.Channel
	if channel == "" {
		channel = "rtmp_commands"
	}

	opts := &redis.Options{
		Addr:     r.cfg.addr(),
		Password: r.cfg.Password,
	}
	if r.cfg.UseTLS {
		opts.TLSConfig = &tls.Config{}
	}
	client := redis.NewClient(opts)
	defer client.Close()

	r.log.Info("redis command receiver starting", "channel", channel, "addr", r.cfg.addr())

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sub := client.Subscribe(ctx, channel)
		r.receiveLoop(ctx, sub)
		sub.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Second):
		}
	}
}

func (r *RedisCommandReceiver) receiveLoop(ctx context.Context, sub *redis.PubSub) {
	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			r.log.Warn("redis command receiver lost connection", "error", err)
			return
		}
		r.dispatch(msg.Payload)
	}
}

// dispatch parses a "METHOD>arg1|arg2|..." command and applies it. Malformed
// or unknown commands are logged and ignored, never fatal to the receiver
// loop.
func (r *RedisCommandReceiver) dispatch(cmd string) {
	parts := strings.SplitN(cmd, ">", 2)
	if len(parts) != 2 {
		r.log.Warn("malformed redis command", "command", cmd)
		return
	}
	args := strings.Split(parts[1], "|")

	switch parts[0] {
	case "kill-session":
		if len(args) < 1 || args[0] == "" {
			r.log.Warn("malformed kill-session command", "command", cmd)
			return
		}
		r.killer.KillPublisher(args[0], "")
	case "close-stream":
		if len(args) < 2 {
			r.log.Warn("malformed close-stream command", "command", cmd)
			return
		}
		r.killer.KillPublisher(args[0], args[1])
	default:
		r.log.Warn("unknown redis command", "method", parts[0])
	}
}
