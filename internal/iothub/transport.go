package iothub

import (
	"crypto/tls"
	"time"
)

// ConnectOptions carries the MQTT CONNECT parameters for one attempt.
// The password is the current SAS token and changes across attempts
// when the session regenerates a stale token.
type ConnectOptions struct {
	Host      string
	Port      int
	ClientID  string
	Username  string
	Password  string
	TLS       *tls.Config
	KeepAlive time.Duration
}

// Message is one raw inbound MQTT publish, before classification.
type Message struct {
	Topic   string
	Payload []byte
}

// Transport is the minimal MQTT surface the session depends on. The
// production implementation is PahoTransport; tests substitute a fake
// to exercise retry and reconnect behaviour without a broker.
//
// A Transport is owned by exactly one session. SetInbound must be
// called before Connect; the callback may fire from a transport-owned
// goroutine and must not block.
type Transport interface {
	// Connect performs one blocking MQTT CONNECT attempt.
	Connect(opts ConnectOptions) error

	// Publish sends one message at the transport's default QoS,
	// fire-and-forget. No delivery retry happens at this layer.
	Publish(topic string, payload []byte) error

	// Subscribe registers a topic filter. Matching messages are
	// delivered through the inbound callback.
	Subscribe(filter string) error

	// IsConnected reports the live connection state.
	IsConnected() bool

	// Disconnect tears the connection down. Safe to call when already
	// disconnected.
	Disconnect()

	// SetInbound registers the single inbound delivery callback.
	SetInbound(fn func(Message))
}

// ProbeFunc tests TLS reachability of host:port with the given
// configuration, closing the connection on success. Injectable so
// session initialization is testable offline.
type ProbeFunc func(host string, port int, cfg *tls.Config) error

// NowFunc supplies epoch seconds for token-expiry computation. The
// production source is NTP-backed; an error signals sync failure and
// makes the session fall back to a fixed expiry.
type NowFunc func() (int64, error)

// Logger is the logging surface this package emits to. Satisfied by
// *slog.Logger and the logging package's wrapper.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// nopLogger discards everything; used when no logger is configured.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
