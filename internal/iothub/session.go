package iothub

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"
)

// Session defaults. Each is overridable through SessionConfig.
const (
	// DefaultAPIVersion is the hub REST/MQTT api-version the username
	// advertises.
	DefaultAPIVersion = "2021-04-12"

	// DefaultPort is the MQTT-over-TLS port.
	DefaultPort = 8883

	// DefaultConnectAttempts bounds one connect/reconnect sequence.
	DefaultConnectAttempts = 5

	// DefaultConnectRetryDelay is the fixed inter-attempt delay.
	DefaultConnectRetryDelay = 3 * time.Second

	// DefaultTokenTTL is the SAS token lifetime.
	DefaultTokenTTL = time.Hour

	// DefaultRenewalMargin is how close to expiry a token may be before
	// it is regenerated instead of reused.
	DefaultRenewalMargin = 5 * time.Minute

	// DefaultKeepAlive is the MQTT keepalive interval.
	DefaultKeepAlive = 60 * time.Second

	// fallbackExpiry is the fixed token expiry used when the time
	// source cannot sync (matches the device fleet's provisioning
	// horizon: 2026-02-03T00:00:00Z).
	fallbackExpiry = 1738540800

	// inboundQueueDepth bounds messages buffered between transport
	// delivery and the next Loop tick. Overflow drops the newest
	// message with a log line.
	inboundQueueDepth = 64
)

// SessionState is the full lifecycle of a session.
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateInitializing
	StateReady
	StateConnecting
	StateConnected
	StateDisconnected
)

// String returns a short name for logging.
func (s SessionState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "uninitialized"
	}
}

// ConnectionState is the coarse three-value connection view exposed to
// collaborators.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

// String returns a short name for logging.
func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// SessionConfig tunes session behaviour. Zero values take the package
// defaults; see the Default* constants.
type SessionConfig struct {
	APIVersion        string
	Port              int
	TokenTTL          time.Duration
	RenewalMargin     time.Duration
	ConnectAttempts   int
	ConnectRetryDelay time.Duration
	KeepAlive         time.Duration

	// RootCAs is the pool the TLS probe and connection validate
	// against. Nil uses the system roots.
	RootCAs *x509.CertPool

	// AllowInsecureFallback permits falling back to an unvalidated TLS
	// connection when certificate validation fails during Init. This
	// weakens the trust guarantee and exists for field diagnostics;
	// hardened builds disable it.
	AllowInsecureFallback bool

	// DisableReconnectInLoop stops Loop from running the bounded
	// reconnect sequence inline on detected disconnection. Callers that
	// need bounded tick latency set this and invoke Reconnect on their
	// own schedule.
	DisableReconnectInLoop bool
}

// withDefaults fills unset fields.
func (c SessionConfig) withDefaults() SessionConfig {
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = DefaultTokenTTL
	}
	if c.RenewalMargin == 0 {
		c.RenewalMargin = DefaultRenewalMargin
	}
	if c.ConnectAttempts == 0 {
		c.ConnectAttempts = DefaultConnectAttempts
	}
	if c.ConnectRetryDelay == 0 {
		c.ConnectRetryDelay = DefaultConnectRetryDelay
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = DefaultKeepAlive
	}
	return c
}

// Session owns the MQTT connect/reconnect/publish/subscribe lifecycle
// against one hub. It is single-owner and cooperative: all activity
// happens inside explicit Init/Connect/Loop/Publish calls.
type Session struct {
	cfg       SessionConfig
	creds     Credentials
	transport Transport
	now       NowFunc
	probe     ProbeFunc
	log       Logger

	state    SessionState
	token    Token
	username string
	topics   Topics

	// insecureTLS records that Init fell back to an unvalidated
	// connection; Connect then uses the same degraded configuration.
	insecureTLS bool

	inbound chan Message

	// onInbound receives each drained message during Loop.
	onInbound func(Message)

	// onConnectionLost fires when Loop detects a dropped connection,
	// before any reconnect attempt. The facade abandons pending twin
	// requests here.
	onConnectionLost func()
}

// NewSession creates a session over the given transport.
//
// now supplies epoch seconds for token expiry (NTP-backed in
// production); probe tests TLS reachability (DefaultTLSProbe in
// production); log may be nil.
func NewSession(cfg SessionConfig, creds Credentials, transport Transport, now NowFunc, probe ProbeFunc, log Logger) *Session {
	if log == nil {
		log = nopLogger{}
	}
	s := &Session{
		cfg:       cfg.withDefaults(),
		creds:     creds,
		transport: transport,
		now:       now,
		probe:     probe,
		log:       log,
		state:     StateUninitialized,
		topics:    Topics{DeviceID: creds.DeviceID()},
		inbound:   make(chan Message, inboundQueueDepth),
	}

	transport.SetInbound(s.enqueue)
	return s
}

// enqueue buffers one transport-delivered message for the next Loop
// tick. Called from the transport's delivery goroutine; never blocks.
func (s *Session) enqueue(msg Message) {
	select {
	case s.inbound <- msg:
	default:
		s.log.Warn("inbound queue full, dropping message", "topic", msg.Topic)
	}
}

// Init prepares the session for its first connect:
//  1. Resolves epoch time for the token-expiry basis (fixed fallback
//     expiry when the time source cannot sync)
//  2. Generates the first SAS token
//  3. Builds the MQTT username and fixed topic strings
//  4. Probes TLS reachability — full certificate validation first,
//     then (if permitted) an unvalidated fallback for diagnostics
//
// Initialization failures are fatal: there is no degraded mode.
func (s *Session) Init() error {
	if s.state != StateUninitialized {
		return fmt.Errorf("%w: init from state %s", ErrNotInitialized, s.state)
	}
	s.state = StateInitializing

	expiry := s.tokenExpiry()
	token, err := GenerateToken(s.creds, expiry)
	if err != nil {
		s.state = StateUninitialized
		return err
	}
	s.token = token
	s.username = s.topics.Username(s.creds.HostName(), s.cfg.APIVersion)

	if err := s.probeTLS(); err != nil {
		s.state = StateUninitialized
		return err
	}

	s.state = StateReady
	s.log.Info("session initialized",
		"host", s.creds.HostName(),
		"device_id", s.creds.DeviceID(),
		"token_expiry", s.token.Expiry,
		"insecure_tls", s.insecureTLS,
	)
	return nil
}

// tokenExpiry resolves the expiry epoch for a fresh token.
func (s *Session) tokenExpiry() int64 {
	now, err := s.now()
	if err != nil {
		s.log.Warn("time source unavailable, using fallback token expiry",
			"error", err,
			"fallback_expiry", int64(fallbackExpiry),
		)
		return fallbackExpiry
	}
	return now + int64(s.cfg.TokenTTL.Seconds())
}

// probeTLS verifies the hub is reachable over TLS before the first
// CONNECT, recording whether the validated or the insecure
// configuration succeeded.
func (s *Session) probeTLS() error {
	host := s.creds.HostName()

	strict := s.tlsConfig(false)
	if err := s.probe(host, s.cfg.Port, strict); err == nil {
		return nil
	} else if !s.cfg.AllowInsecureFallback {
		return fmt.Errorf("%w: %s:%d: %w", ErrTLSProbeFailed, host, s.cfg.Port, err)
	} else {
		s.log.Warn("validated TLS probe failed, trying insecure fallback", "error", err)
	}

	if err := s.probe(host, s.cfg.Port, s.tlsConfig(true)); err != nil {
		return fmt.Errorf("%w: %s:%d: %w", ErrTLSProbeFailed, host, s.cfg.Port, err)
	}

	// Unvalidated connection: certificate chain is NOT checked.
	s.insecureTLS = true
	s.log.Warn("TLS certificate validation disabled for this session")
	return nil
}

// tlsConfig builds the TLS client configuration.
func (s *Session) tlsConfig(insecure bool) *tls.Config {
	return &tls.Config{
		ServerName:         s.creds.HostName(),
		RootCAs:            s.cfg.RootCAs,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: insecure, // #nosec G402 -- explicit opt-in diagnostic fallback
	}
}

// Connect runs one bounded connect sequence: up to ConnectAttempts
// CONNECTs with a fixed inter-attempt delay, surfacing the final
// failure instead of retrying indefinitely.
//
// The SAS token is regenerated first when it is stale (within the
// renewal margin of expiry). On success the session subscribes to the
// C2D filter, the twin-response wildcard, and the desired-properties
// wildcard; partial subscription failure is logged but does not fail
// the connect.
func (s *Session) Connect() error {
	switch s.state {
	case StateReady, StateDisconnected:
		// connectable
	case StateUninitialized, StateInitializing:
		return ErrNotInitialized
	case StateConnected:
		return nil
	}

	s.refreshToken()

	opts := ConnectOptions{
		Host:      s.creds.HostName(),
		Port:      s.cfg.Port,
		ClientID:  s.creds.DeviceID(),
		Username:  s.username,
		Password:  s.token.String(),
		TLS:       s.tlsConfig(s.insecureTLS),
		KeepAlive: s.cfg.KeepAlive,
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.ConnectAttempts; attempt++ {
		s.state = StateConnecting
		s.log.Info("connecting to hub",
			"attempt", attempt,
			"max_attempts", s.cfg.ConnectAttempts,
		)

		if err := s.transport.Connect(opts); err != nil {
			lastErr = err
			s.log.Warn("connect attempt failed", "attempt", attempt, "error", err)
			if attempt < s.cfg.ConnectAttempts {
				time.Sleep(s.cfg.ConnectRetryDelay)
			}
			continue
		}

		s.state = StateConnected
		s.subscribeAll()
		s.log.Info("connected to hub", "device_id", s.creds.DeviceID())
		return nil
	}

	s.state = StateDisconnected
	return fmt.Errorf("%w: after %d attempts: %w", ErrConnectionFailed, s.cfg.ConnectAttempts, lastErr)
}

// refreshToken regenerates the SAS token when it is within the renewal
// margin of expiry. A time-source failure keeps the existing token —
// presenting a possibly-stale token beats presenting none.
func (s *Session) refreshToken() {
	now, err := s.now()
	if err != nil {
		s.log.Warn("time source unavailable, reusing current token", "error", err)
		return
	}
	if !s.token.ExpiresWithin(now, s.cfg.RenewalMargin) {
		return
	}

	token, err := GenerateToken(s.creds, now+int64(s.cfg.TokenTTL.Seconds()))
	if err != nil {
		// Key validity was proven during Init; log and keep the old token.
		s.log.Error("token regeneration failed", "error", err)
		return
	}
	s.token = token
	s.log.Info("SAS token regenerated", "expiry", token.Expiry)
}

// subscribeAll subscribes to the three hub filters. Individual failures
// are logged, not fatal: a device that can publish telemetry but not
// receive C2D is degraded, not dead.
func (s *Session) subscribeAll() {
	for _, filter := range []string{
		s.topics.C2DFilter(),
		TwinResponseFilter,
		DesiredPropertiesFilter,
	} {
		if err := s.transport.Subscribe(filter); err != nil {
			s.log.Warn("subscription failed", "filter", filter, "error", err)
		}
	}
}

// Loop is the cooperative service tick: it detects connection loss,
// optionally runs one bounded reconnect sequence inline, and drains
// buffered inbound messages to the registered handler.
//
// While the session is disconnected every tick runs the bounded
// sequence again, so an outage longer than one retry budget delays
// recovery but never forfeits it.
//
// The inline reconnect deliberately blocks Loop for the duration of the
// retry budget; callers must tolerate that (or disable it via
// DisableReconnectInLoop and call Reconnect themselves).
func (s *Session) Loop() {
	switch s.state {
	case StateUninitialized, StateInitializing, StateReady:
		return
	}

	if s.state == StateConnected && !s.transport.IsConnected() {
		s.connectionLost()
	}
	if s.state == StateDisconnected && !s.cfg.DisableReconnectInLoop {
		if err := s.Connect(); err != nil {
			s.log.Error("reconnect failed", "error", err)
		}
	}

	for {
		select {
		case msg := <-s.inbound:
			if s.onInbound != nil {
				s.onInbound(msg)
			}
		default:
			return
		}
	}
}

// connectionLost records the drop and notifies the facade so pending
// twin requests are abandoned before any reconnect.
func (s *Session) connectionLost() {
	s.state = StateDisconnected
	s.log.Warn("connection to hub lost")
	if s.onConnectionLost != nil {
		s.onConnectionLost()
	}
}

// Reconnect explicitly runs the lost-connection handling plus one
// bounded connect sequence. For callers using DisableReconnectInLoop.
func (s *Session) Reconnect() error {
	if s.state == StateConnected && s.transport.IsConnected() {
		return nil
	}
	if s.state == StateConnected {
		s.connectionLost()
	}
	return s.Connect()
}

// Publish sends one message fire-and-forget at the transport default
// QoS. Callers decide whether to resend on failure.
func (s *Session) Publish(topic string, payload []byte) error {
	if s.state != StateConnected || !s.transport.IsConnected() {
		return ErrNotConnected
	}
	if err := s.transport.Publish(topic, payload); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// Close disconnects the transport and returns the session to the
// Ready state so a later Connect can reuse it.
func (s *Session) Close() {
	if s.state == StateConnected || s.state == StateConnecting {
		s.transport.Disconnect()
	}
	if s.state != StateUninitialized && s.state != StateInitializing {
		s.state = StateReady
	}
}

// State returns the full session lifecycle state.
func (s *Session) State() SessionState { return s.state }

// ConnState collapses the lifecycle into the three-value view exposed
// to collaborators.
func (s *Session) ConnState() ConnectionState {
	switch s.state {
	case StateConnecting:
		return Connecting
	case StateConnected:
		if s.transport.IsConnected() {
			return Connected
		}
		return Disconnected
	default:
		return Disconnected
	}
}

// Token returns the current SAS token (primarily for observability).
func (s *Session) Token() Token { return s.token }
