package iothub

import (
	"fmt"
	"time"
)

// Hub status codes carried on twin response topics.
const (
	statusTwinOK           = 200
	statusReportedAccepted = 204
)

// C2DHandler receives cloud-to-device messages. The trailing query
// string of the topic passes through unparsed; the payload is opaque.
type C2DHandler func(topic string, payload []byte)

// DesiredPropertiesHandler receives desired-property update pushes with
// the $version from the topic (0 when absent).
type DesiredPropertiesHandler func(payload []byte, version int)

// TwinReceivedHandler receives the full twin document after a
// successful RequestTwin.
type TwinReceivedHandler func(payload []byte)

// Options configures a Client. Zero-value fields take production
// defaults: a paho transport, the system clock, and the real TLS probe.
type Options struct {
	Session   SessionConfig
	Transport Transport
	Now       NowFunc
	Probe     ProbeFunc
	Logger    Logger
}

// Client is the public facade over the hub protocol: it wires the
// session, topic router, and twin tracker, and dispatches application
// callbacks.
//
// Callbacks are invoked synchronously from within Loop and share the
// cooperative timeline with protocol servicing — they must not block
// materially.
//
// A Client exclusively owns its session, tracker, and credentials.
// It is not safe for concurrent use; serialize access through a single
// owning goroutine.
type Client struct {
	creds   Credentials
	topics  Topics
	session *Session
	tracker *TwinTracker
	log     Logger

	onC2D     C2DHandler
	onDesired DesiredPropertiesHandler
	onTwin    TwinReceivedHandler
}

// New creates a Client for the given device credentials.
func New(creds Credentials, opts Options) *Client {
	if opts.Transport == nil {
		opts.Transport = NewPahoTransport()
	}
	if opts.Now == nil {
		opts.Now = func() (int64, error) { return time.Now().Unix(), nil }
	}
	if opts.Probe == nil {
		opts.Probe = DefaultTLSProbe
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	c := &Client{
		creds:   creds,
		topics:  Topics{DeviceID: creds.DeviceID()},
		tracker: NewTwinTracker(),
		log:     opts.Logger,
	}
	c.session = NewSession(opts.Session, creds, opts.Transport, opts.Now, opts.Probe, opts.Logger)
	c.session.onInbound = c.handleInbound
	c.session.onConnectionLost = c.handleConnectionLost

	return c
}

// Init prepares the session (time sync, first SAS token, TLS probe).
// Failure is fatal to startup; there is no degraded mode.
func (c *Client) Init() error { return c.session.Init() }

// Connect runs one bounded connect sequence against the hub.
func (c *Client) Connect() error { return c.session.Connect() }

// IsConnected reports whether the hub connection is live.
func (c *Client) IsConnected() bool { return c.session.ConnState() == Connected }

// State returns the coarse connection state.
func (c *Client) State() ConnectionState { return c.session.ConnState() }

// Loop services the protocol: one cooperative tick of keepalive,
// delivery, and (on detected disconnection) one bounded inline
// reconnect. All registered callbacks fire from inside this call.
func (c *Client) Loop() { c.session.Loop() }

// Close disconnects from the hub.
func (c *Client) Close() { c.session.Close() }

// DeviceID returns the device identifier.
func (c *Client) DeviceID() string { return c.creds.DeviceID() }

// HostName returns the hub hostname.
func (c *Client) HostName() string { return c.creds.HostName() }

// OnC2DMessage registers the cloud-to-device message callback.
func (c *Client) OnC2DMessage(fn C2DHandler) { c.onC2D = fn }

// OnDesiredProperties registers the desired-property update callback.
func (c *Client) OnDesiredProperties(fn DesiredPropertiesHandler) { c.onDesired = fn }

// OnTwinReceived registers the full-twin callback.
func (c *Client) OnTwinReceived(fn TwinReceivedHandler) { c.onTwin = fn }

// SendTelemetry publishes one D2C event, fire-and-forget. properties,
// when non-empty, is an already URL-encoded property bag appended to
// the event topic (e.g. "temperatureAlert=true"). Callers decide
// whether to resend on failure.
func (c *Client) SendTelemetry(payload []byte, properties string) error {
	return c.session.Publish(c.topics.Telemetry(properties), payload)
}

// RequestTwin asks the hub for the full device twin. The response
// arrives through OnTwinReceived during a later Loop.
//
// Returns ErrTwinBusy while a previous request is pending and
// ErrNotConnected when offline. A failed publish abandons the request
// so the next call is not spuriously Busy.
func (c *Client) RequestTwin() error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	rid, err := c.tracker.BeginGet()
	if err != nil {
		return err
	}

	if err := c.session.Publish(c.topics.TwinGet(rid), nil); err != nil {
		c.tracker.Abandon(rid)
		return fmt.Errorf("twin get request: %w", err)
	}

	c.log.Debug("twin get requested", "rid", rid)
	return nil
}

// UpdateReportedProperties publishes a reported-property PATCH. The
// payload is an opaque JSON document; this package does not validate
// it. Multiple patches may be in flight, each independently tracked.
func (c *Client) UpdateReportedProperties(payload []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	rid := c.tracker.BeginPatch()
	if err := c.session.Publish(c.topics.ReportedPatch(rid), payload); err != nil {
		c.tracker.Abandon(rid)
		return fmt.Errorf("reported properties patch: %w", err)
	}

	c.log.Debug("reported properties sent", "rid", rid)
	return nil
}

// handleInbound classifies and dispatches one message. Runs inside
// Loop on the caller's goroutine.
func (c *Client) handleInbound(msg Message) {
	in := Classify(msg.Topic, msg.Payload)

	switch in.Kind {
	case KindC2D:
		c.log.Debug("c2d message", "topic", in.Topic, "bytes", len(in.Payload))
		if c.onC2D != nil {
			c.onC2D(in.Topic, in.Payload)
		}

	case KindTwinResponse:
		c.handleTwinResponse(in)

	case KindDesiredPatch:
		c.log.Debug("desired properties update", "version", in.Version)
		if c.onDesired != nil {
			c.onDesired(in.Payload, in.Version)
		}

	default:
		c.log.Warn("unclassified message dropped", "topic", in.Topic)
	}
}

// handleTwinResponse correlates a twin response to its request and
// dispatches per status. Unmatched responses — late replies to
// abandoned requests included — are dropped.
func (c *Client) handleTwinResponse(in Inbound) {
	req, ok := c.tracker.Resolve(in.RequestID, in.HasRequestID, in.Status)
	if !ok {
		c.log.Debug("unmatched twin response dropped", "status", in.Status, "topic", in.Topic)
		return
	}

	switch {
	case in.Status == statusTwinOK && req.Kind == TwinGet:
		c.log.Debug("full twin received", "rid", req.ID, "bytes", len(in.Payload))
		if c.onTwin != nil {
			c.onTwin(in.Payload)
		}
	case in.Status == statusReportedAccepted:
		c.log.Debug("reported properties accepted", "rid", req.ID)
	default:
		c.log.Warn("twin operation failed", "rid", req.ID, "status", in.Status)
	}
}

// handleConnectionLost abandons all pending twin requests. No request
// is re-issued automatically; callers retry explicitly.
func (c *Client) handleConnectionLost() {
	if n := c.tracker.AbandonAll(); n > 0 {
		c.log.Warn("abandoned pending twin requests", "count", n)
	}
}
