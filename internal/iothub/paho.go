package iothub

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Transport timing constants.
const (
	// defaultConnectTimeout bounds one blocking CONNECT attempt.
	defaultConnectTimeout = 30 * time.Second

	// defaultOpTimeout bounds publish and subscribe token waits.
	defaultOpTimeout = 5 * time.Second

	// defaultProbeTimeout bounds the TLS reachability probe dial.
	defaultProbeTimeout = 10 * time.Second

	// disconnectQuiesce is the drain period for pending operations on
	// disconnect, in milliseconds.
	disconnectQuiesce = 250
)

// PahoTransport is the production Transport on paho.mqtt.golang.
//
// Automatic reconnection is deliberately disabled: the session owns the
// bounded reconnect policy, and paho's unbounded built-in retry would
// undermine it.
type PahoTransport struct {
	client  pahomqtt.Client
	inbound func(Message)
}

// NewPahoTransport returns an unconnected transport.
func NewPahoTransport() *PahoTransport {
	return &PahoTransport{}
}

// SetInbound implements Transport.
func (p *PahoTransport) SetInbound(fn func(Message)) {
	p.inbound = fn
}

// Connect implements Transport. Each call builds a fresh paho client so
// a regenerated SAS token takes effect on the next attempt.
func (p *PahoTransport) Connect(connOpts ConnectOptions) error {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("ssl://%s:%d", connOpts.Host, connOpts.Port))
	opts.SetClientID(connOpts.ClientID)
	opts.SetUsername(connOpts.Username)
	opts.SetPassword(connOpts.Password)
	opts.SetTLSConfig(connOpts.TLS)
	opts.SetKeepAlive(connOpts.KeepAlive)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetOrderMatters(true)
	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		if p.inbound != nil {
			p.inbound(Message{Topic: msg.Topic(), Payload: msg.Payload()})
		}
	})

	p.client = pahomqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return fmt.Errorf("connect timeout after %v", defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return err
	}
	return nil
}

// Publish implements Transport. QoS 0, not retained.
func (p *PahoTransport) Publish(topic string, payload []byte) error {
	if p.client == nil {
		return ErrNotConnected
	}
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(defaultOpTimeout) {
		return fmt.Errorf("publish timeout after %v", defaultOpTimeout)
	}
	return token.Error()
}

// Subscribe implements Transport. Messages arrive via the default
// publish handler registered in Connect.
func (p *PahoTransport) Subscribe(filter string) error {
	if p.client == nil {
		return ErrNotConnected
	}
	token := p.client.Subscribe(filter, 0, nil)
	if !token.WaitTimeout(defaultOpTimeout) {
		return fmt.Errorf("subscribe timeout after %v", defaultOpTimeout)
	}
	return token.Error()
}

// IsConnected implements Transport.
func (p *PahoTransport) IsConnected() bool {
	return p.client != nil && p.client.IsConnected()
}

// Disconnect implements Transport.
func (p *PahoTransport) Disconnect() {
	if p.client != nil {
		p.client.Disconnect(disconnectQuiesce)
	}
}

// DefaultTLSProbe dials host:port with the given TLS configuration and
// closes the connection. It is the production ProbeFunc.
func DefaultTLSProbe(host string, port int, cfg *tls.Config) error {
	dialer := &net.Dialer{Timeout: defaultProbeTimeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", net.JoinHostPort(host, strconv.Itoa(port)), cfg)
	if err != nil {
		return err
	}
	return conn.Close()
}
