package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
	"github.com/nerrad567/gray-logic-gateway/internal/hub"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/mqtt"
)

// willQoS is the QoS of the Last Will status message.
const willQoS = 1

// Client is the subset of *mqtt.Client the connector needs.
type Client interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Close() error
}

// connectionNotifier is implemented by clients that report reconnects.
type connectionNotifier interface {
	SetOnConnect(func())
	SetOnDisconnect(func(err error))
}

// DialFunc opens a broker connection.
type DialFunc func(ctx context.Context, cfg config.MQTTConfig, opts ...mqtt.Option) (Client, error)

// Logger is the logging interface used by the connector.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option configures a Connector.
type Option func(*Connector)

// WithDialer replaces the MQTT dialer.
func WithDialer(d DialFunc) Option {
	return func(c *Connector) { c.dial = d }
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(c *Connector) {
		if l != nil {
			c.logger = l
		}
	}
}

// Connector is the MQTT implementation of hub.PubSub.
type Connector struct {
	cfg      config.MQTTConfig
	deviceID string
	topics   mqtt.Topics
	dial     DialFunc
	logger   Logger

	mu      sync.RWMutex
	client  Client
	handler hub.InboundHandler
}

var _ hub.PubSub = (*Connector)(nil)

// New returns a disconnected Connector for the broker in cfg.
func New(cfg config.MQTTConfig, deviceID string, opts ...Option) *Connector {
	c := &Connector{
		cfg:      cfg,
		deviceID: deviceID,
		topics:   mqtt.Topics{Prefix: cfg.TopicPrefix},
		dial:     dialMQTT,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func dialMQTT(ctx context.Context, cfg config.MQTTConfig, opts ...mqtt.Option) (Client, error) {
	return mqtt.ConnectWithRetry(ctx, cfg, opts...)
}

// Connect dials the broker, retrying with backoff within the configured
// attempt limit and connect timeout.
// Calling Connect while connected is a no-op.
func (c *Connector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return nil
	}

	will, err := json.Marshal(map[string]string{"status": "offline", "device_id": c.deviceID})
	if err != nil {
		return fmt.Errorf("encoding last will: %w", err)
	}

	client, err := c.dial(ctx, c.cfg,
		mqtt.WithLogger(c.logger),
		mqtt.WithWill(mqtt.Will{Topic: c.topics.Status(), Payload: will, QoS: willQoS, Retained: true}),
	)
	if err != nil {
		return fmt.Errorf("connecting to %s:%d: %w", c.cfg.Broker.Host, c.cfg.Broker.Port, err)
	}
	if n, ok := client.(connectionNotifier); ok {
		n.SetOnConnect(func() { c.logger.Debug("broker session established", "broker", c.cfg.Broker.Host) })
		n.SetOnDisconnect(func(err error) { c.logger.Warn("broker connection lost, reconnecting", "error", err) })
	}
	c.client = client
	return nil
}

// Disconnect closes the broker connection. It is safe to call when not
// connected.
func (c *Connector) Disconnect() error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

// Publish sends payload to the topic of resource. Gateway status
// messages are retained.
func (c *Connector) Publish(resource envelope.Resource, payload []byte, qos byte) error {
	client, err := c.connected()
	if err != nil {
		return err
	}
	retained := resource == envelope.ResourceGatewayStatus
	return client.Publish(c.topics.Resource(resource.String()), payload, qos, retained)
}

// Subscribe delivers messages on the topic of resource to the inbound
// handler.
func (c *Connector) Subscribe(resource envelope.Resource, qos byte) error {
	client, err := c.connected()
	if err != nil {
		return err
	}
	return client.Subscribe(c.topics.Resource(resource.String()), qos, c.onMessage)
}

// Unsubscribe stops delivery for resource.
func (c *Connector) Unsubscribe(resource envelope.Resource) error {
	client, err := c.connected()
	if err != nil {
		return err
	}
	return client.Unsubscribe(c.topics.Resource(resource.String()))
}

// SetInboundHandler registers the callback for received messages.
func (c *Connector) SetInboundHandler(h hub.InboundHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *Connector) connected() (Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil {
		return nil, ErrNotConnected
	}
	return c.client, nil
}

// onMessage maps a topic back to its resource and hands the payload to
// the inbound handler. Errors are logged by the mqtt client.
func (c *Connector) onMessage(topic string, payload []byte) error {
	path, ok := c.topics.Trim(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	resource, ok := envelope.ParseResource(path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()
	if h == nil {
		c.logger.Debug("message dropped, no inbound handler", "topic", topic)
		return nil
	}

	if !h(resource, payload) {
		return fmt.Errorf("%w: %s", ErrRejected, topic)
	}
	return nil
}
