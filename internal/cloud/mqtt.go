package cloud

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
	"github.com/nerrad567/gray-logic-gateway/internal/hub"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/mqtt"
)

// Cloud brokers generally cap QoS at 1.
const cloudQoS = 1

// Client is the subset of *mqtt.Client the MQTT bridge needs.
type Client interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Close() error
}

// DialFunc opens a connection to the cloud broker.
type DialFunc func(ctx context.Context, cfg config.MQTTConfig, opts ...mqtt.Option) (Client, error)

func dialMQTT(ctx context.Context, cfg config.MQTTConfig, opts ...mqtt.Option) (Client, error) {
	return mqtt.ConnectWithRetry(ctx, cfg, opts...)
}

// MQTTBridge publishes telemetry to a cloud MQTT broker and receives
// remote commands through last-value downlink topics.
type MQTTBridge struct {
	cfg config.CloudConfig
	settings

	mu      sync.RWMutex
	client  Client
	handler hub.InboundHandler
}

var _ hub.CloudBridge = (*MQTTBridge)(nil)

// NewMQTTBridge returns a disconnected MQTT bridge.
func NewMQTTBridge(cfg config.CloudConfig, opts ...Option) *MQTTBridge {
	return &MQTTBridge{cfg: cfg, settings: newSettings(opts)}
}

// Connect opens the cloud broker connection, retrying with backoff within
// the configured attempt limit and connect timeout. Calling Connect while
// connected is a no-op.
func (b *MQTTBridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return nil
	}

	client, err := b.dial(ctx, b.cfg.MQTT, mqtt.WithLogger(b.logger))
	if err != nil {
		return fmt.Errorf("connecting to cloud broker %s: %w", b.cfg.MQTT.Broker.Host, err)
	}
	b.client = client
	return nil
}

// Disconnect closes the cloud connection. It is safe to call when not
// connected.
func (b *MQTTBridge) Disconnect() error {
	b.mu.Lock()
	client := b.client
	b.client = nil
	b.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

// SendSensorReading publishes the reading as a single variable.
func (b *MQTTBridge) SendSensorReading(_ context.Context, _ envelope.Resource, r *envelope.SensorReading) error {
	if r == nil {
		return fmt.Errorf("%w: nil sensor reading", envelope.ErrEncode)
	}
	return b.publish([]envelope.Scalar{envelope.SensorScalar(r, b.now())})
}

// SendPerformanceSample publishes CPU, memory and disk utilisation as
// three variables, one message each.
func (b *MQTTBridge) SendPerformanceSample(_ context.Context, _ envelope.Resource, s *envelope.PerformanceSample) error {
	if s == nil {
		return fmt.Errorf("%w: nil performance sample", envelope.ErrEncode)
	}
	return b.publish(envelope.PerformanceScalars(s, b.now()))
}

// SubscribeDownlink listens for remote commands on the last-value topic
// of the variable for resource.
func (b *MQTTBridge) SubscribeDownlink(resource envelope.Resource) error {
	client, err := b.connected()
	if err != nil {
		return err
	}
	topic := b.downlinkTopic(resource)
	return client.Subscribe(topic, cloudQoS, func(_ string, payload []byte) error {
		return b.onDownlink(resource, payload)
	})
}

// SetInboundHandler registers the callback for downlink commands.
func (b *MQTTBridge) SetInboundHandler(h hub.InboundHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

func (b *MQTTBridge) publish(scalars []envelope.Scalar) error {
	client, err := b.connected()
	if err != nil {
		return err
	}
	topic := b.deviceTopic()
	var errs []error
	for _, sc := range scalars {
		data, err := b.codec.EncodeScalar(sc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := client.Publish(topic, data, cloudQoS, false); err != nil {
			errs = append(errs, fmt.Errorf("publishing %s: %w", sc.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (b *MQTTBridge) onDownlink(resource envelope.Resource, payload []byte) error {
	data, err := commandPayload(b.codec, b.template, payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	h := b.handler
	b.mu.RUnlock()
	if h == nil {
		b.logger.Debug("downlink dropped, no inbound handler", "resource", resource)
		return nil
	}
	if !h(resource, data) {
		return fmt.Errorf("downlink command for %s rejected", resource)
	}
	return nil
}

func (b *MQTTBridge) connected() (Client, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.client == nil {
		return nil, ErrNotConnected
	}
	return b.client, nil
}

// deviceTopic is {base_topic}/{device_label}.
func (b *MQTTBridge) deviceTopic() string {
	return path.Join(b.cfg.BaseTopic, b.cfg.DeviceLabel)
}

// downlinkTopic is {base_topic}/{device_label}/{variable}/lv.
func (b *MQTTBridge) downlinkTopic(resource envelope.Resource) string {
	return path.Join(b.deviceTopic(), downlinkVariable(resource), "lv")
}
