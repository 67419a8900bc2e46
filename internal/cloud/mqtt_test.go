package cloud

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/mqtt"
)

type cloudPublish struct {
	topic   string
	payload []byte
}

// fakeClient implements Client for testing.
type fakeClient struct {
	mu        sync.Mutex
	published []cloudPublish
	handlers  map[string]mqtt.MessageHandler
	closed    bool

	// failFirst, when set, is returned by the next Publish and then cleared.
	failFirst error
	failed    bool
}

func (f *fakeClient) Publish(topic string, payload []byte, _ byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFirst != nil && !f.failed {
		f.failed = true
		return f.failFirst
	}
	f.published = append(f.published, cloudPublish{topic, payload})
	return nil
}

func (f *fakeClient) Subscribe(topic string, _ byte, h mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string]mqtt.MessageHandler)
	}
	f.handlers[topic] = h
	return nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func testCloudConfig() config.CloudConfig {
	return config.CloudConfig{
		Provider:    config.CloudProviderMQTT,
		DeviceLabel: "edge-7",
		BaseTopic:   "/v1.6/devices",
	}
}

func connectedMQTTBridge(t *testing.T) (*MQTTBridge, *fakeClient) {
	t.Helper()
	fake := &fakeClient{}
	b := NewMQTTBridge(testCloudConfig(), WithDialer(
		func(context.Context, config.MQTTConfig, ...mqtt.Option) (Client, error) { return fake, nil }))
	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return b, fake
}

func TestMQTTBridge_NotConnected(t *testing.T) {
	b := NewMQTTBridge(testCloudConfig())

	if err := b.SendSensorReading(context.Background(), envelope.ResourceSensorMessage, testReading()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendSensorReading() error = %v, want ErrNotConnected", err)
	}
	if err := b.SubscribeDownlink(envelope.ResourceActuatorCommand); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SubscribeDownlink() error = %v, want ErrNotConnected", err)
	}
	if err := b.Disconnect(); err != nil {
		t.Errorf("Disconnect() error = %v", err)
	}
}

func TestMQTTBridge_DialFailure(t *testing.T) {
	dialErr := errors.New("tls handshake failed")
	b := NewMQTTBridge(testCloudConfig(), WithDialer(
		func(context.Context, config.MQTTConfig, ...mqtt.Option) (Client, error) { return nil, dialErr }))

	if err := b.Connect(context.Background()); !errors.Is(err, dialErr) {
		t.Errorf("Connect() error = %v, want wrapped dial error", err)
	}
}

func TestMQTTBridge_SendSensorReading(t *testing.T) {
	b, fake := connectedMQTTBridge(t)

	if err := b.SendSensorReading(context.Background(), envelope.ResourceSensorMessage, testReading()); err != nil {
		t.Fatalf("SendSensorReading() error = %v", err)
	}

	if len(fake.published) != 1 {
		t.Fatalf("published = %d, want 1", len(fake.published))
	}
	got := fake.published[0]
	if got.topic != "/v1.6/devices/edge-7" {
		t.Errorf("topic = %q, want /v1.6/devices/edge-7", got.topic)
	}
	want := `{"HumiditySensor":{"value":41.5,"timestamp":1772366400000}}`
	if string(got.payload) != want {
		t.Errorf("payload = %s, want %s", got.payload, want)
	}
}

func TestMQTTBridge_SendPerformanceSample(t *testing.T) {
	b, fake := connectedMQTTBridge(t)

	if err := b.SendPerformanceSample(context.Background(), envelope.ResourceSystemPerf, testSample()); err != nil {
		t.Fatalf("SendPerformanceSample() error = %v", err)
	}

	payloads := make([][]byte, 0, len(fake.published))
	for _, p := range fake.published {
		if p.topic != "/v1.6/devices/edge-7" {
			t.Errorf("topic = %q, want /v1.6/devices/edge-7", p.topic)
		}
		payloads = append(payloads, p.payload)
	}
	assertSampleScalars(t, payloads)
}

func TestMQTTBridge_PublishFailureKeepsSending(t *testing.T) {
	b, fake := connectedMQTTBridge(t)
	fake.failFirst = errors.New("broker busy")

	err := b.SendPerformanceSample(context.Background(), envelope.ResourceSystemPerf, testSample())
	if !errors.Is(err, fake.failFirst) {
		t.Fatalf("SendPerformanceSample() error = %v, want wrapped publish error", err)
	}
	if len(fake.published) != 2 {
		t.Fatalf("published = %d, want the 2 variables after the failed one", len(fake.published))
	}
	if got := decodeScalar(t, fake.published[0].payload); got.name != envelope.ScalarMemUtil {
		t.Errorf("first delivered variable = %s, want %s", got.name, envelope.ScalarMemUtil)
	}
}

func TestMQTTBridge_NilMessages(t *testing.T) {
	b, _ := connectedMQTTBridge(t)
	if err := b.SendSensorReading(context.Background(), envelope.ResourceSensorMessage, nil); err == nil {
		t.Error("SendSensorReading(nil) expected error")
	}
	if err := b.SendPerformanceSample(context.Background(), envelope.ResourceSystemPerf, nil); err == nil {
		t.Error("SendPerformanceSample(nil) expected error")
	}
}

func TestMQTTBridge_Downlink(t *testing.T) {
	b, fake := connectedMQTTBridge(t)

	var gotResource envelope.Resource
	var gotPayload []byte
	b.SetInboundHandler(func(r envelope.Resource, payload []byte) bool {
		gotResource, gotPayload = r, payload
		return true
	})

	if err := b.SubscribeDownlink(envelope.ResourceActuatorCommand); err != nil {
		t.Fatalf("SubscribeDownlink() error = %v", err)
	}

	topic := "/v1.6/devices/edge-7/device-actuator-command/lv"
	handler, ok := fake.handlers[topic]
	if !ok {
		t.Fatalf("no subscription on %s, have %v", topic, fake.handlers)
	}

	if err := handler(topic, []byte("1.0")); err != nil {
		t.Fatalf("downlink handler error = %v", err)
	}
	if gotResource != envelope.ResourceActuatorCommand {
		t.Errorf("resource = %q", gotResource)
	}
	cmd, err := envelope.NewJSONCodec().DecodeActuatorCommand(gotPayload)
	if err != nil {
		t.Fatalf("decoding forwarded command: %v", err)
	}
	if cmd.Command != envelope.CommandOn || cmd.Name != DefaultCommandTemplate().Name {
		t.Errorf("forwarded command = %+v", cmd)
	}

	if err := handler(topic, []byte("garbage")); !errors.Is(err, ErrBadDownlink) {
		t.Errorf("malformed downlink error = %v, want ErrBadDownlink", err)
	}

	b.SetInboundHandler(func(envelope.Resource, []byte) bool { return false })
	if err := handler(topic, []byte("0")); err == nil {
		t.Error("rejected downlink expected error")
	}
}

func TestMQTTBridge_Disconnect(t *testing.T) {
	b, fake := connectedMQTTBridge(t)
	if err := b.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if !fake.closed {
		t.Error("client not closed")
	}
	if err := b.SendSensorReading(context.Background(), envelope.ResourceSensorMessage, testReading()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("send after Disconnect error = %v, want ErrNotConnected", err)
	}
}
