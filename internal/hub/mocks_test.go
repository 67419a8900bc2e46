package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
)

var errMock = errors.New("mock failure")

// callLog records connector calls across mocks so ordering can be checked.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type publishedMessage struct {
	resource envelope.Resource
	payload  []byte
	qos      byte
}

// mockPubSub implements PubSub for testing.
type mockPubSub struct {
	mu           sync.Mutex
	log          *callLog
	connectErr   error
	publishErr   error
	published    []publishedMessage
	subscribed   []envelope.Resource
	unsubscribed []envelope.Resource
	handler      InboundHandler
	connects     int
}

func (m *mockPubSub) Connect(context.Context) error {
	m.log.add("pubsub.connect")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	return m.connectErr
}

func (m *mockPubSub) Disconnect() error {
	m.log.add("pubsub.disconnect")
	return nil
}

func (m *mockPubSub) Publish(resource envelope.Resource, payload []byte, qos byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, publishedMessage{resource: resource, payload: payload, qos: qos})
	return nil
}

func (m *mockPubSub) Subscribe(resource envelope.Resource, _ byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed = append(m.subscribed, resource)
	return nil
}

func (m *mockPubSub) Unsubscribe(resource envelope.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribed = append(m.unsubscribed, resource)
	return nil
}

func (m *mockPubSub) SetInboundHandler(h InboundHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// SimulateMessage delivers an inbound message as the transport would.
func (m *mockPubSub) SimulateMessage(resource envelope.Resource, payload []byte) bool {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h == nil {
		return false
	}
	return h(resource, payload)
}

func (m *mockPubSub) publishedTo(resource envelope.Resource) []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []publishedMessage
	for _, p := range m.published {
		if p.resource == resource {
			out = append(out, p)
		}
	}
	return out
}

// mockCloud implements CloudBridge for testing.
type mockCloud struct {
	mu         sync.Mutex
	log        *callLog
	connectErr error
	sendErr    error
	readings   []envelope.SensorReading
	samples    []envelope.PerformanceSample
	downlinks  []envelope.Resource
	handler    InboundHandler
}

func (m *mockCloud) Connect(context.Context) error {
	m.log.add("cloud.connect")
	return m.connectErr
}

func (m *mockCloud) Disconnect() error {
	m.log.add("cloud.disconnect")
	return errMock
}

func (m *mockCloud) SendSensorReading(_ context.Context, _ envelope.Resource, r *envelope.SensorReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.readings = append(m.readings, *r)
	return nil
}

func (m *mockCloud) SendPerformanceSample(_ context.Context, _ envelope.Resource, s *envelope.PerformanceSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.samples = append(m.samples, *s)
	return nil
}

func (m *mockCloud) SubscribeDownlink(resource envelope.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downlinks = append(m.downlinks, resource)
	return nil
}

func (m *mockCloud) SetInboundHandler(h InboundHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

func (m *mockCloud) readingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.readings)
}

type storedMessage struct {
	collection string
	msg        envelope.Message
}

// mockPersistence implements Persistence for testing.
type mockPersistence struct {
	mu         sync.Mutex
	log        *callLog
	connectErr error
	storeErr   error
	stored     []storedMessage
}

func (m *mockPersistence) Connect(context.Context) error {
	m.log.add("persistence.connect")
	return m.connectErr
}

func (m *mockPersistence) Disconnect() error {
	m.log.add("persistence.disconnect")
	return nil
}

func (m *mockPersistence) Store(_ context.Context, collection string, _ byte, msgs ...envelope.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return m.storeErr
	}
	for _, msg := range msgs {
		m.stored = append(m.stored, storedMessage{collection: collection, msg: msg})
	}
	return nil
}

func (m *mockPersistence) Query(context.Context, string, time.Time, time.Time) ([]envelope.Message, error) {
	return nil, nil
}

func (m *mockPersistence) storedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stored)
}

// mockServer implements RequestResponse for testing.
type mockServer struct {
	log      *callLog
	startErr error
}

func (m *mockServer) Start(context.Context) error {
	m.log.add("server.start")
	return m.startErr
}

func (m *mockServer) Stop(context.Context) error {
	m.log.add("server.stop")
	return nil
}

// mockListener implements ActuatorListener for testing.
type mockListener struct {
	mu       sync.Mutex
	err      error
	commands []envelope.ActuatorCommand
}

func (m *mockListener) OnActuatorCommand(_ envelope.Resource, cmd envelope.ActuatorCommand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, cmd)
	return m.err
}

func (m *mockListener) received() []envelope.ActuatorCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]envelope.ActuatorCommand(nil), m.commands...)
}

// mockMetrics counts hub metric calls.
type mockMetrics struct {
	mu               sync.Mutex
	decodeFailures   int
	connectorFailure map[string]int
}

func (m *mockMetrics) EnvelopeReceived(envelope.Kind) {}

func (m *mockMetrics) DecodeFailed(envelope.Resource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decodeFailures++
}

func (m *mockMetrics) ConnectorFailed(connector, operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectorFailure == nil {
		m.connectorFailure = make(map[string]int)
	}
	m.connectorFailure[connector+"."+operation]++
}

func (m *mockMetrics) CommandDispatched(envelope.Command) {}
