package hub

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/actuation"
	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
)

var testStart = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func testParams() actuation.Params {
	p := actuation.DefaultParams()
	p.MaxExceptionWindowSeconds = 60
	return p
}

func humidity(value float64, offset int) *envelope.SensorReading {
	return &envelope.SensorReading{Envelope: envelope.Envelope{
		Kind:      envelope.KindSensorReading,
		Name:      "HumiditySensor",
		TypeID:    envelope.TypeHumiditySensor,
		TimeStamp: testStart.Add(time.Duration(offset) * time.Second).Format(envelope.TimeLayout),
		Value:     value,
	}}
}

type testHub struct {
	hub         *Hub
	pubsub      *mockPubSub
	cloud       *mockCloud
	persistence *mockPersistence
	server      *mockServer
	listener    *mockListener
	metrics     *mockMetrics
	log         *callLog
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	log := &callLog{}
	th := &testHub{
		pubsub:      &mockPubSub{log: log},
		cloud:       &mockCloud{log: log},
		persistence: &mockPersistence{log: log},
		server:      &mockServer{log: log},
		listener:    &mockListener{},
		metrics:     &mockMetrics{},
		log:         log,
	}
	th.hub = New(Options{
		DeviceID:    "gateway-test",
		QoS:         1,
		PubSub:      th.pubsub,
		Cloud:       th.cloud,
		Persistence: th.persistence,
		Server:      th.server,
		Listener:    th.listener,
		Controller:  testParams(),
		Metrics:     th.metrics,
	})
	return th
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestStart_ConnectOrder(t *testing.T) {
	th := newTestHub(t)

	if err := th.hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	th.hub.Stop(context.Background())

	want := []string{
		"persistence.connect", "pubsub.connect", "cloud.connect", "server.start",
		"server.stop", "cloud.disconnect", "pubsub.disconnect", "persistence.disconnect",
	}
	if got := th.log.list(); !reflect.DeepEqual(got, want) {
		t.Errorf("call order = %v, want %v", got, want)
	}
}

func TestStart_SubscribesAndAnnounces(t *testing.T) {
	th := newTestHub(t)

	if err := th.hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if len(th.pubsub.subscribed) != len(inboundResources) {
		t.Errorf("subscribed = %v, want %v", th.pubsub.subscribed, inboundResources)
	}
	if len(th.cloud.downlinks) != 1 || th.cloud.downlinks[0] != envelope.ResourceActuatorCommand {
		t.Errorf("cloud downlinks = %v", th.cloud.downlinks)
	}
	if n := len(th.pubsub.publishedTo(envelope.ResourceGatewayStatus)); n != 1 {
		t.Errorf("status messages after start = %d, want 1", n)
	}

	th.hub.Stop(context.Background())

	if len(th.pubsub.unsubscribed) != len(inboundResources) {
		t.Errorf("unsubscribed = %v, want %v", th.pubsub.unsubscribed, inboundResources)
	}
	if n := len(th.pubsub.publishedTo(envelope.ResourceGatewayStatus)); n != 2 {
		t.Errorf("status messages after stop = %d, want 2", n)
	}
}

func TestStart_ContinuesPastSecondaryFailures(t *testing.T) {
	th := newTestHub(t)
	th.persistence.connectErr = errMock
	th.cloud.connectErr = errMock
	th.server.startErr = errMock

	if err := th.hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, want nil when pub/sub connects", err)
	}

	status := th.hub.Status()
	for _, c := range []string{ConnectorPersistence, ConnectorCloud, ConnectorServer} {
		if !errors.Is(status[c], errMock) {
			t.Errorf("Status()[%s] = %v, want errMock", c, status[c])
		}
	}
	if status[ConnectorPubSub] != nil {
		t.Errorf("Status()[pubsub] = %v, want nil", status[ConnectorPubSub])
	}
	if len(th.cloud.downlinks) != 0 {
		t.Error("downlink subscribed on a cloud bridge that failed to connect")
	}
}

func TestStart_PubSubFailure(t *testing.T) {
	th := newTestHub(t)
	th.pubsub.connectErr = errMock

	err := th.hub.Start(context.Background())
	if !errors.Is(err, ErrPubSubUnavailable) {
		t.Fatalf("Start() error = %v, want ErrPubSubUnavailable", err)
	}

	// The remaining connectors are still started.
	calls := th.log.list()
	if calls[len(calls)-1] != "server.start" {
		t.Errorf("call order = %v, want server started", calls)
	}
}

func TestStart_PubSubDisabled(t *testing.T) {
	h := New(Options{Controller: testParams()})

	if err := h.Start(context.Background()); !errors.Is(err, ErrPubSubDisabled) {
		t.Errorf("Start() error = %v, want ErrPubSubDisabled", err)
	}
}

func TestStart_Idempotent(t *testing.T) {
	th := newTestHub(t)
	th.pubsub.connectErr = errMock

	first := th.hub.Start(context.Background())
	second := th.hub.Start(context.Background())

	if first != second {
		t.Errorf("second Start() = %v, want prior result %v", second, first)
	}
	if th.pubsub.connects != 1 {
		t.Errorf("pub/sub connected %d times, want 1", th.pubsub.connects)
	}
	if !th.hub.Running() {
		t.Error("Running() = false after Start()")
	}
}

func TestStop_BestEffort(t *testing.T) {
	th := newTestHub(t)
	if err := th.hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// mockCloud.Disconnect always fails.
	th.hub.Stop(context.Background())

	calls := th.log.list()
	if calls[len(calls)-1] != "persistence.disconnect" {
		t.Errorf("call order = %v, want persistence disconnected last", calls)
	}
	if th.metrics.connectorFailure[ConnectorCloud+".disconnect"] != 1 {
		t.Error("cloud disconnect failure not counted")
	}
	if th.hub.Running() {
		t.Error("Running() = true after Stop()")
	}
}

func TestStop_WithoutStart(t *testing.T) {
	th := newTestHub(t)
	th.hub.Stop(context.Background())

	if calls := th.log.list(); len(calls) != 0 {
		t.Errorf("Stop() before Start() touched connectors: %v", calls)
	}
}

// healthCheckingServer reads hub status while it shuts down, as an
// in-flight health request would.
type healthCheckingServer struct {
	hub     *Hub
	status  map[string]error
	blocked bool
}

func (s *healthCheckingServer) Start(context.Context) error { return nil }

func (s *healthCheckingServer) Stop(context.Context) error {
	done := make(chan map[string]error, 1)
	go func() { done <- s.hub.Status() }()
	select {
	case s.status = <-done:
	case <-time.After(2 * time.Second):
		s.blocked = true
	}
	return nil
}

func TestStatus_AvailableDuringStop(t *testing.T) {
	srv := &healthCheckingServer{}
	h := New(Options{Server: srv, Controller: testParams()})
	srv.hub = h

	if err := h.Start(context.Background()); !errors.Is(err, ErrPubSubDisabled) {
		t.Fatalf("Start() error = %v, want ErrPubSubDisabled", err)
	}
	h.Stop(context.Background())

	if srv.blocked {
		t.Fatal("Status() blocked while Stop() was stopping the server")
	}
	if err, ok := srv.status[ConnectorServer]; !ok || err != nil {
		t.Errorf("Status()[server] during Stop = %v (present %v), want nil", err, ok)
	}
}

// =============================================================================
// Sensor Reading Tests
// =============================================================================

func TestOnSensorReading_Nil(t *testing.T) {
	th := newTestHub(t)

	if th.hub.OnSensorReading(context.Background(), envelope.ResourceSensorMessage, nil) {
		t.Error("OnSensorReading(nil) = true, want false")
	}
	if th.persistence.storedCount() != 0 {
		t.Error("nil reading was persisted")
	}
}

func TestOnSensorReading_PersistsAndForwards(t *testing.T) {
	th := newTestHub(t)
	ctx := context.Background()

	if !th.hub.OnSensorReading(ctx, envelope.ResourceSensorMessage, humidity(35, 0)) {
		t.Fatal("OnSensorReading() = false")
	}

	if th.persistence.storedCount() != 1 {
		t.Errorf("stored = %d, want 1", th.persistence.storedCount())
	}
	if th.persistence.stored[0].collection != envelope.ResourceSensorMessage.String() {
		t.Errorf("collection = %q", th.persistence.stored[0].collection)
	}
	if th.cloud.readingCount() != 1 {
		t.Errorf("cloud readings = %d, want 1", th.cloud.readingCount())
	}
}

func TestOnSensorReading_TriggersActuation(t *testing.T) {
	th := newTestHub(t)
	ctx := context.Background()

	th.hub.OnSensorReading(ctx, envelope.ResourceSensorMessage, humidity(25, 0))
	th.hub.OnSensorReading(ctx, envelope.ResourceSensorMessage, humidity(25, 60))

	cmds := th.listener.received()
	if len(cmds) != 1 {
		t.Fatalf("listener received %d commands, want 1", len(cmds))
	}
	if cmds[0].Command != envelope.CommandOn || cmds[0].Value != 40 {
		t.Errorf("command = %s/%v, want ON/40", cmds[0].Command, cmds[0].Value)
	}

	published := th.pubsub.publishedTo(envelope.ResourceActuatorCommand)
	if len(published) != 1 {
		t.Fatalf("published %d commands, want 1", len(published))
	}
	if published[0].qos != 1 {
		t.Errorf("qos = %d, want 1", published[0].qos)
	}

	decoded, err := envelope.NewJSONCodec().DecodeActuatorCommand(published[0].payload)
	if err != nil {
		t.Fatalf("DecodeActuatorCommand() error = %v", err)
	}
	if decoded.Command != envelope.CommandOn {
		t.Errorf("published command = %s, want ON", decoded.Command)
	}
}

func TestOnSensorReading_UnmonitoredTypeNotEvaluated(t *testing.T) {
	th := newTestHub(t)
	ctx := context.Background()

	for i, offset := range []int{0, 600} {
		r := humidity(5, offset)
		r.TypeID = envelope.TypeTemperatureSensor
		if !th.hub.OnSensorReading(ctx, envelope.ResourceSensorMessage, r) {
			t.Fatalf("reading %d rejected", i)
		}
	}

	if n := len(th.listener.received()); n != 0 {
		t.Errorf("unmonitored type produced %d commands", n)
	}
	if th.cloud.readingCount() != 2 {
		t.Errorf("cloud readings = %d, want 2", th.cloud.readingCount())
	}
}

func TestOnSensorReading_DownstreamFailuresNonFatal(t *testing.T) {
	th := newTestHub(t)
	th.persistence.storeErr = errMock
	th.cloud.sendErr = errMock
	th.pubsub.publishErr = errMock
	ctx := context.Background()

	th.hub.OnSensorReading(ctx, envelope.ResourceSensorMessage, humidity(25, 0))
	if !th.hub.OnSensorReading(ctx, envelope.ResourceSensorMessage, humidity(25, 60)) {
		t.Fatal("OnSensorReading() = false with failing connectors")
	}

	if n := len(th.listener.received()); n != 1 {
		t.Errorf("listener received %d commands, want 1", n)
	}
	if th.metrics.connectorFailure[ConnectorPersistence+".store"] != 2 {
		t.Errorf("store failures = %d, want 2", th.metrics.connectorFailure[ConnectorPersistence+".store"])
	}
}

func TestOnSensorReading_DoesNotMutateCallerReading(t *testing.T) {
	th := newTestHub(t)
	r := humidity(25, 0)
	before := *r

	th.hub.OnSensorReading(context.Background(), envelope.ResourceSensorMessage, r)

	if *r != before {
		t.Errorf("reading mutated: %+v, want %+v", *r, before)
	}
}

// =============================================================================
// Dispatch Tests
// =============================================================================

func TestDispatchActuatorCommand_PublishFailureStillReachesListener(t *testing.T) {
	th := newTestHub(t)
	th.pubsub.publishErr = errMock

	cmd := envelope.NewActuatorCommand("HumidifierActuator", envelope.TypeHumidifierActuator, envelope.CommandOn, 40)

	if !th.hub.DispatchActuatorCommand(context.Background(), envelope.ResourceActuatorCommand, cmd) {
		t.Error("DispatchActuatorCommand() = false, want true via listener")
	}
	if n := len(th.listener.received()); n != 1 {
		t.Errorf("listener received %d commands, want 1", n)
	}
	if th.metrics.connectorFailure[ConnectorPubSub+".publish"] != 1 {
		t.Error("publish failure not counted")
	}
}

func TestDispatchActuatorCommand_ListenerFailureStillPublishes(t *testing.T) {
	th := newTestHub(t)
	th.listener.err = errMock

	cmd := envelope.NewActuatorCommand("HumidifierActuator", envelope.TypeHumidifierActuator, envelope.CommandOff, 40)

	if !th.hub.DispatchActuatorCommand(context.Background(), envelope.ResourceActuatorCommand, cmd) {
		t.Error("DispatchActuatorCommand() = false, want true via pub/sub")
	}
	if n := len(th.pubsub.publishedTo(envelope.ResourceActuatorCommand)); n != 1 {
		t.Errorf("published %d commands, want 1", n)
	}
}

func TestDispatchActuatorCommand_AllPathsFail(t *testing.T) {
	th := newTestHub(t)
	th.listener.err = errMock
	th.pubsub.publishErr = errMock

	cmd := envelope.NewActuatorCommand("HumidifierActuator", envelope.TypeHumidifierActuator, envelope.CommandOff, 40)

	if th.hub.DispatchActuatorCommand(context.Background(), envelope.ResourceActuatorCommand, cmd) {
		t.Error("DispatchActuatorCommand() = true, want false")
	}
}

func TestOnActuatorCommandRequest(t *testing.T) {
	th := newTestHub(t)
	ctx := context.Background()

	if th.hub.OnActuatorCommandRequest(ctx, envelope.ResourceActuatorCommand, nil) {
		t.Error("OnActuatorCommandRequest(nil) = true, want false")
	}

	cmd := envelope.NewActuatorCommand("HumidifierActuator", envelope.TypeHumidifierActuator, envelope.CommandOn, 40)
	if !th.hub.OnActuatorCommandRequest(ctx, envelope.ResourceActuatorCommand, cmd) {
		t.Error("OnActuatorCommandRequest() = false")
	}
	if n := len(th.listener.received()); n != 1 {
		t.Errorf("listener received %d commands, want 1", n)
	}
}

func TestSetActuatorListener(t *testing.T) {
	th := newTestHub(t)
	replacement := &mockListener{}
	th.hub.SetActuatorListener(replacement)

	cmd := envelope.NewActuatorCommand("HumidifierActuator", envelope.TypeHumidifierActuator, envelope.CommandOn, 40)
	th.hub.DispatchActuatorCommand(context.Background(), envelope.ResourceActuatorCommand, cmd)

	if len(replacement.received()) != 1 || len(th.listener.received()) != 0 {
		t.Error("command not routed to the replacement listener")
	}
}

// =============================================================================
// Actuator Response / Performance Tests
// =============================================================================

type countingEvaluator struct {
	calls atomic.Int32
}

func (e *countingEvaluator) Evaluate(*envelope.SensorReading) *envelope.ActuatorCommand {
	e.calls.Add(1)
	return nil
}

func TestOnActuatorResponse_PersistsWithoutAnalysis(t *testing.T) {
	eval := &countingEvaluator{}
	persistence := &mockPersistence{}
	h := New(Options{
		Persistence: persistence,
		Pairs:       []Pair{{SensorTypeID: envelope.TypeHumiditySensor, Evaluator: eval}},
	})

	cmd := envelope.NewActuatorCommand("HumidifierActuator", envelope.TypeHumidifierActuator, envelope.CommandOn, 40)
	if !h.OnActuatorResponse(context.Background(), envelope.ResourceActuatorResponse, cmd.AsResponse()) {
		t.Fatal("OnActuatorResponse() = false")
	}
	if h.OnActuatorResponse(context.Background(), envelope.ResourceActuatorResponse, nil) {
		t.Error("OnActuatorResponse(nil) = true, want false")
	}

	if persistence.storedCount() != 1 {
		t.Errorf("stored = %d, want 1", persistence.storedCount())
	}
	if eval.calls.Load() != 0 {
		t.Error("actuator response triggered analysis")
	}
}

func TestOnPerformanceSample(t *testing.T) {
	th := newTestHub(t)
	s := envelope.NewPerformanceSample("gateway-perf")
	s.SetUtilization(0.3, 0.5, 0.7)

	if !th.hub.OnPerformanceSample(context.Background(), envelope.ResourceSystemPerf, s) {
		t.Fatal("OnPerformanceSample() = false")
	}
	if th.hub.OnPerformanceSample(context.Background(), envelope.ResourceSystemPerf, nil) {
		t.Error("OnPerformanceSample(nil) = true, want false")
	}
	if th.persistence.storedCount() != 1 || len(th.cloud.samples) != 1 {
		t.Errorf("stored = %d, cloud samples = %d, want 1 and 1", th.persistence.storedCount(), len(th.cloud.samples))
	}
}

// =============================================================================
// Raw Inbound Tests
// =============================================================================

func TestOnRawInboundMessage(t *testing.T) {
	codec := envelope.NewJSONCodec()
	valid, err := codec.Encode(envelope.NewActuatorCommand("HumidifierActuator", envelope.TypeHumidifierActuator, envelope.CommandOn, 40))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	tests := []struct {
		name          string
		resource      envelope.Resource
		payload       []byte
		want          bool
		wantPublished int
	}{
		{name: "valid command republished", resource: envelope.ResourceActuatorCommand, payload: valid, want: true, wantPublished: 1},
		{name: "malformed payload rejected", resource: envelope.ResourceActuatorCommand, payload: []byte(`{"command":`), want: false},
		{name: "invalid command rejected", resource: envelope.ResourceActuatorCommand, payload: []byte(`{"command":9}`), want: false},
		{name: "non-command resource rejected", resource: envelope.ResourceSensorMessage, payload: valid, want: false},
		{name: "unknown resource rejected", resource: envelope.Resource("gateway/bogus"), payload: valid, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := newTestHub(t)

			got := th.hub.OnRawInboundMessage(context.Background(), tt.resource, tt.payload)
			if got != tt.want {
				t.Errorf("OnRawInboundMessage() = %v, want %v", got, tt.want)
			}
			if n := len(th.pubsub.publishedTo(envelope.ResourceActuatorCommand)); n != tt.wantPublished {
				t.Errorf("published = %d, want %d", n, tt.wantPublished)
			}
		})
	}
}

func TestHandleInbound_Routing(t *testing.T) {
	codec := envelope.NewJSONCodec()
	reading, _ := codec.Encode(humidity(35, 0))
	sample, _ := codec.Encode(envelope.NewPerformanceSample("perf"))
	resp, _ := codec.Encode(envelope.NewActuatorCommand("HumidifierActuator", envelope.TypeHumidifierActuator, envelope.CommandOn, 40).AsResponse())

	tests := []struct {
		name       string
		resource   envelope.Resource
		payload    []byte
		want       bool
		wantStored int
	}{
		{name: "sensor reading", resource: envelope.ResourceSensorMessage, payload: reading, want: true, wantStored: 1},
		{name: "performance sample", resource: envelope.ResourceSystemPerf, payload: sample, want: true, wantStored: 1},
		{name: "actuator response", resource: envelope.ResourceActuatorResponse, payload: resp, want: true, wantStored: 1},
		{name: "sample on sensor resource", resource: envelope.ResourceSensorMessage, payload: sample, want: false},
		{name: "garbage", resource: envelope.ResourceSensorMessage, payload: []byte("not json"), want: false},
		{name: "status resource", resource: envelope.ResourceGatewayStatus, payload: []byte(`{}`), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := newTestHub(t)
			if err := th.hub.Start(context.Background()); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			defer th.hub.Stop(context.Background())

			if got := th.pubsub.SimulateMessage(tt.resource, tt.payload); got != tt.want {
				t.Errorf("SimulateMessage() = %v, want %v", got, tt.want)
			}
			if th.persistence.storedCount() != tt.wantStored {
				t.Errorf("stored = %d, want %d", th.persistence.storedCount(), tt.wantStored)
			}
		})
	}
}

func TestHandleInbound_DecodeFailureCounted(t *testing.T) {
	th := newTestHub(t)

	th.hub.HandleInbound(envelope.ResourceSensorMessage, []byte("{broken"))

	if th.metrics.decodeFailures != 1 {
		t.Errorf("decode failures = %d, want 1", th.metrics.decodeFailures)
	}
}

func TestCloudDownlinkRepublished(t *testing.T) {
	th := newTestHub(t)
	if err := th.hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer th.hub.Stop(context.Background())

	payload, _ := envelope.NewJSONCodec().Encode(
		envelope.NewActuatorCommand("HumidifierActuator", envelope.TypeHumidifierActuator, envelope.CommandOff, 40))

	if !th.cloud.handler(envelope.ResourceActuatorCommand, payload) {
		t.Fatal("cloud downlink rejected")
	}
	if n := len(th.pubsub.publishedTo(envelope.ResourceActuatorCommand)); n != 1 {
		t.Errorf("published = %d, want 1", n)
	}
}

// =============================================================================
// Concurrency Tests
// =============================================================================

// recordingEvaluator wraps a controller and records the order in which
// readings reached it.
type recordingEvaluator struct {
	inner    *actuation.Controller
	inFlight atomic.Int32
	overlap  atomic.Bool

	mu      sync.Mutex
	seq     []envelope.SensorReading
	emitted []envelope.ActuatorCommand
}

func (e *recordingEvaluator) Evaluate(r *envelope.SensorReading) *envelope.ActuatorCommand {
	if e.inFlight.Add(1) > 1 {
		e.overlap.Store(true)
	}
	defer e.inFlight.Add(-1)

	cmd := e.inner.Evaluate(r)

	e.mu.Lock()
	e.seq = append(e.seq, *r)
	if cmd != nil {
		e.emitted = append(e.emitted, *cmd)
	}
	e.mu.Unlock()
	return cmd
}

func TestOnSensorReading_ConcurrentMatchesSerial(t *testing.T) {
	clock := actuation.WithClock(func() time.Time { return testStart })
	eval := &recordingEvaluator{inner: actuation.NewController(testParams(), clock)}
	listener := &mockListener{}
	pubsub := &mockPubSub{}

	h := New(Options{
		QoS:      1,
		PubSub:   pubsub,
		Listener: listener,
		Pairs:    []Pair{{SensorTypeID: envelope.TypeHumiditySensor, Evaluator: eval}},
	})

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		value := 35.0
		if i%2 == 0 {
			value = 20.0
		}
		r := humidity(value, i*30)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if !h.OnSensorReading(context.Background(), envelope.ResourceSensorMessage, r) {
				t.Error("OnSensorReading() = false")
			}
		}()
	}
	wg.Wait()

	if eval.overlap.Load() {
		t.Fatal("Evaluate() ran concurrently for the same pair")
	}
	if len(eval.seq) != n {
		t.Fatalf("evaluated %d readings, want %d", len(eval.seq), n)
	}

	serial := actuation.NewController(testParams(), clock)
	var serialEmitted []envelope.ActuatorCommand
	for i := range eval.seq {
		if cmd := serial.Evaluate(&eval.seq[i]); cmd != nil {
			serialEmitted = append(serialEmitted, *cmd)
		}
	}

	if !reflect.DeepEqual(eval.inner.State(), serial.State()) {
		t.Errorf("concurrent state = %+v, serial state = %+v", eval.inner.State(), serial.State())
	}
	if !reflect.DeepEqual(eval.emitted, serialEmitted) {
		t.Errorf("concurrent emitted %d commands, serial emitted %d", len(eval.emitted), len(serialEmitted))
	}
	if got := len(listener.received()); got != len(serialEmitted) {
		t.Errorf("listener received %d commands, want %d", got, len(serialEmitted))
	}
	if got := len(pubsub.publishedTo(envelope.ResourceActuatorCommand)); got != len(serialEmitted) {
		t.Errorf("published %d commands, want %d", got, len(serialEmitted))
	}
}

func TestStop_ConcurrentWithIngestion(t *testing.T) {
	th := newTestHub(t)
	if err := th.hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			th.hub.OnSensorReading(context.Background(), envelope.ResourceSensorMessage, humidity(float64(20+i%30), i*10))
		}(i)
	}
	th.hub.Stop(context.Background())
	wg.Wait()
}
