package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/actuation"
	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
)

// Connector names used in Status and in log/metric labels.
const (
	ConnectorPersistence = "persistence"
	ConnectorPubSub      = "pubsub"
	ConnectorCloud       = "cloud"
	ConnectorServer      = "server"
)

// inboundResources are subscribed on the pub/sub connector at start.
var inboundResources = []envelope.Resource{
	envelope.ResourceSensorMessage,
	envelope.ResourceSystemPerf,
	envelope.ResourceActuatorResponse,
}

// Pair binds a monitored sensor type to the evaluator driving its actuator.
type Pair struct {
	SensorTypeID int
	Evaluator    Evaluator
}

// Options configures a Hub. Nil connectors are disabled.
type Options struct {
	// DeviceID identifies this gateway in status messages.
	DeviceID string

	// QoS is used for every publish, subscribe and store call.
	QoS byte

	// Codec defaults to envelope.JSONCodec.
	Codec envelope.Codec

	PubSub      PubSub
	Server      RequestResponse
	Cloud       CloudBridge
	Persistence Persistence

	// Listener receives every dispatched actuator command in process.
	Listener ActuatorListener

	// Pairs overrides the monitored pairs. When empty a single
	// humidity → humidifier pair is built from Controller.
	Pairs      []Pair
	Controller actuation.Params

	Logger  Logger
	Metrics Metrics
}

// pair serialises access to one evaluator.
type pair struct {
	mu   sync.Mutex
	eval Evaluator
}

func (p *pair) evaluate(r *envelope.SensorReading) *envelope.ActuatorCommand {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.eval.Evaluate(r)
}

// Hub is the gateway message hub.
type Hub struct {
	deviceID    string
	qos         byte
	codec       envelope.Codec
	pubsub      PubSub
	server      RequestResponse
	cloud       CloudBridge
	persistence Persistence
	logger      Logger
	metrics     Metrics

	// pairs is built once in New and never modified.
	pairs map[int]*pair

	// inbound maps a record kind to its raw-payload handler.
	inbound map[envelope.Kind]func(ctx context.Context, resource envelope.Resource, payload []byte) bool

	listenerMu sync.RWMutex
	listener   ActuatorListener

	lifecycleMu sync.Mutex
	started     bool
	startErr    error

	// statusMu is separate from lifecycleMu so Status never waits on a
	// Start or Stop in progress.
	statusMu sync.RWMutex
	status   map[string]error

	// ctxMu is separate from lifecycleMu so transport callbacks arriving
	// during Start never wait on it.
	ctxMu  sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Hub. Connectors are not contacted until Start.
//
// Parameters:
//   - opts: Connectors, codec, listener and controller settings
//
// Returns:
//   - *Hub: Hub ready to Start
func New(opts Options) *Hub {
	h := &Hub{
		deviceID:    opts.DeviceID,
		qos:         opts.QoS,
		codec:       opts.Codec,
		pubsub:      opts.PubSub,
		server:      opts.Server,
		cloud:       opts.Cloud,
		persistence: opts.Persistence,
		listener:    opts.Listener,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		pairs:       make(map[int]*pair),
		status:      make(map[string]error),
	}
	if h.codec == nil {
		h.codec = envelope.NewJSONCodec()
	}
	if h.logger == nil {
		h.logger = noopLogger{}
	}
	if h.metrics == nil {
		h.metrics = noopMetrics{}
	}

	pairs := opts.Pairs
	if len(pairs) == 0 {
		params, notes := opts.Controller.Normalize()
		for _, note := range notes {
			h.logger.Warn("actuation parameter adjusted", "detail", note)
		}
		pairs = []Pair{{
			SensorTypeID: envelope.TypeHumiditySensor,
			Evaluator:    actuation.NewController(params),
		}}
	}
	for _, p := range pairs {
		if p.Evaluator == nil {
			continue
		}
		h.pairs[p.SensorTypeID] = &pair{eval: p.Evaluator}
	}

	h.inbound = map[envelope.Kind]func(context.Context, envelope.Resource, []byte) bool{
		envelope.KindSensorReading:     h.inboundSensorReading,
		envelope.KindActuatorResponse:  h.inboundActuatorResponse,
		envelope.KindPerformanceSample: h.inboundPerformanceSample,
		envelope.KindActuatorCommand:   h.OnRawInboundMessage,
	}

	return h
}

// SetActuatorListener replaces the in-process actuator listener.
// Pass nil to remove it.
func (h *Hub) SetActuatorListener(l ActuatorListener) {
	h.listenerMu.Lock()
	defer h.listenerMu.Unlock()
	h.listener = l
}

func (h *Hub) actuatorListener() ActuatorListener {
	h.listenerMu.RLock()
	defer h.listenerMu.RUnlock()
	return h.listener
}

// Start connects every configured connector. Individual failures are
// logged and recorded in Status; the returned error is nil only when the
// pub/sub connector connected. Calling Start again while started returns
// the previous result without touching the connectors.
func (h *Hub) Start(ctx context.Context) error {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()

	if h.started {
		return h.startErr
	}

	h.ctxMu.Lock()
	h.ctx, h.cancel = context.WithCancel(context.WithoutCancel(ctx))
	h.ctxMu.Unlock()
	h.statusMu.Lock()
	h.status = make(map[string]error)
	h.statusMu.Unlock()

	if h.persistence != nil {
		h.record(ConnectorPersistence, h.persistence.Connect(ctx))
	}

	if h.pubsub != nil {
		h.pubsub.SetInboundHandler(h.HandleInbound)
		err := h.pubsub.Connect(ctx)
		h.record(ConnectorPubSub, err)
		if err == nil {
			for _, r := range inboundResources {
				if err := h.pubsub.Subscribe(r, h.qos); err != nil {
					h.connectorFailed(ConnectorPubSub, "subscribe", err, "resource", r)
				}
			}
		}
	}

	if h.cloud != nil {
		h.cloud.SetInboundHandler(h.HandleInbound)
		err := h.cloud.Connect(ctx)
		h.record(ConnectorCloud, err)
		if err == nil {
			if err := h.cloud.SubscribeDownlink(envelope.ResourceActuatorCommand); err != nil {
				h.connectorFailed(ConnectorCloud, "subscribe", err, "resource", envelope.ResourceActuatorCommand)
			}
		}
	}

	if h.server != nil {
		h.record(ConnectorServer, h.server.Start(ctx))
	}

	switch ok, pubErr := h.connectorStatus(ConnectorPubSub); {
	case !ok:
		h.startErr = ErrPubSubDisabled
	case pubErr != nil:
		h.startErr = fmt.Errorf("%w: %w", ErrPubSubUnavailable, pubErr)
	default:
		h.startErr = nil
		h.publishStatus("online")
	}

	h.started = true
	h.logger.Info("hub started", "pubsub_ok", h.startErr == nil, "pairs", len(h.pairs))
	return h.startErr
}

// Stop disconnects connectors in reverse start order. A failure on one
// connector does not prevent disconnecting the others.
func (h *Hub) Stop(ctx context.Context) {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()

	if !h.started {
		return
	}

	if h.server != nil {
		if err := h.server.Stop(ctx); err != nil {
			h.connectorFailed(ConnectorServer, "stop", err)
		}
	}

	if h.cloud != nil {
		if err := h.cloud.Disconnect(); err != nil {
			h.connectorFailed(ConnectorCloud, "disconnect", err)
		}
	}

	if h.pubsub != nil {
		if _, err := h.connectorStatus(ConnectorPubSub); err == nil {
			h.publishStatus("offline")
			for _, r := range inboundResources {
				if err := h.pubsub.Unsubscribe(r); err != nil {
					h.connectorFailed(ConnectorPubSub, "unsubscribe", err, "resource", r)
				}
			}
		}
		if err := h.pubsub.Disconnect(); err != nil {
			h.connectorFailed(ConnectorPubSub, "disconnect", err)
		}
	}

	if h.persistence != nil {
		if err := h.persistence.Disconnect(); err != nil {
			h.connectorFailed(ConnectorPersistence, "disconnect", err)
		}
	}

	h.ctxMu.Lock()
	h.cancel()
	h.ctxMu.Unlock()
	h.started = false
	h.startErr = nil
	h.logger.Info("hub stopped")
}

// Status returns the connect result of every configured connector from
// the last Start. A nil value means connected. Results appear as each
// connector finishes connecting.
func (h *Hub) Status() map[string]error {
	h.statusMu.RLock()
	defer h.statusMu.RUnlock()

	out := make(map[string]error, len(h.status))
	for k, v := range h.status {
		out[k] = v
	}
	return out
}

// Running reports whether Start has been called without a matching Stop.
func (h *Hub) Running() bool {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()
	return h.started
}

// connectorStatus reports whether connector was attempted in the last
// Start and its result.
func (h *Hub) connectorStatus(connector string) (attempted bool, err error) {
	h.statusMu.RLock()
	defer h.statusMu.RUnlock()
	err, attempted = h.status[connector]
	return attempted, err
}

// record stores a connect result. Caller holds lifecycleMu.
func (h *Hub) record(connector string, err error) {
	h.statusMu.Lock()
	h.status[connector] = err
	h.statusMu.Unlock()
	if err != nil {
		h.connectorFailed(connector, "connect", err)
		return
	}
	h.logger.Info("connector connected", "connector", connector)
}

// runContext returns the context used for transport callbacks that carry
// none of their own.
func (h *Hub) runContext() context.Context {
	h.ctxMu.RLock()
	defer h.ctxMu.RUnlock()
	if h.ctx == nil {
		return context.Background()
	}
	return h.ctx
}

func (h *Hub) connectorFailed(connector, operation string, err error, args ...any) {
	h.metrics.ConnectorFailed(connector, operation)
	h.logger.Warn("connector operation failed",
		append([]any{"connector", connector, "operation", operation, "error", err}, args...)...)
}

type statusMessage struct {
	Status    string `json:"status"`
	DeviceID  string `json:"device_id"`
	Timestamp string `json:"timestamp"`
}

// publishStatus announces the gateway state. Caller holds lifecycleMu.
func (h *Hub) publishStatus(state string) {
	payload, err := json.Marshal(statusMessage{
		Status:    state,
		DeviceID:  h.deviceID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := h.pubsub.Publish(envelope.ResourceGatewayStatus, payload, h.qos); err != nil {
		h.connectorFailed(ConnectorPubSub, "publish", err, "resource", envelope.ResourceGatewayStatus)
	}
}
