package hub

import (
	"context"

	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
)

// HandleInbound decodes a raw payload according to the kind carried by
// resource and routes it to the matching handler. It is registered as the
// inbound callback of the pub/sub and cloud connectors and is called by
// the request/response server for everything but actuator commands,
// which the server routes through OnActuatorCommandRequest.
//
// Returns false for unknown resources and malformed payloads.
func (h *Hub) HandleInbound(resource envelope.Resource, payload []byte) bool {
	kind, ok := resource.Kind()
	if !ok {
		h.logger.Warn("inbound message for unknown resource dropped", "resource", resource)
		return false
	}

	handle, ok := h.inbound[kind]
	if !ok {
		h.logger.Warn("no handler for resource kind", "resource", resource, "kind", kind)
		return false
	}

	return handle(h.runContext(), resource, payload)
}

func (h *Hub) inboundSensorReading(ctx context.Context, resource envelope.Resource, payload []byte) bool {
	r, err := h.codec.DecodeSensorReading(payload)
	if err != nil {
		h.decodeFailed(resource, err)
		return false
	}
	return h.OnSensorReading(ctx, resource, r)
}

func (h *Hub) inboundActuatorResponse(ctx context.Context, resource envelope.Resource, payload []byte) bool {
	resp, err := h.codec.DecodeActuatorCommand(payload)
	if err != nil {
		h.decodeFailed(resource, err)
		return false
	}
	return h.OnActuatorResponse(ctx, resource, resp)
}

func (h *Hub) inboundPerformanceSample(ctx context.Context, resource envelope.Resource, payload []byte) bool {
	s, err := h.codec.DecodePerformanceSample(payload)
	if err != nil {
		h.decodeFailed(resource, err)
		return false
	}
	return h.OnPerformanceSample(ctx, resource, s)
}

// OnSensorReading persists the reading, evaluates it when its type is
// monitored, and forwards it to the cloud bridge. Downstream failures are
// logged only; the result is false only for a nil reading.
func (h *Hub) OnSensorReading(ctx context.Context, resource envelope.Resource, r *envelope.SensorReading) bool {
	if r == nil {
		h.logger.Warn("nil sensor reading rejected", "resource", resource)
		return false
	}
	reading := *r
	h.metrics.EnvelopeReceived(envelope.KindSensorReading)
	h.logger.Debug("sensor reading received", "resource", resource, "name", reading.Name, "value", reading.Value)

	h.persist(ctx, resource, copyReading(reading))

	if p, ok := h.pairs[reading.TypeID]; ok {
		if cmd := p.evaluate(copyReading(reading)); cmd != nil {
			h.logger.Info("actuation decision",
				"sensor", reading.Name, "value", reading.Value, "command", cmd.Command.String(), "target", cmd.Value)
			h.DispatchActuatorCommand(ctx, envelope.ResourceActuatorCommand, cmd)
		}
	}

	if h.cloud != nil {
		if err := h.cloud.SendSensorReading(ctx, resource, copyReading(reading)); err != nil {
			h.connectorFailed(ConnectorCloud, "send", err, "resource", resource)
		}
	}

	return true
}

// OnActuatorResponse persists a device acknowledgement. It never triggers
// analysis.
func (h *Hub) OnActuatorResponse(ctx context.Context, resource envelope.Resource, resp *envelope.ActuatorCommand) bool {
	if resp == nil {
		h.logger.Warn("nil actuator response rejected", "resource", resource)
		return false
	}
	ack := *resp
	h.metrics.EnvelopeReceived(envelope.KindActuatorResponse)
	h.logger.Info("actuator response received",
		"resource", resource, "name", ack.Name, "command", ack.Command.String(), "state", ack.StateData)

	h.persist(ctx, resource, &ack)
	return true
}

// OnPerformanceSample persists a host performance sample and forwards it
// to the cloud bridge.
func (h *Hub) OnPerformanceSample(ctx context.Context, resource envelope.Resource, s *envelope.PerformanceSample) bool {
	if s == nil {
		h.logger.Warn("nil performance sample rejected", "resource", resource)
		return false
	}
	sample := *s
	h.metrics.EnvelopeReceived(envelope.KindPerformanceSample)

	stored := sample
	h.persist(ctx, resource, &stored)

	if h.cloud != nil {
		upstream := sample
		if err := h.cloud.SendPerformanceSample(ctx, resource, &upstream); err != nil {
			h.connectorFailed(ConnectorCloud, "send", err, "resource", resource)
		}
	}
	return true
}

// OnActuatorCommandRequest dispatches a command requested through a typed
// downlink, such as a PUT on the request/response server. Unlike
// OnRawInboundMessage it reaches the local listener as well as pub/sub.
func (h *Hub) OnActuatorCommandRequest(ctx context.Context, resource envelope.Resource, cmd *envelope.ActuatorCommand) bool {
	if cmd == nil {
		h.logger.Warn("nil actuator command rejected", "resource", resource)
		return false
	}
	return h.DispatchActuatorCommand(ctx, resource, cmd)
}

// OnRawInboundMessage validates a raw actuator command by decoding and
// re-encoding it, then republishes it on the pub/sub connector. Payloads
// for any other resource are rejected.
func (h *Hub) OnRawInboundMessage(_ context.Context, resource envelope.Resource, payload []byte) bool {
	if !resource.IsActuatorCommand() {
		h.logger.Warn("raw inbound message for non-command resource rejected", "resource", resource)
		return false
	}

	cmd, err := h.codec.DecodeActuatorCommand(payload)
	if err != nil {
		h.decodeFailed(resource, err)
		return false
	}

	data, err := h.codec.Encode(cmd)
	if err != nil {
		h.decodeFailed(resource, err)
		return false
	}

	if h.pubsub == nil {
		h.logger.Warn("pub/sub disabled, raw command not republished", "resource", resource)
		return false
	}
	if err := h.pubsub.Publish(resource, data, h.qos); err != nil {
		h.connectorFailed(ConnectorPubSub, "publish", err, "resource", resource)
		return false
	}

	h.logger.Info("raw actuator command republished", "resource", resource, "command", cmd.Command.String())
	return true
}

// DispatchActuatorCommand delivers cmd to the local listener and to the
// pub/sub connector. Each path is attempted regardless of the other's
// outcome. Returns true if at least one delivery succeeded.
func (h *Hub) DispatchActuatorCommand(_ context.Context, resource envelope.Resource, cmd *envelope.ActuatorCommand) bool {
	if cmd == nil {
		return false
	}
	out := *cmd
	h.metrics.CommandDispatched(out.Command)

	delivered := false

	if l := h.actuatorListener(); l != nil {
		if err := l.OnActuatorCommand(resource, out); err != nil {
			h.logger.Warn("local actuator listener failed", "resource", resource, "error", err)
		} else {
			delivered = true
		}
	}

	if h.pubsub != nil {
		data, err := h.codec.Encode(&out)
		if err != nil {
			h.logger.Error("encoding actuator command", "resource", resource, "error", err)
			return delivered
		}
		if err := h.pubsub.Publish(resource, data, h.qos); err != nil {
			h.connectorFailed(ConnectorPubSub, "publish", err, "resource", resource)
		} else {
			delivered = true
		}
	}

	return delivered
}

func (h *Hub) persist(ctx context.Context, resource envelope.Resource, msg envelope.Message) {
	if h.persistence == nil {
		return
	}
	if err := h.persistence.Store(ctx, resource.String(), h.qos, msg); err != nil {
		h.connectorFailed(ConnectorPersistence, "store", err, "resource", resource)
	}
}

func (h *Hub) decodeFailed(resource envelope.Resource, err error) {
	h.metrics.DecodeFailed(resource)
	h.logger.Warn("malformed inbound payload dropped", "resource", resource, "error", err)
}

func copyReading(r envelope.SensorReading) *envelope.SensorReading {
	return &r
}
