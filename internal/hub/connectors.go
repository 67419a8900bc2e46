package hub

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
)

// InboundHandler receives a raw payload addressed to a resource.
// It reports whether the payload was accepted.
type InboundHandler func(resource envelope.Resource, payload []byte) bool

// CommandHandler receives an actuator command already decoded by the
// caller. It reports whether the command was delivered.
type CommandHandler func(ctx context.Context, resource envelope.Resource, cmd *envelope.ActuatorCommand) bool

// PubSub is the publish/subscribe transport, the primary control channel.
type PubSub interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Publish(resource envelope.Resource, payload []byte, qos byte) error
	Subscribe(resource envelope.Resource, qos byte) error
	Unsubscribe(resource envelope.Resource) error

	// SetInboundHandler registers the callback for messages received on
	// subscribed resources.
	SetInboundHandler(h InboundHandler)
}

// RequestResponse is a server exposing resources for polling and
// observation. It calls back into the hub through the handler it was
// built with.
type RequestResponse interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// CloudBridge forwards telemetry upstream and receives remote actuator
// commands through its downlink.
type CloudBridge interface {
	Connect(ctx context.Context) error
	Disconnect() error
	SendSensorReading(ctx context.Context, resource envelope.Resource, r *envelope.SensorReading) error
	SendPerformanceSample(ctx context.Context, resource envelope.Resource, s *envelope.PerformanceSample) error
	SubscribeDownlink(resource envelope.Resource) error
	SetInboundHandler(h InboundHandler)
}

// Persistence is a durable store keyed by collection and time.
type Persistence interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Store(ctx context.Context, collection string, qos byte, msgs ...envelope.Message) error

	// Query returns records stored in collection between start and end
	// inclusive. A zero start or end leaves that side unbounded.
	Query(ctx context.Context, collection string, start, end time.Time) ([]envelope.Message, error)
}

// ActuatorListener is an in-process actuator receiving dispatched commands.
type ActuatorListener interface {
	OnActuatorCommand(resource envelope.Resource, cmd envelope.ActuatorCommand) error
}

// Evaluator turns a reading into an optional actuator command.
// Implementations need not be safe for concurrent use.
type Evaluator interface {
	Evaluate(r *envelope.SensorReading) *envelope.ActuatorCommand
}

// Logger is the logging interface used by the hub.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Metrics receives hub traffic counts.
type Metrics interface {
	EnvelopeReceived(kind envelope.Kind)
	DecodeFailed(resource envelope.Resource)
	ConnectorFailed(connector, operation string)
	CommandDispatched(cmd envelope.Command)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopMetrics struct{}

func (noopMetrics) EnvelopeReceived(envelope.Kind)     {}
func (noopMetrics) DecodeFailed(envelope.Resource)     {}
func (noopMetrics) ConnectorFailed(string, string)     {}
func (noopMetrics) CommandDispatched(envelope.Command) {}
