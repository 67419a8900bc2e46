package cloud

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/actuation"
	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
	"github.com/nerrad567/gray-logic-gateway/internal/hub"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
)

// Logger is the logging interface used by the bridges.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// CommandTemplate fills in the fields of a command built from a bare
// numeric downlink value.
type CommandTemplate struct {
	Name   string
	TypeID int
	Target float64
}

// DefaultCommandTemplate addresses the humidifier with the default nominal
// humidity as its target.
func DefaultCommandTemplate() CommandTemplate {
	return CommandTemplate{
		Name:   actuation.DefaultActuatorName,
		TypeID: envelope.TypeHumidifierActuator,
		Target: actuation.DefaultNominal,
	}
}

type settings struct {
	logger     Logger
	codec      envelope.Codec
	now        func() time.Time
	template   CommandTemplate
	httpClient *http.Client
	dial       DialFunc
}

// Option configures a bridge.
type Option func(*settings)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCodec replaces the JSON codec.
func WithCodec(c envelope.Codec) Option {
	return func(s *settings) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithClock sets the clock used for messages with unparsable timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCommandTemplate sets the template for numeric downlink commands.
func WithCommandTemplate(t CommandTemplate) Option {
	return func(s *settings) { s.template = t }
}

// WithHTTPClient replaces the HTTP client of the REST bridge.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithDialer replaces the MQTT dialer of the MQTT bridge.
func WithDialer(d DialFunc) Option {
	return func(s *settings) {
		if d != nil {
			s.dial = d
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:   noopLogger{},
		codec:    envelope.NewJSONCodec(),
		now:      time.Now,
		template: DefaultCommandTemplate(),
		dial:     dialMQTT,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// New builds the bridge selected by cfg.Provider.
func New(cfg config.CloudConfig, opts ...Option) (hub.CloudBridge, error) {
	switch cfg.Provider {
	case config.CloudProviderMQTT:
		return NewMQTTBridge(cfg, opts...), nil
	case config.CloudProviderHTTP:
		return NewHTTPBridge(cfg, opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// downlinkVariable names the cloud variable carrying commands for resource.
//
//	gateway/device/actuator/command -> device-actuator-command
func downlinkVariable(resource envelope.Resource) string {
	v := strings.TrimPrefix(resource.String(), "gateway/")
	return strings.ReplaceAll(v, "/", "-")
}

// commandPayload turns a downlink message into an actuator command
// document. JSON objects pass through for the hub to validate; a bare
// number such as "1.0" becomes a command built from t.
func commandPayload(codec envelope.Codec, t CommandTemplate, payload []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return trimmed, nil
	}

	v, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadDownlink, trimmed)
	}
	cmd := envelope.Command(int(math.Round(v)))
	if !cmd.Valid() {
		return nil, fmt.Errorf("%w: command value %v", ErrBadDownlink, v)
	}

	return codec.Encode(envelope.NewActuatorCommand(t.Name, t.TypeID, cmd, t.Target))
}
