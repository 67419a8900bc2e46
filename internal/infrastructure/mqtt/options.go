package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultConnectBudget bounds ConnectWithRetry when the configuration
	// sets no connect timeout.
	defaultConnectBudget = 30 * time.Second

	// defaultConnectAttempts caps ConnectWithRetry when the configuration
	// sets no attempt limit.
	defaultConnectAttempts = 5

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12

	// defaultClientIDPrefix is used when no client id is configured.
	defaultClientIDPrefix = "gateway-"
)

// Will is a Last Will and Testament message published by the broker if
// the client disconnects unexpectedly.
type Will struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// Option configures Connect.
type Option func(*connectSettings)

type connectSettings struct {
	will   *Will
	logger Logger
}

// WithWill registers a Last Will message.
func WithWill(w Will) Option {
	return func(s *connectSettings) {
		s.will = &w
	}
}

// WithLogger sets the logger before the first connection attempt so that
// early connection events are logged.
func WithLogger(l Logger) Option {
	return func(s *connectSettings) {
		s.logger = l
	}
}

// resolveClientID returns the configured id, or a random one when empty.
// Brokers drop the older session when two clients share an id.
func resolveClientID(configured string) string {
	if configured != "" {
		return configured
	}
	return defaultClientIDPrefix + uuid.NewString()[:8]
}

// buildClientOptions creates paho MQTT options from gateway config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Auto-reconnect after the first successful connection
//   - TLS configuration (if enabled)
//   - Clean session mode
func buildClientOptions(cfg config.MQTTConfig, clientID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(clientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)

	// The initial attempt is not retried here; paho would otherwise keep
	// retrying in the background after Connect has already given up.
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	if cfg.Reconnect.MaxDelay > 0 {
		opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	}

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}
