package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported connector providers.
const (
	CloudProviderMQTT = "mqtt"
	CloudProviderHTTP = "http"

	PersistenceSQLite   = "sqlite"
	PersistenceInfluxDB = "influxdb"
)

// Config is the root configuration structure for the gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway        GatewayConfig        `yaml:"gateway"`
	Actuation      ActuationConfig      `yaml:"actuation"`
	MQTT           MQTTConfig           `yaml:"mqtt"`
	Cloud          CloudConfig          `yaml:"cloud"`
	Persistence    PersistenceConfig    `yaml:"persistence"`
	Database       DatabaseConfig       `yaml:"database"`
	InfluxDB       InfluxDBConfig       `yaml:"influxdb"`
	ResourceServer ResourceServerConfig `yaml:"resource_server"`
	SystemPerf     SystemPerfConfig     `yaml:"system_perf"`
	Logging        LoggingConfig        `yaml:"logging"`
	Security       SecurityConfig       `yaml:"security"`
}

// GatewayConfig identifies the gateway and selects which connectors run.
type GatewayConfig struct {
	DeviceID   string `yaml:"device_id"`
	LocationID string `yaml:"location_id"`

	// QoS applies to every publish, subscribe and store the hub performs.
	QoS int `yaml:"qos"`

	EnableMQTT           bool `yaml:"enable_mqtt_client"`
	EnableResourceServer bool `yaml:"enable_resource_server"`
	EnableCloud          bool `yaml:"enable_cloud_client"`
	EnablePersistence    bool `yaml:"enable_persistence_client"`
}

// ActuationConfig contains the humidity hysteresis parameters.
type ActuationConfig struct {
	Floor   float64 `yaml:"floor"`
	Ceiling float64 `yaml:"ceiling"`
	Nominal float64 `yaml:"nominal"`

	// MaxExceptionWindowSeconds is clamped by the controller, not validated here.
	MaxExceptionWindowSeconds int `yaml:"max_exception_window_seconds"`

	SensorTypeID   int    `yaml:"sensor_type_id"`
	ActuatorName   string `yaml:"actuator_name"`
	ActuatorTypeID int    `yaml:"actuator_type_id"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// TopicPrefix is prepended to every resource name.
	TopicPrefix string `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`

	// ConnectTimeout bounds the whole initial connect, retries included,
	// in seconds. Zero uses the client default.
	ConnectTimeout int `yaml:"connect_timeout"`
}

// CloudConfig selects and configures the cloud upstream bridge.
type CloudConfig struct {
	// Provider is "mqtt" or "http".
	Provider string `yaml:"provider"`

	// DeviceLabel names this gateway at the cloud service.
	DeviceLabel string `yaml:"device_label"`

	// BaseTopic is the topic root used by the mqtt provider.
	BaseTopic string `yaml:"base_topic"`

	MQTT    MQTTConfig         `yaml:"mqtt"`
	HTTP    CloudHTTPConfig    `yaml:"http"`
	Breaker CloudBreakerConfig `yaml:"breaker"`
}

// CloudHTTPConfig configures the http provider.
type CloudHTTPConfig struct {
	URL            string `yaml:"url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// CloudBreakerConfig configures the circuit breaker around upstream calls.
type CloudBreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	OpenSeconds      int `yaml:"open_seconds"`
}

// PersistenceConfig selects the persistence backend.
type PersistenceConfig struct {
	// Backend is "sqlite" or "influxdb".
	Backend string `yaml:"backend"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// ResourceServerConfig contains the request/response server settings.
type ResourceServerConfig struct {
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains settings for OBSERVE streams.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// SystemPerfConfig configures the host performance sampler.
type SystemPerfConfig struct {
	Enabled     bool   `yaml:"enabled"`
	PollSeconds int    `yaml:"poll_seconds"`
	DiskPath    string `yaml:"disk_path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings. An empty secret disables
// bearer-token checks on the resource server.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GATEWAY_SECTION_KEY
// For example: GATEWAY_DATABASE_PATH, GATEWAY_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			DeviceID:          "gateway-001",
			LocationID:        "gateway-001",
			QoS:               1,
			EnableMQTT:        true,
			EnablePersistence: true,
		},
		Actuation: ActuationConfig{
			Floor:                     30,
			Ceiling:                   50,
			Nominal:                   40,
			MaxExceptionWindowSeconds: 300,
			SensorTypeID:              1010,
			ActuatorName:              "HumidifierActuator",
			ActuatorTypeID:            1002,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "gateway",
			},
			Reconnect: MQTTReconnectConfig{
				InitialDelay:   1,
				MaxDelay:       60,
				MaxAttempts:    5,
				ConnectTimeout: 30,
			},
		},
		Cloud: CloudConfig{
			Provider:    CloudProviderMQTT,
			DeviceLabel: "gateway-001",
			BaseTopic:   "/v1.6/devices",
			MQTT: MQTTConfig{
				Broker: MQTTBrokerConfig{
					Host:     "industrial.api.ubidots.com",
					Port:     8883,
					TLS:      true,
					ClientID: "gateway-cloud",
				},
				Reconnect: MQTTReconnectConfig{
					InitialDelay:   2,
					MaxDelay:       120,
					MaxAttempts:    5,
					ConnectTimeout: 30,
				},
			},
			HTTP: CloudHTTPConfig{
				TimeoutSeconds: 10,
				MaxRetries:     3,
			},
			Breaker: CloudBreakerConfig{
				FailureThreshold: 5,
				OpenSeconds:      30,
			},
		},
		Persistence: PersistenceConfig{
			Backend: PersistenceSQLite,
		},
		Database: DatabaseConfig{
			Path:        "./data/gateway.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		ResourceServer: ResourceServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		SystemPerf: SystemPerfConfig{
			PollSeconds: 30,
			DiskPath:    "/",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GATEWAY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GATEWAY_DEVICE_ID"); v != "" {
		cfg.Gateway.DeviceID = v
	}

	// Database
	if v := os.Getenv("GATEWAY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GATEWAY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GATEWAY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GATEWAY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Cloud
	if v := os.Getenv("GATEWAY_CLOUD_TOKEN"); v != "" {
		cfg.Cloud.HTTP.Token = v
		cfg.Cloud.MQTT.Auth.Username = v
	}

	// Resource server
	if v := os.Getenv("GATEWAY_RESOURCE_SERVER_HOST"); v != "" {
		cfg.ResourceServer.Host = v
	}

	// InfluxDB
	if v := os.Getenv("GATEWAY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("GATEWAY_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Gateway.DeviceID == "" {
		errs = append(errs, "gateway.device_id is required")
	}
	if c.Gateway.QoS < 0 || c.Gateway.QoS > 2 {
		errs = append(errs, "gateway.qos must be 0, 1, or 2")
	}

	if !(c.Actuation.Floor < c.Actuation.Nominal && c.Actuation.Nominal < c.Actuation.Ceiling) {
		errs = append(errs, "actuation thresholds must satisfy floor < nominal < ceiling")
	}

	if c.Gateway.EnableMQTT && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when the mqtt client is enabled")
	}

	if c.Gateway.EnableResourceServer && (c.ResourceServer.Port < 1 || c.ResourceServer.Port > 65535) {
		errs = append(errs, "resource_server.port must be between 1 and 65535")
	}

	if c.Gateway.EnablePersistence {
		switch c.Persistence.Backend {
		case PersistenceSQLite:
			if c.Database.Path == "" {
				errs = append(errs, "database.path is required for the sqlite backend")
			}
		case PersistenceInfluxDB:
			if c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
				errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required for the influxdb backend")
			}
		default:
			errs = append(errs, fmt.Sprintf("persistence.backend %q is not supported", c.Persistence.Backend))
		}
	}

	if c.Gateway.EnableCloud {
		if c.Cloud.DeviceLabel == "" {
			errs = append(errs, "cloud.device_label is required when the cloud client is enabled")
		}
		switch c.Cloud.Provider {
		case CloudProviderMQTT:
			if c.Cloud.MQTT.Broker.Host == "" {
				errs = append(errs, "cloud.mqtt.broker.host is required for the mqtt provider")
			}
		case CloudProviderHTTP:
			if c.Cloud.HTTP.URL == "" {
				errs = append(errs, "cloud.http.url is required for the http provider")
			}
		default:
			errs = append(errs, fmt.Sprintf("cloud.provider %q is not supported", c.Cloud.Provider))
		}
	}

	if c.SystemPerf.Enabled && c.SystemPerf.PollSeconds < 1 {
		errs = append(errs, "system_perf.poll_seconds must be at least 1")
	}

	// An empty secret disables token checks; a short one is rejected.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ReadTimeout returns the resource server read timeout as a Duration.
func (c ResourceServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// WriteTimeout returns the resource server write timeout as a Duration.
func (c ResourceServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// IdleTimeout returns the resource server idle timeout as a Duration.
func (c ResourceServerConfig) IdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}

// PollInterval returns the performance sampling interval.
func (c SystemPerfConfig) PollInterval() time.Duration {
	return time.Duration(c.PollSeconds) * time.Second
}
