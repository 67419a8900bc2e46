package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-gateway/internal/metrics"
	"github.com/nerrad567/gray-logic-gateway/internal/resource"
)

const testJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func testLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, config.LoggingConfig{Level: "error", Format: "json"}, "test")
}

// testConfig returns a valid configuration with every network connector
// disabled and persistence on a temporary SQLite file.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Gateway.DeviceID = "edge-test"
	cfg.Gateway.LocationID = "lab"
	cfg.Gateway.QoS = 1
	cfg.Gateway.EnablePersistence = true
	cfg.Actuation = config.ActuationConfig{
		Floor:                     30,
		Ceiling:                   50,
		Nominal:                   40,
		MaxExceptionWindowSeconds: 300,
		SensorTypeID:              envelope.TypeHumiditySensor,
	}
	cfg.Persistence.Backend = config.PersistenceSQLite
	cfg.Database.Path = filepath.Join(t.TempDir(), "gateway.db")
	cfg.ResourceServer.Port = 8080
	return cfg
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GATEWAY_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config error", err)
	}
}

func TestRun_ValidationFailure(t *testing.T) {
	t.Setenv("GATEWAY_CONFIG", writeConfig(t, `
gateway:
  device_id: ""
`))

	err := run(context.Background())
	if err == nil {
		t.Fatal("run() should fail validation with an empty device id")
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "gateway.db")
	t.Setenv("GATEWAY_CONFIG", writeConfig(t, fmt.Sprintf(`
gateway:
  device_id: "edge-test"
  enable_mqtt_client: false
  enable_persistence_client: true
database:
  path: %q
logging:
  level: error
  format: json
  output: stderr
`, dbPath)))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v, want clean shutdown", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("GATEWAY_CONFIG", "")
		if got := getConfigPath(); got != defaultConfigPath {
			t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
		}
	})

	t.Run("environment override", func(t *testing.T) {
		t.Setenv("GATEWAY_CONFIG", "/etc/gateway/config.yaml")
		if got := getConfigPath(); got != "/etc/gateway/config.yaml" {
			t.Errorf("getConfigPath() = %q, want override", got)
		}
	})
}

func TestControllerParams(t *testing.T) {
	cfg := testConfig(t)
	cfg.Actuation.Floor = 25
	cfg.Actuation.Nominal = 45
	cfg.Actuation.Ceiling = 55
	cfg.Actuation.MaxExceptionWindowSeconds = 60

	p := controllerParams(cfg)

	if p.Floor != 25 || p.Nominal != 45 || p.Ceiling != 55 {
		t.Errorf("thresholds = %v/%v/%v, want 25/45/55", p.Floor, p.Nominal, p.Ceiling)
	}
	if p.MaxExceptionWindowSeconds != 60 {
		t.Errorf("MaxExceptionWindowSeconds = %d, want 60", p.MaxExceptionWindowSeconds)
	}
	if p.LocationID != "lab" {
		t.Errorf("LocationID = %q, want lab", p.LocationID)
	}
	// Unset labels keep the controller defaults.
	if p.ActuatorName == "" || p.ActuatorTypeID != envelope.TypeHumidifierActuator {
		t.Errorf("actuator labels = %q/%d, want defaults", p.ActuatorName, p.ActuatorTypeID)
	}
}

func TestBuildHubOptions(t *testing.T) {
	tests := []struct {
		name            string
		modify          func(*config.Config)
		wantPersistence bool
		wantPubSub      bool
		wantCloud       bool
		wantServer      bool
	}{
		{
			name:            "persistence only",
			modify:          func(*config.Config) {},
			wantPersistence: true,
		},
		{
			name:   "everything disabled",
			modify: func(c *config.Config) { c.Gateway.EnablePersistence = false },
		},
		{
			name: "pub/sub enabled",
			modify: func(c *config.Config) {
				c.Gateway.EnableMQTT = true
				c.MQTT.Broker.Host = "localhost"
				c.MQTT.Broker.Port = 1883
			},
			wantPersistence: true,
			wantPubSub:      true,
		},
		{
			name: "http cloud enabled",
			modify: func(c *config.Config) {
				c.Gateway.EnableCloud = true
				c.Cloud.Provider = config.CloudProviderHTTP
				c.Cloud.DeviceLabel = "edge-test"
				c.Cloud.HTTP.URL = "https://cloud.example.com"
			},
			wantPersistence: true,
			wantCloud:       true,
		},
		{
			name: "resource server enabled",
			modify: func(c *config.Config) {
				c.Gateway.EnableResourceServer = true
				c.Security.JWT.Secret = testJWTSecret
			},
			wantPersistence: true,
			wantServer:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.modify(cfg)

			opts, srv, err := buildHubOptions(cfg, metrics.New(), testLogger())
			if err != nil {
				t.Fatalf("buildHubOptions() error = %v", err)
			}

			if (opts.Persistence != nil) != tt.wantPersistence {
				t.Errorf("Persistence set = %v, want %v", opts.Persistence != nil, tt.wantPersistence)
			}
			if (opts.PubSub != nil) != tt.wantPubSub {
				t.Errorf("PubSub set = %v, want %v", opts.PubSub != nil, tt.wantPubSub)
			}
			if (opts.Cloud != nil) != tt.wantCloud {
				t.Errorf("Cloud set = %v, want %v", opts.Cloud != nil, tt.wantCloud)
			}
			if (srv != nil) != tt.wantServer {
				t.Errorf("server = %v, want set %v", srv, tt.wantServer)
			}
			if (opts.Server != nil) != tt.wantServer || (opts.Listener != nil) != tt.wantServer {
				t.Errorf("Server/Listener set = %v/%v, want %v", opts.Server != nil, opts.Listener != nil, tt.wantServer)
			}
			if len(opts.Pairs) != 1 || opts.Pairs[0].SensorTypeID != envelope.TypeHumiditySensor {
				t.Errorf("Pairs = %+v, want one humidity pair", opts.Pairs)
			}
			if opts.QoS != 1 {
				t.Errorf("QoS = %d, want 1", opts.QoS)
			}
		})
	}
}

func TestBuildHubOptions_NormalisesWindow(t *testing.T) {
	cfg := testConfig(t)
	cfg.Actuation.MaxExceptionWindowSeconds = 5

	opts, _, err := buildHubOptions(cfg, metrics.New(), testLogger())
	if err != nil {
		t.Fatalf("buildHubOptions() error = %v", err)
	}
	if opts.Controller.MaxExceptionWindowSeconds != 300 {
		t.Errorf("window = %d, want fallback 300", opts.Controller.MaxExceptionWindowSeconds)
	}
}

func TestIssueToken(t *testing.T) {
	t.Setenv("GATEWAY_CONFIG", writeConfig(t, fmt.Sprintf(`
security:
  jwt:
    secret: %q
`, testJWTSecret)))

	var out bytes.Buffer
	if err := issueToken(&out, "installer", "admin", time.Hour); err != nil {
		t.Fatalf("issueToken() error = %v", err)
	}

	claims, err := resource.ParseToken(strings.TrimSpace(out.String()), testJWTSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "installer" || claims.Role != "admin" {
		t.Errorf("claims = %s/%s, want installer/admin", claims.Subject, claims.Role)
	}
}

func TestIssueToken_NoSecret(t *testing.T) {
	t.Setenv("GATEWAY_CONFIG", writeConfig(t, "gateway:\n  device_id: edge-test\n"))

	var out bytes.Buffer
	if err := issueToken(&out, "installer", "admin", time.Hour); err == nil {
		t.Fatal("issueToken() should fail without a configured secret")
	}
	if out.Len() != 0 {
		t.Errorf("issueToken() wrote %q on failure", out.String())
	}
}
