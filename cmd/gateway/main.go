// Gray Logic Gateway - IoT edge message hub
//
// This is the main entry point for the gateway. It loads configuration,
// builds the enabled connectors (pub/sub, resource server, cloud bridge,
// persistence), wires them into the message hub and runs until a shutdown
// signal arrives.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/actuation"
	"github.com/nerrad567/gray-logic-gateway/internal/cloud"
	"github.com/nerrad567/gray-logic-gateway/internal/hub"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-gateway/internal/metrics"
	"github.com/nerrad567/gray-logic-gateway/internal/persistence"
	"github.com/nerrad567/gray-logic-gateway/internal/pubsub"
	"github.com/nerrad567/gray-logic-gateway/internal/resource"
	"github.com/nerrad567/gray-logic-gateway/internal/sysperf"
	"github.com/nerrad567/gray-logic-gateway/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// Default configuration file path
	defaultConfigPath = "configs/config.yaml"

	// shutdownTimeout bounds connector teardown after the signal.
	shutdownTimeout = 10 * time.Second
)

func main() {
	issueFor := flag.String("issue-token", "", "print a bearer token for `subject` and exit")
	role := flag.String("token-role", "operator", "role claim of the issued token")
	ttl := flag.Duration("token-ttl", 15*time.Minute, "lifetime of the issued token")
	flag.Parse()

	if *issueFor != "" {
		if err := issueToken(os.Stdout, *issueFor, *role, *ttl); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	collector := metrics.New()

	opts, srv, err := buildHubOptions(cfg, collector, log)
	if err != nil {
		return err
	}
	gw := hub.New(opts)

	if srv != nil {
		srv.SetInboundHandler(gw.HandleInbound)
		srv.SetCommandHandler(gw.OnActuatorCommandRequest)
		srv.SetHealthSource(gw.Status)
	}

	startErr := gw.Start(ctx)
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer stopCancel()
		log.Info("stopping hub")
		gw.Stop(stopCtx)
	}()

	// Connector failures leave the hub running degraded.
	switch {
	case errors.Is(startErr, hub.ErrPubSubDisabled):
		log.Warn("pub/sub client disabled, running without broker")
	case startErr != nil:
		log.Error("pub/sub unavailable, actuation commands reach local listeners only", "error", startErr)
	}
	for name, connErr := range gw.Status() {
		if connErr != nil {
			log.Warn("connector degraded", "connector", name, "error", connErr)
		}
	}

	if cfg.SystemPerf.Enabled {
		sampler, sampErr := sysperf.New(cfg.SystemPerf, gw,
			sysperf.WithLogger(log.Component("sysperf")),
			sysperf.WithObserver(collector),
		)
		if sampErr != nil {
			log.Warn("system performance sampling unavailable", "error", sampErr)
		} else {
			sampler.Start(ctx)
			defer func() {
				log.Info("stopping system performance sampler")
				sampler.Stop()
			}()
			log.Info("system performance sampler started", "poll_seconds", cfg.SystemPerf.PollSeconds)
		}
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// buildHubOptions constructs every enabled connector. Disabled connectors
// stay nil interfaces so the hub skips them.
//
// Returns:
//   - hub.Options: Options ready for hub.New
//   - *resource.Server: The resource server, or nil when disabled
//   - error: If a connector could not be constructed
func buildHubOptions(cfg *config.Config, collector *metrics.Collector, log *logging.Logger) (hub.Options, *resource.Server, error) {
	params := controllerParams(cfg)
	params, notes := params.Normalize()
	for _, note := range notes {
		log.Warn("actuation parameter adjusted", "detail", note)
	}

	opts := hub.Options{
		DeviceID: cfg.Gateway.DeviceID,
		QoS:      byte(cfg.Gateway.QoS), //nolint:gosec // validated to 0..2 by config.Validate
		Pairs: []hub.Pair{{
			SensorTypeID: cfg.Actuation.SensorTypeID,
			Evaluator:    actuation.NewController(params),
		}},
		Controller: params,
		Logger:     log.Component("hub"),
		Metrics:    collector,
	}

	if cfg.Gateway.EnablePersistence {
		store, err := persistence.New(cfg, migrations.Source())
		if err != nil {
			return hub.Options{}, nil, fmt.Errorf("creating persistence: %w", err)
		}
		opts.Persistence = store
		log.Info("persistence enabled", "backend", cfg.Persistence.Backend)
	}

	if cfg.Gateway.EnableMQTT {
		opts.PubSub = pubsub.New(cfg.MQTT, cfg.Gateway.DeviceID,
			pubsub.WithLogger(log.Component("pubsub")),
		)
		log.Info("pub/sub client enabled",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	if cfg.Gateway.EnableCloud {
		bridge, err := cloud.New(cfg.Cloud,
			cloud.WithLogger(log.Component("cloud")),
			cloud.WithCommandTemplate(cloud.CommandTemplate{
				Name:   params.ActuatorName,
				TypeID: params.ActuatorTypeID,
				Target: params.Nominal,
			}),
		)
		if err != nil {
			return hub.Options{}, nil, fmt.Errorf("creating cloud bridge: %w", err)
		}
		opts.Cloud = bridge
		log.Info("cloud bridge enabled", "provider", cfg.Cloud.Provider, "device", cfg.Cloud.DeviceLabel)
	}

	var srv *resource.Server
	if cfg.Gateway.EnableResourceServer {
		var err error
		srv, err = resource.New(resource.Deps{
			Config:   cfg.ResourceServer,
			Security: cfg.Security,
			Logger:   log.Component("resource"),
			Metrics:  collector.Handler(),
			Version:  version,
		})
		if err != nil {
			return hub.Options{}, nil, fmt.Errorf("creating resource server: %w", err)
		}
		opts.Server = srv
		opts.Listener = srv
		if cfg.Security.JWT.Secret == "" {
			log.Warn("security.jwt.secret is empty, resource writes are unauthenticated")
		}
	}

	return opts, srv, nil
}

// controllerParams maps the actuation section onto controller parameters.
func controllerParams(cfg *config.Config) actuation.Params {
	p := actuation.DefaultParams()
	p.Floor = cfg.Actuation.Floor
	p.Ceiling = cfg.Actuation.Ceiling
	p.Nominal = cfg.Actuation.Nominal
	p.MaxExceptionWindowSeconds = cfg.Actuation.MaxExceptionWindowSeconds
	if cfg.Actuation.ActuatorName != "" {
		p.ActuatorName = cfg.Actuation.ActuatorName
	}
	if cfg.Actuation.ActuatorTypeID != 0 {
		p.ActuatorTypeID = cfg.Actuation.ActuatorTypeID
	}
	p.LocationID = cfg.Gateway.LocationID
	return p
}

// issueToken writes a signed bearer token for the resource server.
func issueToken(w io.Writer, subject, role string, ttl time.Duration) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		return errors.New("security.jwt.secret is not set")
	}

	token, err := resource.IssueToken(cfg.Security.JWT.Secret, subject, role, ttl)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

// getConfigPath returns the configuration file path.
// Uses GATEWAY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GATEWAY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
