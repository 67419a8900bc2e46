// Package config handles loading and validating gateway configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields and threshold ordering
//   - Default value handling
//
// The configuration decides which connectors run (MQTT client, resource
// server, cloud bridge, persistence), the QoS level used by the hub, and
// the humidity hysteresis thresholds. The exception window is passed
// through unvalidated; the actuation controller clamps it.
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Gateway.DeviceID)
package config
