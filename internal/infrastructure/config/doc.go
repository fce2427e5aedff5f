// Package config loads and validates the KNXnet/IP client configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with KNXIP_* environment variables
//   - Validation of every section, reported in one error
//   - Building the group address to datapoint table handed to decoders
//
// Security Considerations:
//   - MQTT passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/knxip.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dec := knx.Decoder{Datapoints: cfg.DPTTable(), Style: cfg.Style()}
package config
