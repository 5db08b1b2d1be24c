// Package config provides configuration management for the vision middleware
// service.
//
// Configuration is loaded from JSON files with environment variable
// overrides. The surface covers the NATS connection, the slot store bucket,
// the JetStream bus streams, the optional producer, the HTTP listener, the
// WebSocket event tap, coordinator tuning, and logging.
//
// # Basic Usage
//
// Loading configuration from files with layer merging:
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.json")
//	loader.AddLayer("config/production.json") // Overrides base
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Layer Merging
//
// Configuration layers are merged with last-wins semantics:
//
//	base.json:
//	  {"store": {"bucket": "fusion-slots", "slot_ttl": "60s"}}
//
//	production.json:
//	  {"store": {"slot_ttl": "5m"}}
//
//	Result:
//	  {"store": {"bucket": "fusion-slots", "slot_ttl": "5m"}}
//
// # Environment Variable Overrides
//
// Values can be overridden with VISIONMW-prefixed environment variables,
// applied after all file layers:
//
//	# Point at a production cluster
//	export VISIONMW_NATS_URL="nats://nats-1:4222,nats://nats-2:4222"
//
//	# Scope the durable consumer per deployment
//	export VISIONMW_BUS_DURABLE="fusion-coordinator-west"
//
// # Duration Fields
//
// Duration fields (slot_ttl, ack_wait, reconnect_wait, request_timeout,
// dedupe_window) accept Go duration strings in JSON, plus a day suffix for
// long TTLs (e.g. "30s", "5m", "2d").
//
// # Security
//
// File loading applies defensive limits before parsing:
//   - File size limit (10MB) to prevent memory exhaustion
//   - JSON depth limit (100 levels) to reject pathological nesting
//   - Path validation to prevent directory traversal
//   - Regular file checks (no symlinks or device files)
package config
