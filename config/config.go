package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/kagwave/vision-middleware/pkg/security"
)

// Config represents the complete service configuration
type Config struct {
	NATS     NATSConfig     `json:"nats"`
	Store    StoreConfig    `json:"store"`
	Bus      BusConfig      `json:"bus"`
	Producer ProducerConfig `json:"producer"`
	Listener ListenerConfig `json:"listener"`
	Tap      TapConfig      `json:"tap"`
	Fusion   FusionConfig   `json:"fusion"`
	Logging  LoggingConfig  `json:"logging"`
}

// NATSConfig defines NATS connection settings. URL accepts a comma-separated
// server list, which the NATS client handles natively.
type NATSConfig struct {
	URL            string        `json:"url,omitempty"`
	Name           string        `json:"name,omitempty"` // Connection name shown in server monitoring
	MaxReconnects  int           `json:"max_reconnects,omitempty"`
	ReconnectWait  time.Duration `json:"reconnect_wait,omitempty"`
	RequestTimeout time.Duration `json:"request_timeout,omitempty"`
	Username       string        `json:"username,omitempty"`
	Password       string        `json:"password,omitempty"`
	Token          string        `json:"token,omitempty"`
	TLS            NATSTLSConfig `json:"tls,omitempty"`
}

// NATSTLSConfig enables TLS on the NATS connection. The embedded client TLS
// settings feed the same loaders the HTTP listener uses, so CA bundles and
// client certificates are configured identically on both surfaces.
type NATSTLSConfig struct {
	Enabled bool `json:"enabled"`
	security.ClientTLSConfig
}

// StoreConfig defines the JetStream KV bucket that holds pending slots
type StoreConfig struct {
	Bucket         string        `json:"bucket,omitempty"`
	Namespace      string        `json:"namespace,omitempty"`
	SlotTTL        time.Duration `json:"slot_ttl,omitempty"` // Pending slot expiry
	Replicas       int           `json:"replicas,omitempty"`
	MaxClaimRounds int           `json:"max_claim_rounds,omitempty"`
}

// BusConfig defines the JetStream streams and the consumer dispatch pool
type BusConfig struct {
	PartialsStream   string        `json:"partials_stream,omitempty"`
	PartialsSubjects []string      `json:"partials_subjects,omitempty"`
	FusedStream      string        `json:"fused_stream,omitempty"`
	FusedSubjects    []string      `json:"fused_subjects,omitempty"`
	Durable          string        `json:"durable,omitempty"`
	AckWait          time.Duration `json:"ack_wait,omitempty"`
	MaxDeliver       int           `json:"max_deliver,omitempty"`
	Workers          int           `json:"workers,omitempty"`
	QueueSize        int           `json:"queue_size,omitempty"`
}

// ProducerConfig controls the outbound publishing subsystem. When disabled
// the consumer runs with a no-op publish and combined events are dropped,
// which is useful for dry-run deployments.
type ProducerConfig struct {
	Enabled bool `json:"enabled"`
}

// ListenerConfig defines the HTTP/WebSocket listener
type ListenerConfig struct {
	Port int                      `json:"port,omitempty"`
	TLS  security.ServerTLSConfig `json:"tls,omitempty"`
}

// TapConfig controls the WebSocket event tap
type TapConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
	Replay  int    `json:"replay,omitempty"` // Ring size replayed to new clients
}

// FusionConfig tunes the join coordinator
type FusionConfig struct {
	DedupeWindow time.Duration `json:"dedupe_window,omitempty"` // 0 = follow store.slot_ttl
}

// LoggingConfig controls slog output
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // text or json
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	// Use JSON marshaling/unmarshaling for deep copy
	data, err := json.Marshal(c)
	if err != nil {
		// Fallback to shallow copy if marshaling fails
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// reservedListenerPaths are owned by the listener's fixed endpoints; the tap
// path must not shadow them.
var reservedListenerPaths = []string{
	"/healthz", "/readyz", "/health", "/states", "/metrics", "/slots",
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return errors.New("nats.url is required")
	}

	if c.Store.Bucket == "" {
		return errors.New("store.bucket is required")
	}
	if !isValidBucketName(c.Store.Bucket) {
		return fmt.Errorf(
			"store.bucket '%s' is not a valid KV bucket name (must be alphanumeric with dashes, underscores)",
			c.Store.Bucket,
		)
	}
	if c.Store.Namespace == "" {
		return errors.New("store.namespace is required")
	}
	if !isValidKeyToken(c.Store.Namespace) {
		return fmt.Errorf(
			"store.namespace '%s' is not a valid key prefix (must be alphanumeric with dashes, underscores)",
			c.Store.Namespace,
		)
	}
	if c.Store.SlotTTL <= 0 {
		return errors.New("store.slot_ttl must be positive")
	}
	if c.Store.MaxClaimRounds < 1 {
		return errors.New("store.max_claim_rounds must be at least 1")
	}

	if c.Bus.PartialsStream == "" {
		return errors.New("bus.partials_stream is required")
	}
	if len(c.Bus.PartialsSubjects) == 0 {
		return errors.New("bus.partials_subjects is required")
	}
	if c.Bus.FusedStream == "" {
		return errors.New("bus.fused_stream is required")
	}
	if len(c.Bus.FusedSubjects) == 0 {
		return errors.New("bus.fused_subjects is required")
	}
	if c.Bus.Durable == "" {
		return errors.New("bus.durable is required")
	}
	if c.Bus.Workers < 1 {
		return errors.New("bus.workers must be at least 1")
	}
	if c.Bus.QueueSize < 1 {
		return errors.New("bus.queue_size must be at least 1")
	}

	if c.Listener.Port < 1 || c.Listener.Port > 65535 {
		return fmt.Errorf("listener.port %d is out of range", c.Listener.Port)
	}

	if c.Tap.Enabled {
		if !strings.HasPrefix(c.Tap.Path, "/") {
			return fmt.Errorf("tap.path '%s' must start with '/'", c.Tap.Path)
		}
		for _, reserved := range reservedListenerPaths {
			if c.Tap.Path == reserved {
				return fmt.Errorf("tap.path '%s' collides with a reserved listener endpoint", c.Tap.Path)
			}
		}
		if c.Tap.Replay < 0 {
			return errors.New("tap.replay cannot be negative")
		}
	}

	if c.Fusion.DedupeWindow < 0 {
		return errors.New("fusion.dedupe_window cannot be negative")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level '%s' is not valid (debug, info, warn, error)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format '%s' is not valid (text or json)", c.Logging.Format)
	}

	if err := c.validateSecurity(); err != nil {
		return fmt.Errorf("security configuration: %w", err)
	}

	return nil
}

// validateSecurity validates the TLS surfaces of the configuration
func (c *Config) validateSecurity() error {
	srv := c.Listener.TLS
	if srv.Enabled {
		mode := srv.Mode
		if mode == "" {
			mode = "manual"
		}
		switch mode {
		case "manual":
			if srv.CertFile == "" {
				return errors.New("listener.tls.cert_file is required when TLS is enabled")
			}
			if srv.KeyFile == "" {
				return errors.New("listener.tls.key_file is required when TLS is enabled")
			}
			if _, err := os.Stat(srv.CertFile); err != nil {
				return fmt.Errorf("listener.tls.cert_file: %w", err)
			}
			if _, err := os.Stat(srv.KeyFile); err != nil {
				return fmt.Errorf("listener.tls.key_file: %w", err)
			}
		case "acme":
			// Full ACME validation happens in the acme client; the structural
			// requirement here is that there is at least one domain to issue for.
			if len(srv.ACME.Domains) == 0 {
				return errors.New("listener.tls.acme.domains is required in acme mode")
			}
		default:
			return fmt.Errorf("listener.tls.mode '%s' is not valid (manual or acme)", srv.Mode)
		}

		if srv.MinVersion != "" {
			if err := validateTLSVersion(srv.MinVersion); err != nil {
				return fmt.Errorf("listener.tls.min_version: %w", err)
			}
		}
	}

	if c.NATS.TLS.Enabled {
		for i, caFile := range c.NATS.TLS.CAFiles {
			if _, err := os.Stat(caFile); err != nil {
				return fmt.Errorf("nats.tls.ca_files[%d]: %w", i, err)
			}
		}

		if c.NATS.TLS.MTLS.Enabled {
			if c.NATS.TLS.MTLS.CertFile == "" || c.NATS.TLS.MTLS.KeyFile == "" {
				return errors.New("nats.tls.mtls.cert_file and key_file are required when mTLS is enabled")
			}
		}

		if c.NATS.TLS.InsecureSkipVerify {
			_, _ = fmt.Fprintf(
				os.Stderr,
				"WARNING: NATS TLS certificate verification is disabled (insecure_skip_verify=true). This should only be used in development/testing!\n",
			)
		}

		if c.NATS.TLS.MinVersion != "" {
			if err := validateTLSVersion(c.NATS.TLS.MinVersion); err != nil {
				return fmt.Errorf("nats.tls.min_version: %w", err)
			}
		}
	}

	return nil
}

// isValidKeyToken checks if a string is valid as a single KV key or NATS
// subject token. Valid characters are alphanumeric, dashes, and underscores;
// dots are excluded because they separate tokens.
func isValidKeyToken(s string) bool {
	if len(s) == 0 {
		return false
	}

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// isValidBucketName checks if a string is a valid JetStream bucket name.
// Bucket names share the token character set.
func isValidBucketName(s string) bool {
	return isValidKeyToken(s)
}

// validateTLSVersion checks if a TLS version string is valid
func validateTLSVersion(version string) error {
	switch version {
	case "1.2", "1.3":
		return nil
	default:
		return fmt.Errorf("invalid TLS version %q (must be \"1.2\" or \"1.3\")", version)
	}
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: false,
		envPrefix:  "VISIONMW",
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	// Start with defaults
	cfg := l.getDefaults()

	// Load each layer and merge using map-based approach
	for _, path := range l.layers {
		rawConfig, err := l.loadRawJSON(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = l.mergeFromMap(cfg, rawConfig)
	}

	// Apply environment overrides
	l.applyEnvOverrides(cfg)

	// Fill values whose defaults depend on other fields
	l.applyDerivedDefaults(cfg)

	// Validate if enabled
	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// getDefaults returns default configuration
func (l *Loader) getDefaults() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:            "nats://localhost:4222",
			Name:           "vision-middleware",
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
			RequestTimeout: 5 * time.Second,
		},
		Store: StoreConfig{
			Bucket:         "fusion-slots",
			Namespace:      "slots",
			SlotTTL:        60 * time.Second,
			Replicas:       1,
			MaxClaimRounds: 8,
		},
		Bus: BusConfig{
			PartialsStream:   "VISION_PARTIALS",
			PartialsSubjects: []string{"vision.partial.>"},
			FusedStream:      "VISION_FUSED",
			FusedSubjects:    []string{"vision.fused.>"},
			Durable:          "fusion-coordinator",
			AckWait:          30 * time.Second,
			MaxDeliver:       5,
			Workers:          10,
			QueueSize:        1000,
		},
		Producer: ProducerConfig{
			Enabled: true,
		},
		Listener: ListenerConfig{
			Port: 8080,
		},
		Tap: TapConfig{
			Enabled: false,
			Path:    "/events",
			Replay:  64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyDerivedDefaults fills defaults that depend on other config values
func (l *Loader) applyDerivedDefaults(cfg *Config) {
	// The completion cache only needs to remember a key for as long as its
	// slot could have lived.
	if cfg.Fusion.DedupeWindow <= 0 {
		cfg.Fusion.DedupeWindow = cfg.Store.SlotTTL
	}
}

// loadRawJSON loads configuration from a JSON file as a map
func (l *Loader) loadRawJSON(path string) (map[string]any, error) {
	// Use secure file reading with validation
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	// Validate JSON depth to prevent DoS
	if err := validateJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}

	// Unmarshal into map
	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return nil, err
	}

	// Convert duration strings
	l.parseDurations(rawConfig)

	return rawConfig, nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	// Marshal the base config to JSON then to map
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	// Deep merge the maps
	mergedMap := l.deepMergeMaps(baseMap, override)

	// Convert back to Config
	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}

	return &merged
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func (l *Loader) deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any)

	// Copy base values
	for k, v := range base {
		result[k] = v
	}

	// Override with values from override map
	for k, v := range override {
		if v == nil {
			continue
		}

		// If both base and override have maps at this key, merge them
		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = l.deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		// Otherwise, override takes precedence
		result[k] = v
	}

	return result
}

// durationFields lists the config fields that accept duration strings in
// JSON (e.g. "30s", "5m", "2d"). They are rewritten to nanoseconds before
// unmarshaling.
var durationFields = map[string][]string{
	"nats":   {"reconnect_wait", "request_timeout"},
	"store":  {"slot_ttl"},
	"bus":    {"ack_wait"},
	"fusion": {"dedupe_window"},
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func (l *Loader) parseDurations(data map[string]any) {
	for section, fields := range durationFields {
		sectionMap, ok := data[section].(map[string]any)
		if !ok {
			continue
		}
		for _, field := range fields {
			if s, ok := sectionMap[field].(string); ok {
				if d, err := parseDurationWithDays(s); err == nil {
					sectionMap[field] = d.Nanoseconds()
				}
			}
		}
	}
}

// parseDurationWithDays parses durations that may include days (e.g. "14d")
func parseDurationWithDays(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days := strings.TrimSuffix(s, "d")
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// mergeConfigs merges configuration layers
// This is primarily used for testing - the main Load() uses mergeFromMap
func (l *Loader) mergeConfigs(base, override *Config) *Config {
	if override == nil {
		return base
	}

	// Convert both to maps and use the map-based merge
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	overrideJSON, err := json.Marshal(override)
	if err != nil {
		return base
	}
	var overrideMap map[string]any
	if err := json.Unmarshal(overrideJSON, &overrideMap); err != nil {
		return base
	}

	// Remove nil values from override map (these are zero values in Go structs)
	l.removeNilValues(overrideMap)

	// Merge and convert back
	mergedMap := l.deepMergeMaps(baseMap, overrideMap)
	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}

	return &merged
}

// removeNilValues recursively removes nil values from a map
func (l *Loader) removeNilValues(m map[string]any) {
	for k, v := range m {
		if v == nil {
			delete(m, k)
		} else if nested, ok := v.(map[string]any); ok {
			l.removeNilValues(nested)
		}
	}
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := l.envValue("_NATS_URL"); val != "" {
		cfg.NATS.URL = val
	}
	if val := l.envValue("_NATS_NAME"); val != "" {
		cfg.NATS.Name = val
	}
	if val := l.envValue("_NATS_USERNAME"); val != "" {
		cfg.NATS.Username = val
	}
	if val := l.envValue("_NATS_PASSWORD"); val != "" {
		cfg.NATS.Password = val
	}
	if val := l.envValue("_NATS_TOKEN"); val != "" {
		cfg.NATS.Token = val
	}
	if val := l.envValue("_STORE_BUCKET"); val != "" {
		cfg.Store.Bucket = val
	}
	if val := l.envValue("_BUS_DURABLE"); val != "" {
		cfg.Bus.Durable = val
	}
	if val := l.envValue("_LISTENER_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Listener.Port = port
		}
	}
	if val := l.envValue("_PRODUCER_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			cfg.Producer.Enabled = enabled
		}
	}
	if val := l.envValue("_TAP_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			cfg.Tap.Enabled = enabled
		}
	}
	if val := l.envValue("_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := l.envValue("_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
}

// envValue reads an environment override, dropping values that fail basic
// validation.
func (l *Loader) envValue(suffix string) string {
	key := l.envPrefix + suffix
	val := os.Getenv(key)
	if val == "" {
		return ""
	}

	if err := validateEnvVar(key, val); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "WARNING: ignoring %s: %v\n", key, err)
		return ""
	}

	return val
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	// Use secure file writing with validation
	return safeWriteFile(path, data)
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
