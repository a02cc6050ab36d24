package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dave-morgan/signalkv/logging"
)

// Storage backend constants
const (
	BackendMemory = "memory" // In-memory only, lost on restart
	BackendPebble = "pebble" // Embedded Pebble LSM store
	BackendBadger = "badger" // Embedded Badger LSM store
	BackendNATS   = "nats"   // NATS JetStream key-value buckets
)

// Config represents the complete application configuration.
type Config struct {
	// AppID labels log routing for this application. Empty means a random
	// identifier is generated on first use.
	AppID    string        `json:"app_id" yaml:"app_id"`
	LogLevel string        `json:"log_level,omitempty" yaml:"log_level"`
	Storage  StorageConfig `json:"storage" yaml:"storage"`
	Metrics  MetricsConfig `json:"metrics,omitempty" yaml:"metrics"`
}

// StorageConfig selects and parameterizes the engine backend.
type StorageConfig struct {
	Backend string     `json:"backend" yaml:"backend"`
	DataDir string     `json:"data_dir,omitempty" yaml:"data_dir"` // pebble and badger
	NATS    NATSConfig `json:"nats,omitempty" yaml:"nats"`
}

// NATSConfig defines the JetStream connection for the nats backend.
type NATSConfig struct {
	URL           string   `json:"url,omitempty" yaml:"url"`
	BucketPrefix  string   `json:"bucket_prefix,omitempty" yaml:"bucket_prefix"`
	Timeout       Duration `json:"timeout,omitempty" yaml:"timeout"`
	MaxReconnects int      `json:"max_reconnects,omitempty" yaml:"max_reconnects"`
	Username      string   `json:"username,omitempty" yaml:"username"`
	Password      string   `json:"password,omitempty" yaml:"password"`
	Token         string   `json:"token,omitempty" yaml:"token"`
}

// Duration accepts Go duration text ("5s") or integer nanoseconds in YAML
// documents and environment overrides.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err == nil {
		parsed, err := time.ParseDuration(text)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", text, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var nanos int64
	if err := node.Decode(&nanos); err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	*d = Duration(nanos)
	return nil
}

// MarshalJSON renders the duration as Go duration text.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MetricsConfig toggles Prometheus export of store and client counters.
type MetricsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Default returns a configuration with the in-memory backend and logging off.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Backend: BackendMemory},
	}
}

// Validate checks if the config is valid and normalizes case-insensitive
// fields in place.
func (c *Config) Validate() error {
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPebble, BackendBadger:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage.data_dir is required for the %s backend", c.Storage.Backend)
		}
	case BackendNATS:
		if c.Storage.NATS.URL == "" {
			return errors.New("storage.nats.url is required for the nats backend")
		}
		if c.Storage.NATS.Timeout < 0 {
			return errors.New("storage.nats.timeout cannot be negative")
		}
	case "":
		return errors.New("storage.backend is required")
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.LogLevel != "" {
		if _, err := logging.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}

	return nil
}

// Clone creates a deep copy of the configuration. Config holds only value
// fields today, so the value-copy fallback is still a full copy; the warning
// exists so the degradation is visible if a reference field is ever added.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		slog.Warn("config clone fell back to a value copy", "error", err)
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		slog.Warn("config clone fell back to a value copy", "error", err)
		copied := *c
		return &copied
	}
	return &clone
}

// SafeConfig provides thread-safe access to configuration.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}
