package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// configSchema rejects malformed documents before they are bound to the
// Config struct, so typos in section names surface as schema errors instead
// of silently-ignored fields.
const configSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"app_id": {"type": "string"},
		"log_level": {"type": "string"},
		"storage": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"backend": {"type": "string"},
				"data_dir": {"type": "string"},
				"nats": {
					"type": "object",
					"additionalProperties": false,
					"properties": {
						"url": {"type": "string"},
						"bucket_prefix": {"type": "string"},
						"timeout": {"type": ["string", "integer"]},
						"max_reconnects": {"type": "integer"},
						"username": {"type": "string"},
						"password": {"type": "string"},
						"token": {"type": "string"}
					}
				}
			}
		},
		"metrics": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"enabled": {"type": "boolean"}
			}
		}
	}
}`

// Load reads a YAML configuration file, validates it against the document
// schema, applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML. Environment overrides are applied
// after the document is bound.
func Parse(data []byte) (*Config, error) {
	var document map[string]any
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}
	if document != nil {
		if err := validateDocument(document); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("bind config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateDocument(document map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return fmt.Errorf("validate config document: %w", err)
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return fmt.Errorf("invalid config document: %s: %s", first.Field(), first.Description())
	}
	return nil
}

// Environment variables override file values, so deployments can point the
// same config file at different storage without editing it.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SIGNALKV_APP_ID"); v != "" {
		cfg.AppID = v
	}
	if v := os.Getenv("SIGNALKV_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SIGNALKV_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("SIGNALKV_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SIGNALKV_NATS_URL"); v != "" {
		cfg.Storage.NATS.URL = v
	}
	if v := os.Getenv("SIGNALKV_NATS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Storage.NATS.Timeout = Duration(d)
		}
	}
	if v := os.Getenv("SIGNALKV_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
}
