// Package config defines the application configuration: storage backend
// selection, NATS connection settings, log routing, and metrics export.
//
// Configuration loads from a YAML file, is checked against a JSON schema so
// misspelled sections fail loudly, and can be overridden per-field through
// SIGNALKV_* environment variables. SafeConfig wraps a validated Config for
// concurrent read and atomic replace.
package config
