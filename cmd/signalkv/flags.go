package main

import (
	"flag"
	"fmt"
	"os"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	InstanceID  string
	Namespace   string
	ShowVersion bool
	ShowHelp    bool
	Validate    bool
}

func parseFlags() (*CLIConfig, []string) {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("SIGNALKV_CONFIG", ""),
		"Path to configuration file, empty for in-memory defaults (env: SIGNALKV_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("SIGNALKV_CLI_LOG_LEVEL", "warn"),
		"CLI log level: debug, info, warn, error (env: SIGNALKV_CLI_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("SIGNALKV_CLI_LOG_FORMAT", "text"),
		"CLI log format: json, text (env: SIGNALKV_CLI_LOG_FORMAT)")

	flag.StringVar(&cfg.InstanceID, "instance", "",
		"Engine instance to operate on, empty for the default instance")

	flag.StringVar(&cfg.Namespace, "namespace", "",
		"Key namespace to operate in, empty for no namespace")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printDetailedHelp

	flag.Parse()

	return cfg, flag.Args()
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - key-value store inspection

Usage: %s [options] <command> [args]

Commands:
  get <key>            Print the value stored at key
  set <key> <value>    Store value at key
  del <key>            Delete key
  keys                 List keys in the selected namespace
  count                Count keys in the selected namespace
  size                 Report total storage size in bytes
  clear                Delete every key in the selected namespace
  tail [level]         Stream storage diagnostics until interrupted

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Inspect a pebble-backed store
  %s --config=/etc/signalkv/config.yaml keys

  # Operate inside a namespace
  %s --config=config.yaml --namespace=auth get token

  # Validate configuration only
  %s --config=config.yaml --validate

Version: %s
`, os.Args[0], os.Args[0], os.Args[0], Version)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
