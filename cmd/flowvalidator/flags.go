package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	Serve          bool
	ValidateConfig bool
	ShowVersion    bool

	// One-shot validation
	VersionFile  string
	FlowID       string
	CollectionID string
	Artifacts    []string
	Save         bool
}

func parseFlags(args []string, output io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("FLOWVALIDATOR_CONFIG", ""),
		"Path to a JSON configuration file (env: FLOWVALIDATOR_CONFIG)")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("FLOWVALIDATOR_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error (env: FLOWVALIDATOR_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("FLOWVALIDATOR_LOG_FORMAT", ""),
		"Log format: json, text (env: FLOWVALIDATOR_LOG_FORMAT)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("FLOWVALIDATOR_SHUTDOWN_TIMEOUT", 0),
		"Graceful shutdown timeout, overrides http.shutdown_timeout (env: FLOWVALIDATOR_SHUTDOWN_TIMEOUT)")

	fs.BoolVar(&cfg.Serve, "serve", false, "Run the validation API")
	fs.BoolVar(&cfg.ValidateConfig, "validate-config", false, "Validate configuration and exit")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")

	fs.StringVar(&cfg.VersionFile, "file", "", "Flow version JSON to validate, - for stdin")
	fs.StringVar(&cfg.FlowID, "flow", "", "Existing flow the version belongs to")
	fs.StringVar(&cfg.CollectionID, "collection", "", "Collection of a new flow")
	fs.Func("artifact", "Code file to upload, repeatable. The file name is the artifact key", func(path string) error {
		cfg.Artifacts = append(cfg.Artifacts, path)
		return nil
	})
	fs.BoolVar(&cfg.Save, "save", false, "Save the validated version as the flow's latest")

	fs.Usage = func() {
		printDetailedHelp(fs, output)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion {
		return nil
	}

	if cfg.LogLevel != "" && !contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(cfg.LogLevel)) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "" && !contains([]string{"json", "text"}, strings.ToLower(cfg.LogFormat)) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if cfg.Serve || cfg.ValidateConfig {
		if cfg.VersionFile != "" {
			return fmt.Errorf("-file cannot be combined with -serve or -validate-config")
		}
		return nil
	}

	if cfg.VersionFile == "" {
		return fmt.Errorf("one of -serve, -validate-config or -file is required")
	}
	if cfg.FlowID == "" && cfg.CollectionID == "" {
		return fmt.Errorf("-flow or -collection is required with -file")
	}
	if cfg.Save && cfg.FlowID == "" {
		return fmt.Errorf("-save requires -flow")
	}
	for _, path := range cfg.Artifacts {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("artifact not found: %s", path)
		}
	}
	return nil
}

func printDetailedHelp(fs *flag.FlagSet, w io.Writer) {
	_, _ = fmt.Fprintf(w, `%s - flow version validation

Usage: %s [options]

Options:
`, appName, appName)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(w, `
Examples:
  # Run the API with a config file
  %s -config=/etc/flowvalidator/config.json -serve

  # Validate a new version of an existing flow with its code
  %s -file=version.json -flow=01J9Z3 -artifact=script.js

  # Validate the first version of a flow in a collection
  %s -file=version.json -collection=01J9Z1 -log-level=debug -log-format=text

  # Validate configuration only
  FLOWVALIDATOR_NATS_URLS=nats://nats:4222 %s -validate-config

Version: %s
Build: %s
`, appName, appName, appName, appName, Version, BuildTime)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
