// Package main runs the flow validator, either as an HTTP API or as a
// one-shot validation of a flow version file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/devops-bizzibees/activepieces/config"
	"github.com/devops-bizzibees/activepieces/flowstore"
	"github.com/devops-bizzibees/activepieces/resource"
	"github.com/devops-bizzibees/activepieces/service"
)

// Build information
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "flowvalidator"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		slog.Error("flowvalidator failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cli, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if err := validateFlags(cli); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cli.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s (%s)\n", appName, Version, BuildTime)
		return nil
	}

	cfg, err := loadConfig(cli.ConfigPath)
	if err != nil {
		return err
	}

	// The one-shot mode writes its result to stdout, so logs go to stderr
	logOut := stdout
	if !cli.Serve {
		logOut = stderr
	}
	logger := setupLogger(logOut, firstNonEmpty(cli.LogLevel, cfg.Log.Level), firstNonEmpty(cli.LogFormat, cfg.Log.Format))
	slog.SetDefault(logger)

	if cli.ValidateConfig {
		logger.Info("Configuration is valid", "config", cfg.String())
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if cli.Serve {
		shutdownTimeout := cfg.HTTP.ShutdownTimeout
		if cli.ShutdownTimeout > 0 {
			shutdownTimeout = cli.ShutdownTimeout
		}
		return a.serve(ctx, shutdownTimeout)
	}
	return validateFile(ctx, a, cli, stdin, stdout)
}

// loadConfig loads the optional config file over defaults and environment
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader.AddLayer(path)
	}
	loader.EnableValidation(true)

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// validateFile runs one candidate version through the validator and writes
// the result as JSON
func validateFile(ctx context.Context, a *app, cli *CLIConfig, stdin io.Reader, stdout io.Writer) error {
	candidate, err := readVersion(cli.VersionFile, stdin)
	if err != nil {
		return err
	}
	files, err := readArtifacts(cli.Artifacts)
	if err != nil {
		return err
	}

	collectionID := resource.OptionalFromString(cli.CollectionID)
	flowID := resource.OptionalFromString(cli.FlowID)

	start := time.Now()
	validated, err := a.validator.ValidateAndConstruct(ctx, collectionID, flowID, candidate, files)
	if err != nil {
		return fmt.Errorf("validation failed (HTTP %d): %w", service.StatusCode(err), err)
	}
	a.logger.Info("Flow version validated",
		"valid", validated.Valid,
		"steps", len(validated.Steps),
		"duration", time.Since(start))

	var out any = validated
	if cli.Save {
		id, _ := flowID.Get()
		flow, err := a.flows.SaveVersion(ctx, id, validated)
		if err != nil {
			return fmt.Errorf("save version: %w", err)
		}
		out = flow
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func readVersion(path string, stdin io.Reader) (*flowstore.FlowVersion, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}

	var v flowstore.FlowVersion
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse version %s: %w", path, err)
	}
	return &v, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// logShutdown is deferred around long-running components
func logShutdown(logger *slog.Logger, name string, err error) {
	if err != nil {
		logger.Error("Shutdown failed", "component", name, "error", err)
		return
	}
	logger.Debug("Shutdown complete", "component", name)
}
