package main

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devops-bizzibees/activepieces/artifact"
	"github.com/devops-bizzibees/activepieces/component"
	"github.com/devops-bizzibees/activepieces/componentregistry"
	"github.com/devops-bizzibees/activepieces/config"
	"github.com/devops-bizzibees/activepieces/flowstore"
	"github.com/devops-bizzibees/activepieces/health"
	"github.com/devops-bizzibees/activepieces/metric"
	"github.com/devops-bizzibees/activepieces/natsclient"
	"github.com/devops-bizzibees/activepieces/pkg/retry"
	"github.com/devops-bizzibees/activepieces/resource"
	"github.com/devops-bizzibees/activepieces/service"
	"github.com/devops-bizzibees/activepieces/validator"
)

// app holds the wired collaborators of the validator
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *metric.MetricsRegistry
	nats       *natsclient.Client
	resources  *resource.Store
	flows      *flowstore.Store
	artifacts  *artifact.Store
	components *component.Registry
	validator  *validator.Validator
	monitor    *health.Monitor
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if cfg.Metrics.Enabled {
		a.registry = metric.NewMetricsRegistry()
	}

	components, err := loadComponents(cfg.Components, logger)
	if err != nil {
		return nil, err
	}
	a.components = components

	if err := a.connect(ctx); err != nil {
		return nil, err
	}

	if err := a.openStores(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.validator, err = validator.New(a.resources, a.flows, a.components, a.artifacts,
		validator.WithLogger(logger.With("component", "validator")),
		validator.WithMetrics(a.registry))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create validator: %w", err)
	}

	a.monitor = health.NewMonitor(appName, logger)
	a.monitor.Register("nats", func(context.Context) health.Status {
		if a.nats.IsHealthy() {
			return health.NewStatus("nats", health.StateHealthy, "connected")
		}
		return health.NewStatus("nats", health.StateUnhealthy, a.nats.Status().String())
	})
	a.monitor.Register("components", func(context.Context) health.Status {
		n := len(a.components.ListSchemas())
		return health.NewStatus("components", health.StateHealthy, fmt.Sprintf("%d schemas registered", n))
	})

	return a, nil
}

// connect creates the NATS client from configuration and waits until it is up
func (a *app) connect(ctx context.Context) error {
	n := a.cfg.NATS
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(a.logger.With("component", "nats")),
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(n.MaxReconnects),
		natsclient.WithTimeout(n.Timeout),
	}
	if n.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(n.ReconnectWait))
	}
	if n.Username != "" {
		opts = append(opts, natsclient.WithCredentials(n.Username, n.Password))
	}
	if n.Token != "" {
		opts = append(opts, natsclient.WithToken(n.Token))
	}
	if a.registry != nil {
		opts = append(opts, natsclient.WithMetrics(a.registry.CoreMetrics()))
	}

	client, err := natsclient.NewClient(strings.Join(n.URLs, ","), opts...)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}
	a.nats = client

	if err := retry.Do(ctx, a.startupRetry("connect NATS"), func() error {
		return client.Connect(ctx)
	}); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}
	return nil
}

// startupRetry logs each failed attempt of a startup step
func (a *app) startupRetry(step string) retry.Config {
	cfg := retry.Startup()
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		a.logger.Warn("Startup step failed, retrying",
			"step", step, "attempt", attempt, "delay", delay, "error", err)
	}
	return cfg
}

// openStores creates the buckets if needed and opens the stores on them.
// JetStream may still be electing a leader right after connect, so bucket
// creation is retried.
func (a *app) openStores(ctx context.Context) error {
	var err error
	b := a.cfg.Buckets

	a.resources, err = retry.DoWithResult(ctx, a.startupRetry("open resources"), func() (*resource.Store, error) {
		return resource.OpenStore(ctx, a.nats, b.Resources,
			resource.WithMaxDepth(a.cfg.Resources.MaxDepth),
			resource.WithLogger(a.logger.With("component", "resources")))
	})
	if err != nil {
		return fmt.Errorf("open resource store: %w", err)
	}

	a.flows, err = retry.DoWithResult(ctx, a.startupRetry("open flows"), func() (*flowstore.Store, error) {
		return flowstore.OpenStore(ctx, a.nats, b.Flows, b.Versions,
			flowstore.WithVisibility(a.resources),
			flowstore.WithLogger(a.logger.With("component", "flowstore")))
	})
	if err != nil {
		return fmt.Errorf("open flow store: %w", err)
	}

	a.artifacts, err = retry.DoWithResult(ctx, a.startupRetry("open artifacts"), func() (*artifact.Store, error) {
		return artifact.OpenStore(ctx, a.nats, b.Artifacts,
			artifact.WithLogger(a.logger.With("component", "artifacts")),
			artifact.WithMetrics(a.registry))
	})
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	return nil
}

// loadComponents registers the built-in components and the optional catalog
func loadComponents(cfg config.ComponentsConfig, logger *slog.Logger) (*component.Registry, error) {
	registry := component.NewRegistry()
	if cfg.Builtins {
		if err := componentregistry.Register(registry); err != nil {
			return nil, fmt.Errorf("register components: %w", err)
		}
	}
	if cfg.Catalog != "" {
		schemas, err := component.LoadCatalogFile(cfg.Catalog)
		if err != nil {
			return nil, fmt.Errorf("load component catalog: %w", err)
		}
		if err := registry.RegisterAll(schemas); err != nil {
			return nil, fmt.Errorf("register component catalog: %w", err)
		}
	}

	refs := make([]string, 0)
	for _, s := range registry.ListSchemas() {
		refs = append(refs, s.Ref())
	}
	logger.Info("Component schemas registered", "count", len(refs), "schemas", refs)
	return registry, nil
}

// serve runs the API and the metrics endpoint until ctx is cancelled
func (a *app) serve(ctx context.Context, shutdownTimeout time.Duration) error {
	opts := []service.HandlerOption{
		service.WithLogger(a.logger.With("component", "http")),
		service.WithVersionSaver(a.flows),
		service.WithMaxUploadBytes(a.cfg.HTTP.MaxUploadBytes),
	}
	if a.registry != nil {
		opts = append(opts, service.WithHTTPMetrics(a.registry.CoreMetrics()))
	}
	handler, err := service.NewFlowVersionHandler(a.validator, opts...)
	if err != nil {
		return err
	}

	api, err := service.NewServer(service.ServerConfig{
		Port:        a.cfg.HTTP.Port,
		ReadTimeout: a.cfg.HTTP.ReadTimeout,
	}, handler, a.monitor, nil, a.logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() { errCh <- api.Start() }()

	var metricsServer *metric.Server
	if a.registry != nil {
		metricsServer = metric.NewServer(a.cfg.Metrics.Port, a.cfg.Metrics.Path, a.registry)
		go func() { errCh <- metricsServer.Start() }()
		a.logger.Info("Metrics server listening", "addr", metricsServer.Address())
	}

	a.logger.Info("flowvalidator started", "http_port", a.cfg.HTTP.Port)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Received shutdown signal")
	case runErr = <-errCh:
		if runErr != nil {
			a.logger.Error("Server stopped unexpectedly", "error", runErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logShutdown(a.logger, "api", api.Stop(shutdownCtx))
	if metricsServer != nil {
		logShutdown(a.logger, "metrics", metricsServer.Stop(shutdownCtx))
	}
	return runErr
}

// close releases the NATS connection
func (a *app) close() {
	if a.nats == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logShutdown(a.logger, "nats", a.nats.Close(ctx))
}

// readArtifacts loads code files named on the command line. The base name
// of each path is its artifact key.
func readArtifacts(paths []string) ([]artifact.File, error) {
	files := make([]artifact.File, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read artifact: %w", err)
		}
		key := filepath.Base(path)
		contentType := mime.TypeByExtension(filepath.Ext(key))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		files = append(files, artifact.File{Key: key, ContentType: contentType, Data: data})
	}
	return files, nil
}
