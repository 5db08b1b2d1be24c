// Package main implements the entry point for the vision middleware, the
// coordination service that joins per-frame pose and segmentation partials
// into combined perception events.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/kagwave/vision-middleware/bus"
	"github.com/kagwave/vision-middleware/config"
	"github.com/kagwave/vision-middleware/fusion"
	"github.com/kagwave/vision-middleware/metric"
	"github.com/kagwave/vision-middleware/natsclient"
	"github.com/kagwave/vision-middleware/pkg/cache"
	"github.com/kagwave/vision-middleware/pkg/tlsutil"
	"github.com/kagwave/vision-middleware/service"
	"github.com/kagwave/vision-middleware/slotstore"
	"github.com/kagwave/vision-middleware/tap"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "vision-middleware"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate configuration
	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	// The bootstrap logger only knows the flag values; rebuild it now that
	// the config has the final logging settings.
	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	ctx := context.Background()
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	// Setup core infrastructure
	metricsRegistry := metric.NewMetricsRegistry()
	natsClient, err := createNATSClient(cfg, metricsRegistry, logger)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}

	if err := connectToNATS(signalCtx, natsClient); err != nil {
		return err
	}
	defer func() { _ = natsClient.Close(ctx) }()

	// Assemble the pipeline and its lifecycle
	orch, err := buildService(signalCtx, cfg, natsClient, metricsRegistry, logger)
	if err != nil {
		return err
	}

	return runUntilSignal(signalCtx, orch, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up bootstrap logging
func initializeCLI() (*CLIConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting vision middleware (pose and mask fusion)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, false, nil
}

// initializeConfiguration loads configuration and applies flag overrides
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// Flags beat the config file
	if cliCfg.LogLevel != "" {
		cfg.Logging.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Logging.Format = cliCfg.LogFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// createNATSClient builds the shared NATS client from configuration
func createNATSClient(
	cfg *config.Config,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithName(cfg.NATS.Name),
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(registry),
	}

	if cfg.NATS.MaxReconnects != 0 {
		opts = append(opts, natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects))
	}
	if cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait))
	}
	if cfg.NATS.RequestTimeout > 0 {
		opts = append(opts, natsclient.WithTimeout(cfg.NATS.RequestTimeout))
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	if cfg.NATS.TLS.Enabled {
		tlsCfg, err := tlsutil.LoadClientTLSConfigWithMTLS(cfg.NATS.TLS.ClientTLSConfig, cfg.NATS.TLS.MTLS)
		if err != nil {
			return nil, fmt.Errorf("load NATS TLS config: %w", err)
		}
		opts = append(opts, natsclient.WithTLSConfig(tlsCfg))
	}

	return natsclient.NewClient(cfg.NATS.URL, opts...)
}

// connectToNATS establishes the NATS connection and waits for it to be ready
func connectToNATS(ctx context.Context, natsClient *natsclient.Client) error {
	slog.Info("Connecting to NATS", "url", natsClient.URL())
	if err := natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := natsClient.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}

	return nil
}

// buildService wires the slot store, join coordinator, bus legs, listener,
// and tap into an orchestrator. Subsystems are constructed but not started;
// the orchestrator owns start order.
func buildService(
	ctx context.Context,
	cfg *config.Config,
	natsClient *natsclient.Client,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*service.Orchestrator, error) {
	store, err := slotstore.NewNATS(natsClient, cfg.Store.Bucket,
		slotstore.WithTTL(cfg.Store.SlotTTL),
		slotstore.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create slot store: %w", err)
	}

	// The completion cache remembers combined keys for one dedupe window so
	// post-combine replays answer Duplicate without touching the store. Its
	// janitor runs until the signal context cancels.
	completed, err := cache.NewTTL[struct{}](ctx, cfg.Fusion.DedupeWindow, cfg.Fusion.DedupeWindow/2)
	if err != nil {
		return nil, fmt.Errorf("create completion cache: %w", err)
	}

	coordinator, err := fusion.NewCoordinator(store,
		fusion.WithNamespace(cfg.Store.Namespace),
		fusion.WithCompletionCache(completed),
		fusion.WithMaxRounds(cfg.Store.MaxClaimRounds),
		fusion.WithMetrics(registry),
		fusion.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create coordinator: %w", err)
	}

	handler, err := fusion.NewHandler(coordinator, appName, logger)
	if err != nil {
		return nil, fmt.Errorf("create fusion handler: %w", err)
	}

	var producer *bus.Producer
	publish := bus.NopPublish()
	if cfg.Producer.Enabled {
		producer, err = bus.NewProducer(natsClient, bus.ProducerConfig{
			Stream:   cfg.Bus.FusedStream,
			Subjects: cfg.Bus.FusedSubjects,
			Logger:   logger,
			Registry: registry,
		})
		if err != nil {
			return nil, fmt.Errorf("create producer: %w", err)
		}
		publish = producer.Bind()
	} else {
		slog.Info("Producer disabled, combined events will not be published")
	}

	consumer, err := bus.NewConsumer(natsClient, bus.ConsumerConfig{
		Stream:     cfg.Bus.PartialsStream,
		Subjects:   cfg.Bus.PartialsSubjects,
		Durable:    cfg.Bus.Durable,
		AckWait:    cfg.Bus.AckWait,
		MaxDeliver: cfg.Bus.MaxDeliver,
		Workers:    cfg.Bus.Workers,
		QueueSize:  cfg.Bus.QueueSize,
		Logger:     logger,
		Registry:   registry,
	}, handler.Handle, publish)
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	listener, err := service.NewListener(service.ListenerConfig{
		Port:      cfg.Listener.Port,
		Namespace: cfg.Store.Namespace,
		TLS:       cfg.Listener.TLS,
		Registry:  registry,
		Logger:    logger,
	}, store)
	if err != nil {
		return nil, fmt.Errorf("create listener: %w", err)
	}

	subs := service.Subsystems{
		Store:    service.StoreSubsystem(store),
		Listener: listener,
		Consumer: consumer,
	}
	if producer != nil {
		subs.Producer = producer
	}

	if cfg.Tap.Enabled {
		eventTap, err := tap.NewTap(natsClient, tap.Config{
			Replay:   cfg.Tap.Replay,
			Logger:   logger,
			Registry: registry,
		})
		if err != nil {
			return nil, fmt.Errorf("create event tap: %w", err)
		}
		listener.MountTap(cfg.Tap.Path, eventTap.Handler())
		subs.Tap = eventTap
		slog.Info("Event tap enabled", "path", cfg.Tap.Path, "replay", cfg.Tap.Replay)
	}

	orch, err := service.NewOrchestrator(subs, logger)
	if err != nil {
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}
	listener.BindLifecycle(orch)

	return orch, nil
}

// runUntilSignal starts the service and blocks until shutdown
func runUntilSignal(ctx context.Context, orch *service.Orchestrator, shutdownTimeout time.Duration) error {
	if err := orch.Start(ctx); err != nil {
		// Subsystems before the failed one are still running; stop them
		// before exiting.
		if stopErr := orch.Stop(shutdownTimeout); stopErr != nil {
			slog.Error("Cleanup after failed start", "error", stopErr)
		}
		return fmt.Errorf("start service: %w", err)
	}

	slog.Info("vision-middleware started successfully", "states", orch.States())

	<-ctx.Done()
	slog.Info("Received shutdown signal")

	if err := orch.Stop(shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("vision-middleware shutdown complete")
	return nil
}
