package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/specforge/config"
	"github.com/c360studio/specforge/generator"
	"github.com/c360studio/specforge/llm"
	"github.com/c360studio/specforge/llm/providers"
	"github.com/c360studio/specforge/output"
	"github.com/c360studio/specforge/prompt"
	"github.com/c360studio/specforge/storage"
	"github.com/c360studio/specforge/telemetry"
	"github.com/c360studio/specforge/worker"
)

// App wires configuration, the model gateway, the pipeline and storage.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	gateway   *llm.Gateway
	generator *generator.Generator
	pool      *worker.Pool
	printer   *output.Printer

	// Storage
	projects *storage.ProjectStore
	kv       *storage.KVStore
	calls    *storage.CallLog
	natsConn *nats.Conn

	metricsServer *http.Server
	shutdownTrace telemetry.ShutdownFunc
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath  string
	logLevel    string
	metricsAddr string
	noColor     bool
}

// newLogger builds the stderr logger. An empty level means info.
func newLogger(level string) (*slog.Logger, error) {
	lvl := slog.LevelInfo
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if isTerminal(os.Stderr) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewApp loads configuration and builds every component. NATS is only
// contacted when storage.nats_url is set.
func NewApp(ctx context.Context, flags globalFlags) (*App, error) {
	logger, err := newLogger(flags.logLevel)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	cfg, err := config.NewLoader(logger).Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		pool:     worker.NewPool(cfg.Pipeline.Workers, worker.WithLogger(logger)),
		printer:  output.NewPrinter(os.Stdout, !flags.noColor && isTerminal(os.Stdout)),
		projects: storage.NewProjectStore(cfg.Storage.ProjectsDir, storage.WithProjectLogger(logger)),
	}

	a.shutdownTrace, err = telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    appName,
		ServiceVersion: Version,
		Exporter:       cfg.Telemetry.TraceExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		Writer:         os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	if cfg.Storage.NATSURL != "" {
		if err := a.connectNATS(ctx); err != nil {
			return nil, err
		}
	}

	renderer := prompt.NewDefaultRenderer()
	if cfg.Templates.Dir != "" {
		renderer, err = prompt.NewRendererFromDir(cfg.Templates.Dir)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load templates: %w", err)
		}
	}

	reg := cfg.Registry()
	gwOpts := []llm.GatewayOption{
		llm.WithTimeout(cfg.Model.Timeout),
		llm.WithLogger(logger),
		llm.WithPreferredProvider(cfg.Model.Preferred),
	}
	if cfg.Model.SystemPrompt != "" {
		gwOpts = append(gwOpts, llm.WithSystemPrompt(cfg.Model.SystemPrompt))
	}
	if cfg.Model.RequestsPerSecond > 0 {
		gwOpts = append(gwOpts, llm.WithRateLimit(cfg.Model.RequestsPerSecond, 1))
	}
	if a.calls != nil {
		gwOpts = append(gwOpts, llm.WithCallRecorder(a.calls))
	}
	a.gateway = llm.NewGateway(reg, cfg.Credentials(reg), providers.Default(), gwOpts...)

	a.generator = generator.New(a.gateway,
		generator.WithRenderer(renderer),
		generator.WithMaxRepairAttempts(cfg.Pipeline.MaxRepairAttempts),
		generator.WithDomainContexts(cfg.DomainContexts()),
		generator.WithLogger(logger))

	if flags.metricsAddr != "" {
		a.serveMetrics(flags.metricsAddr)
	}

	return a, nil
}

func (a *App) connectNATS(ctx context.Context) error {
	a.logger.Info("Connecting to NATS", "url", a.cfg.Storage.NATSURL)
	nc, js, err := storage.Connect(a.cfg.Storage.NATSURL)
	if err != nil {
		return err
	}
	a.natsConn = nc

	if a.kv, err = storage.NewKVStore(ctx, js, a.logger); err != nil {
		a.Close()
		return fmt.Errorf("initialize storage: %w", err)
	}
	if a.calls, err = storage.NewCallLog(ctx, js); err != nil {
		// Call logging is optional.
		a.logger.Warn("Failed to initialize call log", "error", err)
		a.calls = nil
	}
	return nil
}

func (a *App) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metricsServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("Metrics server stopped", "error", err)
		}
	}()
	a.logger.Debug("Serving metrics", "addr", addr)
}

// Save writes s (and report) to the project directory and, when configured,
// to the KV bucket.
func (a *App) Save(ctx context.Context, project string, s *specWithReport) error {
	dir, err := a.projects.Write(ctx, project, s.spec, s.report)
	if err != nil {
		return err
	}
	a.printer.Location("Saved", dir)

	if a.kv != nil {
		loc, err := a.kv.Write(ctx, project, s.spec, s.report)
		if err != nil {
			return err
		}
		a.printer.Location("Stored", loc)
	}
	return nil
}

// Close releases the worker pool, flushes spans, and stops the metrics
// server and the NATS connection.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if a.shutdownTrace != nil {
		if err := a.shutdownTrace(ctx); err != nil {
			a.logger.Warn("Failed to flush spans", "error", err)
		}
	}
	if a.metricsServer != nil {
		_ = a.metricsServer.Shutdown(ctx)
	}
	if a.natsConn != nil {
		_ = a.natsConn.Drain()
	}
}
