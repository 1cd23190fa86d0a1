package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tabula/pkg/catalog"
	"github.com/ajitpratap0/tabula/pkg/config"
	"github.com/ajitpratap0/tabula/pkg/errors"
	"github.com/ajitpratap0/tabula/pkg/ingest"
	jsonpool "github.com/ajitpratap0/tabula/pkg/json"
	"github.com/ajitpratap0/tabula/pkg/logger"
	"github.com/ajitpratap0/tabula/pkg/models"
	"github.com/ajitpratap0/tabula/pkg/observability"
	"github.com/ajitpratap0/tabula/pkg/schema"
	"github.com/ajitpratap0/tabula/pkg/store"
)

var version = "0.1.0"

// app carries the state built by the root command before a subcommand runs.
type app struct {
	configPath  string
	logLevel    string
	metricsAddr string
	timeout     time.Duration

	cfg      *config.Config
	log      *zap.Logger
	engine   *schema.Engine
	shutdown observability.ShutdownFunc
	metrics  *http.Server
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	os.Exit(run(&app{}, os.Args[1:]))
}

// run executes the command line in args and returns the process exit code.
// Tracing and the metrics server are shut down whether or not the command
// succeeds.
func run(a *app, args []string) int {
	defer a.teardown()

	root := a.rootCommand()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.IsRetryable(err) {
			fmt.Fprintln(os.Stderr, "the failure looks transient; retrying may succeed")
		}
		return 1
	}
	return 0
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "tabula",
		Short: "Tabula - adaptive schema inference for semi-structured records",
		Long: `Tabula infers a typed tabular schema from heterogeneous JSON records,
coerces records into typed rows and keeps the schema evolving safely.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to a YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	root.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 10*time.Minute, "Overall command timeout")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Tabula v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(
		a.inferCommand(),
		a.qualityCommand(),
		a.importCommand(),
		a.tablesCommand(),
		a.validateTypeCommand(),
		a.setTypeCommand(),
		a.exportCommand(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.metricsAddr != "" {
		cfg.Metrics.Addr = a.metricsAddr
	}
	a.cfg = cfg

	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return err
	}
	a.log = logger.With(zap.String("component", "tabula-cli"), zap.String("command", cmd.Name()))

	shutdown, err := observability.InitTracing(cmd.Context(), cfg.TracingConfig(version))
	if err != nil {
		return err
	}
	a.shutdown = shutdown

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}
	a.engine = schema.NewEngine(engineCfg, a.log)

	if cfg.Metrics.Addr != "" {
		a.serveMetrics(cfg.Metrics.Addr)
	}
	return nil
}

func (a *app) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.metrics != nil {
		_ = a.metrics.Shutdown(ctx)
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			logger.OrNop(a.log).Warn("failed to flush traces", zap.Error(err))
		}
	}
	_ = logger.Sync()
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metrics = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	a.log.Info("serving metrics", zap.String("addr", addr))
}

func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.timeout)
}

// loadBatch reads records from path when given, otherwise from the
// configured source.
func (a *app) loadBatch(ctx context.Context, path string) (models.SourceBatch, error) {
	srcCfg := a.cfg.Source
	if path != "" {
		srcCfg.Kind = "file"
		srcCfg.Path = path
	}
	if srcCfg.Kind == "" {
		return nil, fmt.Errorf("no input: pass --input or set source.kind")
	}

	src, err := ingest.New(ctx, srcCfg, a.log)
	if err != nil {
		return nil, err
	}
	batch, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", src.Name(), err)
	}
	a.log.Info("loaded records",
		zap.String("source", src.Name()),
		zap.Strings("sources", batch.SourceNames()),
		zap.Int("records", batch.TotalRecords()))
	return batch, nil
}

// openCatalog opens the configured store. The caller closes the store.
func (a *app) openCatalog(ctx context.Context) (*catalog.Service, store.Store, error) {
	st, err := store.Open(ctx, a.cfg.Store.Driver, a.cfg.Store.DSN, a.log)
	if err != nil {
		return nil, nil, err
	}
	if a.cfg.Store.Driver == store.DriverMemory {
		a.log.Warn("memory store selected; nothing persists after this command")
	}
	return catalog.NewService(st, a.engine, a.log), st, nil
}

func printJSON(v interface{}) error {
	data, err := jsonpool.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stdout, "%s\n", data)
	return err
}
