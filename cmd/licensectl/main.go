// Package main is the entrypoint for the licensectl CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/MacJediWizard/licenseclient/internal/cache"
	"github.com/MacJediWizard/licenseclient/internal/config"
	"github.com/MacJediWizard/licenseclient/internal/licenseapi"
	"github.com/MacJediWizard/licenseclient/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath  string
	logLevel    string
	showMetrics bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "licensectl",
		Short: "License service client",
		Long: `licensectl manages content licenses on a remote license service and
normalizes free-form license text into canonical license codes.

Run 'licensectl config init' to point it at a server.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.licensectl/config.yml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&opts.showMetrics, "metrics", false, "print client metrics after the command")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(opts),
		newNormalizeCmd(),
		newLicensesCmd(opts),
		newContentCmd(opts),
		newLicenseCmd(opts),
		newCopyableCmd(opts),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "licensectl %s\n", Version)
			fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(out, "  Built:      %s\n", BuildDate)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func (o *globalOptions) resolveConfigPath() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	return config.DefaultConfigPath()
}

func (o *globalOptions) loadConfig() (*config.ClientConfig, error) {
	path, err := o.resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Logger(), nil
}

// app is the wiring for commands that talk to the license service.
type app struct {
	cfg      *config.ClientConfig
	client   *licenseapi.Client
	logger   zerolog.Logger
	registry *prometheus.Registry
	closers  []func() error
}

func (o *globalOptions) newApp(ctx context.Context) (*app, error) {
	logger, err := newLogger(o.logLevel)
	if err != nil {
		return nil, err
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.NewClientMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, registry: registry}

	var backend cache.Backend
	if cfg.Cache.RedisURL != "" {
		rb, err := cache.NewRedisBackendFromURL(ctx, cfg.Cache.RedisURL, "licensectl")
		if err != nil {
			return nil, fmt.Errorf("connect cache: %w", err)
		}
		a.closers = append(a.closers, rb.Close)
		backend = rb
		logger.Debug().Msg("using redis response cache")
	}

	client, err := licenseapi.NewFromConfig(cfg, backend, logger, m)
	if err != nil {
		a.close()
		return nil, err
	}
	a.client = client
	return a, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close resource")
		}
	}
}

func (a *app) writeMetrics(w io.Writer) error {
	families, err := a.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// run builds the app, runs fn with a signal-aware context and tears everything down.
// Metrics are written even when fn fails.
func (o *globalOptions) run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := o.newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if o.showMetrics {
		defer func() {
			if werr := a.writeMetrics(cmd.OutOrStdout()); werr != nil && err == nil {
				err = werr
			}
		}()
	}

	return fn(ctx, a)
}
