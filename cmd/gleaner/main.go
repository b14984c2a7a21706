package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/FranksOps/gleaner/internal/config"
	"github.com/FranksOps/gleaner/internal/metrics"
	"github.com/spf13/cobra"
)

var Version = "dev"

// app carries state shared by every subcommand once the root pre-run has
// loaded configuration.
type app struct {
	configFile  string
	logLevel    string
	metricsPort int

	cfg     *config.Config
	logger  *slog.Logger
	logFile io.Closer
	metrics *metrics.Server
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "gleaner",
		Short: "Discover LinkedIn posts on a topic and extract their text",
		Long: `gleaner searches for public LinkedIn posts about a topic through the
Serper search API, fetches the post pages concurrently and extracts their
readable text.

The search API key is read from SERPER_API_KEY, GLEANER_SEARCH_API_KEY or
search.api_key in the config file.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (default: config.yaml in ./configs, . or ~/.gleaner)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	root.PersistentFlags().IntVar(&a.metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port")

	root.AddCommand(
		newSearchCmd(a),
		newScrapeCmd(a),
		newRunCmd(a),
		newWatchCmd(a),
		newQueryCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("metrics-port") {
		cfg.Metrics.Port = a.metricsPort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, closer, err := setupLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	a.logger = logger
	a.logFile = closer
	slog.SetDefault(logger)

	if cfg.Metrics.Port > 0 {
		a.metrics = metrics.Start(cfg.Metrics.Port)
		logger.Info("metrics server started", "port", cfg.Metrics.Port)
	}
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := a.metrics.Stop(ctx); err != nil {
		a.logger.Warn("failed to stop metrics server", "error", err)
	}
	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
