package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/neo-hunter/internal/config"
	"github.com/Sternrassler/neo-hunter/pkg/hunter"
	"github.com/Sternrassler/neo-hunter/pkg/logging"
	"github.com/Sternrassler/neo-hunter/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const skipSetup = "skip-setup"

// app holds the state shared by the subcommands of one invocation.
type app struct {
	cfgFile     string
	apiKey      string
	verbose     bool
	metricsAddr string
	output      string

	cfg     *config.Config
	hunter  *hunter.Hunter
	redis   *redis.Client
	metrics *metrics.Server
	logger  zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "neo-hunter",
		Short: "Near-Earth asteroid reports from NASA NeoWs",
		Long: `neo-hunter fetches asteroid records from the NASA Near Earth Object Web
Service and derives three reports from them.

Example usage:
  neo-hunter closest --limit 2          # Closest Earth approach per asteroid
  neo-hunter month --date 2021-10       # Every approach of a calendar month
  neo-hunter misses --threshold 10      # Nearest misses across the catalogue
  neo-hunter all                        # All three reports`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipSetup] != "" {
				return nil
			}
			return a.setup(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is .neo-hunter.yaml)")
	flags.StringVar(&a.apiKey, "key", "", "NeoWs API key (default NASA_API_KEY or DEMO_KEY)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	flags.StringVarP(&a.output, "output", "o", "json", "output format: json or table")

	rootCmd.AddCommand(
		newClosestCmd(a),
		newMonthCmd(a),
		newMissesCmd(a),
		newAllCmd(a),
		newVersionCmd(),
	)

	return rootCmd
}

// setup loads configuration, applies flag overrides and creates the hunter.
func (a *app) setup(cmd *cobra.Command) error {
	if a.output != "json" && a.output != "table" {
		return fmt.Errorf("invalid --output %q (must be json or table)", a.output)
	}

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.apiKey != "" {
		cfg.API.Key = a.apiKey
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	if a.metricsAddr != "" {
		cfg.Metrics.Addr = a.metricsAddr
	}
	a.cfg = cfg

	logging.Setup(cfg.LoggingConfig())
	a.logger = logging.NewLogger(logging.ComponentCLI)

	a.redis = cfg.RedisClient()
	if a.redis != nil {
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
		defer cancel()
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, quota tracking disabled")
			a.redis.Close()
			a.redis = nil
		}
	}

	a.hunter, err = hunter.New(cfg.HunterConfig(a.redis))
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		a.metrics, err = metrics.Listen(cfg.Metrics.Addr)
		if err != nil {
			a.teardown()
			return err
		}
		a.logger.Info().Str("addr", a.metrics.Addr()).Msg("Serving metrics")
	}

	a.logger.Debug().
		Str("base_url", cfg.API.BaseURL).
		Bool("redis", a.redis != nil).
		Msg("Configuration loaded")
	return nil
}

// run wraps a report so resources from setup are released whatever its outcome.
func (a *app) run(report func(cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.teardown()
		return report(cmd)
	}
}

func (a *app) teardown() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}
	if a.hunter != nil {
		a.hunter.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
