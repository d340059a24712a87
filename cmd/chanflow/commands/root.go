package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kbukum/chanflow/config"
	"github.com/kbukum/chanflow/logger"
	"github.com/kbukum/chanflow/observability"
	"github.com/kbukum/chanflow/pipeline"
	"github.com/kbukum/chanflow/version"
)

const serviceName = "chanflow"

var (
	// Global flags
	configFile string
	envFile    string
	verbose    bool

	appConfig config.AppConfig
	metrics   *observability.StreamMetrics
	shutdown  observability.ShutdownFunc
)

var rootCmd = &cobra.Command{
	Use:   "chanflow",
	Short: "Channel pipeline demos",
	Long: `chanflow - demos of the chanflow stream engine.

Each command assembles a source, a few stages and a sink, and runs it.

Configuration is read from cmd/chanflow/config.yml, config/config.yml or
./config.yml, then from .env and the environment (STREAM_WIDTH overrides
stream.width). Command flags override both.

Examples:
  chanflow squares --from 1 --to 10 --width 2
  chanflow wordcount --dir ./data --batch 2`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: search standard locations)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", ".env file (default: search standard locations)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// setup loads configuration and installs logging and telemetry.
func setup(cmd *cobra.Command, _ []string) error {
	opts := []config.LoaderOption{config.WithDefaults(config.Defaults())}
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}

	var cfg config.AppConfig
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		return err
	}
	if cfg.Version == "" {
		cfg.Version = version.Short()
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	appConfig = cfg
	logger.Init(cfg.Logging)
	logger.Reset()
	logger.RegisterStages(cfg.Logging.Stages)

	sd, err := observability.Setup(cmd.Context(), cfg.Name, cfg.Version, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	shutdown = sd

	m, err := observability.NewStreamMetrics(observability.Meter(serviceName))
	if err != nil {
		return err
	}
	metrics = m
	return nil
}

func teardown(cmd *cobra.Command, _ []string) error {
	if shutdown == nil {
		return nil
	}
	return shutdown(context.WithoutCancel(cmd.Context()))
}

// stageOptions returns the options every demo stage shares, plus a name.
// Stages listed under logging.stages log at their own level.
func stageOptions(name string) []pipeline.Option {
	opts := []pipeline.Option{
		pipeline.WithName(name),
		pipeline.WithCapacity(appConfig.Stream.ChannelCapacity()),
		pipeline.WithMetrics(metrics),
		pipeline.WithLogger(logger.StageLogger(name)),
	}
	if rc, ok := appConfig.Stream.RetryConfig(); ok {
		opts = append(opts, pipeline.WithRetry(rc))
	}
	return opts
}
