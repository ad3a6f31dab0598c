package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hed1ad/streamguard/internal/config"
)

var version = "dev"

// app carries state shared by subcommands once the root pre-run has loaded it.
type app struct {
	configPath string
	v          *viper.Viper
	cfg        *config.Config
	logger     *zap.Logger
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":   "logging.level",
	"log-format":  "logging.format",
	"window-size": "detector.window_size",
	"threshold":   "detector.threshold",
	"decay":       "detector.decay",
	"addr":        "server.addr",
	"redis-addr":  "redis.addr",
	"redis-ttl":   "redis.ttl",
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "streamguard",
		Short: "Streamguard - online anomaly detection for numeric streams",
		Long: `Streamguard flags samples of a numeric stream whose deviation from the
recently observed mean exceeds a threshold.

Running statistics are seeded from a leading window and updated by
exponential smoothing, so a stream is processed in a single pass.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Path to a YAML config file")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "json", "Log format: json or console")

	cmd.AddCommand(newDetectCommand(a))
	cmd.AddCommand(newSimulateCommand(a))
	cmd.AddCommand(newWatchCommand(a))
	cmd.AddCommand(newDemoCommand(a))
	cmd.AddCommand(newServeCommand(a))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// load builds configuration and the logger for the command about to run.
func (a *app) load(cmd *cobra.Command) error {
	v, err := config.NewViper(a.configPath)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}

	a.v = v
	a.cfg = cfg
	a.logger = logger
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	return nil
}

// addDetectorFlags registers the detector parameters on cmd.
func addDetectorFlags(cmd *cobra.Command) {
	cmd.Flags().Int("window-size", 50, "Number of leading samples used to seed the statistics")
	cmd.Flags().Float64("threshold", 3, "Normalized deviation above which a sample is anomalous")
	cmd.Flags().Float64("decay", 0.1, "Weight of each new sample in the running updates, in (0, 1]")
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Skip config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "streamguard %s\n", version)
		},
	}
}

func execute() error {
	return newRootCommand().Execute()
}
