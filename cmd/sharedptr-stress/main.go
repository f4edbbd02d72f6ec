// Command sharedptr-stress hammers one shared pointer from many goroutines
// and checks that the value is destroyed exactly once, after its last
// owner lets go.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sharedptr"
)

var (
	configPath string
	goroutines int
	iterations int
	logLevel   string
	trackLeaks bool
)

var rootCmd = &cobra.Command{
	Use:          "sharedptr-stress",
	Short:        "Concurrent clone/release stress test for sharedptr",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, &cfg)
		if err := cfg.validate(); err != nil {
			return err
		}

		log, err := cfg.logger()
		if err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		defer func() { _ = log.Sync() }()

		sharedptr.Configure(sharedptr.Config{Logger: log.Named("sharedptr"), TrackLeaks: cfg.TrackLeaks})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		r := stress(ctx, cfg, log)
		if !r.OK() {
			log.Error("ownership violated", zap.Int32("destroyed", r.Destroyed), zap.Bool("early_delete", r.EarlyDelete))
			return errors.Newf("destroyed %d times (early=%v)", r.Destroyed, r.EarlyDelete)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok: %d clones across %d goroutines in %s\n", r.Clones, cfg.Goroutines, r.Elapsed)
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.Flags().IntVarP(&goroutines, "goroutines", "g", 0, "number of worker goroutines")
	rootCmd.Flags().IntVarP(&iterations, "iterations", "n", 0, "clone/release cycles per worker")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&trackLeaks, "track-leaks", false, "report control blocks collected while owned")
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("goroutines") {
		cfg.Goroutines = goroutines
	}
	if flags.Changed("iterations") {
		cfg.Iterations = iterations
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("track-leaks") {
		cfg.TrackLeaks = trackLeaks
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
