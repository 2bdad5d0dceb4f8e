package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"MentionScanner/internal/app"
	"MentionScanner/internal/config"
	"MentionScanner/internal/domain"
	"MentionScanner/internal/logging"
)

func main() {
	root := &cobra.Command{
		Use:           "mentionscanner",
		Short:         "Polls external platforms for monitor keyword matches",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), cycleCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the poller daemon with per-platform schedules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.RunDaemon(cmd.Context())
		},
	}
}

func cycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycle <platform>",
		Short: "Run one polling cycle for a platform and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform := domain.Platform(args[0])
			if !slices.Contains(domain.Platforms(), platform) {
				return fmt.Errorf("unknown platform %q", args[0])
			}

			cfg := config.Load()
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			stats := application.RunCycle(cmd.Context(), platform)
			fmt.Printf("platform=%s monitors=%d skipped=%d processed=%d new_results=%d errors=%d timed_out=%d\n",
				stats.Platform, stats.Monitors, stats.Skipped, stats.Processed,
				stats.NewResults, stats.Errors, stats.TimedOut)
			return nil
		},
	}
}
