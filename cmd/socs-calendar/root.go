package main

import (
	"os"
	"time"

	"github.com/Sternrassler/socs-calendar-client/internal/config"
	"github.com/Sternrassler/socs-calendar-client/pkg/calendar"
	"github.com/Sternrassler/socs-calendar-client/pkg/logging"
	"github.com/spf13/cobra"
)

// rootOptions holds flags shared by all subcommands.
type rootOptions struct {
	configPath string
}

// newRootCmd builds the command tree.
func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "socs-calendar",
		Short: "Fetches complete SOCS school calendars",
		Long: `socs-calendar retrieves every event in a date range from a SOCS calendar
endpoint, splitting the range whenever a response looks truncated.

It can run as:
  - A one-shot fetch printing events as JSON or a table
  - An HTTP server exposing /events, /health, /ready and /metrics`,
		SilenceUsage: true,
		Version:      version,
	}
	rootCmd.SetVersionTemplate(`{{printf "socs-calendar version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to a YAML config file (environment variables override it)")

	rootCmd.AddCommand(newFetchCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))

	return rootCmd
}

// Execute is the main entry point for the CLI application
func Execute(version string) {
	if err := newRootCmd(version).Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads configuration and sets up the global logger.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.LoggingConfig())
	return cfg, nil
}

// today returns the current local date.
func today() calendar.Date {
	return calendar.DateOf(time.Now())
}

// horizon returns [today, today+days-1].
func horizon(days int) calendar.DateRange {
	start := today()
	return calendar.DateRange{Start: start, End: start.AddDays(days - 1)}
}
