package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Sternrassler/socs-calendar-client/pkg/calendar"
	"github.com/Sternrassler/socs-calendar-client/pkg/client"
	"github.com/spf13/cobra"
)

func newFetchCmd(root *rootOptions) *cobra.Command {
	var (
		start  string
		end    string
		format string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch every event in a date range and print it",
		Long: `Fetch every event between --start and --end (inclusive, YYYY-MM-DD).

Without dates the range runs from today for horizon_days days.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			rng, err := parseRange(start, end, cfg.HorizonDays)
			if err != nil {
				return err
			}

			if format != "json" && format != "table" {
				return fmt.Errorf("unknown format %q (want json or table)", format)
			}

			clientCfg, err := cfg.ClientConfig()
			if err != nil {
				return err
			}
			socsClient, err := client.New(clientCfg)
			if err != nil {
				return fmt.Errorf("create SOCS client: %w", err)
			}
			defer socsClient.Close()

			events, err := socsClient.FetchEvents(cmd.Context(), rng)
			if err != nil {
				return err
			}

			if format == "table" {
				return writeTable(cmd.OutOrStdout(), events)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "First day of the range (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&end, "end", "", "Last day of the range (YYYY-MM-DD, default start + horizon_days - 1)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or table")

	return cmd
}

// parseRange parses optional start/end dates, filling gaps from the horizon.
func parseRange(start, end string, horizonDays int) (calendar.DateRange, error) {
	rng := horizon(horizonDays)

	if start != "" {
		d, err := calendar.ParseDate(start)
		if err != nil {
			return calendar.DateRange{}, fmt.Errorf("invalid start date %q: %w", start, err)
		}
		rng.Start = d
		rng.End = d.AddDays(horizonDays - 1)
	}
	if end != "" {
		d, err := calendar.ParseDate(end)
		if err != nil {
			return calendar.DateRange{}, fmt.Errorf("invalid end date %q: %w", end, err)
		}
		rng.End = d
	}

	return calendar.NewDateRange(rng.Start, rng.End)
}

func writeTable(w io.Writer, events []calendar.Event) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tEND\tTITLE\tLOCATION\tCATEGORIES\tID")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.Start, ev.End, ev.Title, ev.Location, strings.Join(ev.Categories, ","), ev.ID)
	}
	return tw.Flush()
}
