package commands

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"tcaqs/internal/scrapers/bazaar"
	"tcaqs/internal/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var fetchConcurrency int

func init() {
	fetchCmd.Flags().IntVar(&fetchConcurrency, "concurrency", 0, "Requests in flight, overrides the config.")
	rootCmd.AddCommand(fetchCmd)
}

func parseAuctionId(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid auction id %q", arg)
	}
	return id, nil
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <first id> [last id]",
	Short: "Downloads archived listing pages into the source directory.",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		first, err := parseAuctionId(args[0])
		if err != nil {
			telemetry.Fatal("bad arguments", err)
		}
		last := first
		if len(args) > 1 {
			last, err = parseAuctionId(args[1])
			if err != nil {
				telemetry.Fatal("bad arguments", err)
			}
		}
		if last < first {
			telemetry.Fatal("bad arguments", fmt.Errorf("last id %d is before first id %d", last, first))
		}
		if fetchConcurrency > 0 {
			cfg.Fetch.Concurrency = fetchConcurrency
		}

		client, err := bazaar.NewClient(bazaar.ClientOptions{
			BaseUrl:   cfg.Fetch.BaseUrl,
			OutputDir: cfg.Sources,
			Timeout:   time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
			DumpDir:   cfg.Fetch.DumpDir,
		}, tel)
		if err != nil {
			telemetry.Fatal("failed to create fetch client", err)
		}

		ids := make([]int64, 0, last-first+1)
		for id := first; id <= last; id++ {
			ids = append(ids, id)
		}
		slog.Info("fetching", "ids", len(ids), "out", cfg.Sources)
		report := client.FetchRange(cmd.Context(), ids, cfg.Fetch.Concurrency)

		t := newTable()
		t.AppendHeader(table.Row{"Fetched", "Skipped", "Failed"})
		t.AppendRow(table.Row{report.Fetched, report.Skipped, len(report.Failed)})
		t.Render()
	},
}
