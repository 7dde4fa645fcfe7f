package commands

import (
	"time"

	"tcaqs/internal/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statsRuns int

func init() {
	statsCmd.Flags().IntVar(&statsRuns, "runs", 5, "How many recent ingest runs to list.")
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints record counts per status, known servers and recent ingest runs.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		store, database := openStore(ctx)
		defer database.Close()

		total, err := store.Count(ctx)
		if err != nil {
			telemetry.Fatal("failed to count records", err)
		}
		counts, err := store.StatusCounts(ctx)
		if err != nil {
			telemetry.Fatal("failed to count statuses", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Status", "Records"})
		for _, c := range counts {
			t.AppendRow(table.Row{c.Status, c.Count})
		}
		t.AppendFooter(table.Row{"Total", total})
		t.Render()

		names, err := store.Servers(ctx)
		if err != nil {
			telemetry.Fatal("failed to list servers", err)
		}
		metadata := loadServers()

		t = newTable()
		t.AppendHeader(table.Row{"Server", "Location", "PvP type", "Battleye"})
		for _, name := range names {
			meta, _ := metadata.Lookup(name)
			t.AppendRow(table.Row{name, meta.Location, meta.PvpType, meta.Battleye})
		}
		t.Render()

		runs, err := store.Runs(ctx, statsRuns)
		if err != nil {
			telemetry.Fatal("failed to list runs", err)
		}
		t = newTable()
		t.AppendHeader(table.Row{"Run", "Source", "Started", "Elapsed", "Seen", "Persisted", "Failed"})
		for _, r := range runs {
			t.AppendRow(table.Row{
				r.ID, r.Source, r.StartedAt.Format(time.DateTime),
				r.Elapsed.Round(time.Millisecond), r.Seen, r.Persisted, r.Failed,
			})
		}
		t.Render()
	},
}
