package commands

import (
	"log/slog"

	"tcaqs/internal/chrono"
	"tcaqs/internal/pipeline"
	"tcaqs/internal/reconcile"
	"tcaqs/internal/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var reconcileBatchSize int

func init() {
	reconcileCmd.Flags().IntVar(&reconcileBatchSize, "batch-size", 0, "Auctions checked per database update, overrides the config.")
	rootCmd.AddCommand(reconcileCmd)
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [source dir]",
	Short: "Marks finished auctions that closed on a minimum bid as failed.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := cfg.Sources
		if len(args) > 0 {
			dir = args[0]
		}
		if reconcileBatchSize > 0 {
			cfg.BatchSize = reconcileBatchSize
		}

		store, database := openStore(cmd.Context())
		defer database.Close()

		reconciler := reconcile.New(store, reconcile.Options{
			SourceDir: dir,
			BatchSize: cfg.BatchSize,
			Workers:   cfg.Workers,
			Timeout:   cfg.DocumentTimeout(),
		}, tel, chrono.NewStandardTime())
		reconciler.OnProgress = func(s pipeline.ProgressSnapshot) {
			slog.Info("progress", "status", s.String())
		}

		report, err := reconciler.Run(cmd.Context())
		if err != nil {
			telemetry.Fatal("reconcile failed", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Candidates", "Checked", "Missing", "Marked failed", "Remaining finished", "Total failed"})
		t.AppendRow(table.Row{report.Candidates, report.Checked, report.Missing, report.Updated, report.RemainingFinished, report.TotalFailed})
		t.Render()
	},
}
