package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tcaqs/internal/chrono"
	"tcaqs/internal/pipeline"
	"tcaqs/internal/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	ingestOffset    int
	ingestChunkSize int
	ingestWorkers   int
)

func init() {
	ingestCmd.Flags().IntVar(&ingestOffset, "offset", 0, "Skip the first n source files, used to resume an aborted run.")
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 0, "Documents persisted per transaction, overrides the config.")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "Parallel parsers, defaults to the number of cpus.")
	rootCmd.AddCommand(ingestCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [source dir] [--offset <n>]",
	Short: "Extracts every listing document of a directory into the database.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := cfg.Sources
		if len(args) > 0 {
			dir = args[0]
		}
		if ingestChunkSize > 0 {
			cfg.ChunkSize = ingestChunkSize
		}
		if ingestWorkers > 0 {
			cfg.Workers = ingestWorkers
		}

		paths, err := pipeline.ListSources(dir, ingestOffset)
		if err != nil {
			telemetry.Fatal("failed to list sources", err)
		}
		slog.Info("ingesting", "dir", dir, "documents", len(paths), "offset", ingestOffset)

		store, database := openStore(cmd.Context())
		defer database.Close()

		ingester := pipeline.NewIngester(store, pipeline.Options{
			Workers:         cfg.Workers,
			ChunkSize:       cfg.ChunkSize,
			DocumentTimeout: cfg.DocumentTimeout(),
			ErrorLog:        cfg.ErrorLog,
			Offset:          ingestOffset,
			Source:          dir,
		}, tel, chrono.NewStandardTime())
		ingester.OnProgress = func(s pipeline.ProgressSnapshot) {
			slog.Info("progress", "done", s.Done, "total", s.Total, "rate", fmt.Sprintf("%.1f/s", s.Rate), "eta", s.ETA.Round(time.Second))
		}

		summary, err := ingester.Run(cmd.Context(), paths)

		t := newTable()
		t.AppendHeader(table.Row{"Run", "Seen", "Persisted", "Failed", "Elapsed"})
		t.AppendRow(table.Row{summary.RunID, summary.Seen, summary.Persisted, len(summary.Failed), summary.Elapsed.Round(time.Millisecond)})
		t.Render()

		var chunkErr *pipeline.ChunkError
		if errors.As(err, &chunkErr) {
			slog.Error("ingest aborted", "chunk", chunkErr.Chunk, "resume_offset", chunkErr.Offset)
		}
		if err != nil {
			telemetry.Fatal("ingest failed", err)
		}
	},
}
