package commands

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"tcaqs/internal/db"
	"tcaqs/internal/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	dbFile     string
	dbUrl      string
)

// set up by the root command before any subcommand runs
var (
	cfg Config
	tel telemetry.API = telemetry.SlogAPI{}
	otl telemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:   "tcaqs",
	Short: "tcaqs extracts character bazaar auctions into a queryable database.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		var err error
		cfg, err = loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		if dbFile != "" {
			cfg.Database.File = dbFile
		}
		if dbUrl != "" {
			cfg.Database.Url = dbUrl
		}

		otl, err = telemetry.SetupFromEnv(cmd.Context(), "tcaqs")
		if err != nil {
			slog.Debug("otel disabled", "err", err)
		}
		telemetry.InstrumentPerfStats(cmd.Context(), tel)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := otl.Shutdown(ctx)
		if err != nil {
			slog.Warn("flush telemetry", "err", err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json5", "The configuration file, a .local variant overrides it.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging.")
	rootCmd.PersistentFlags().StringVar(&dbFile, "db", "", "The sqlite database file, overrides the config.")
	rootCmd.PersistentFlags().StringVar(&dbUrl, "db-url", "", "A remote libsql database url, overrides the config.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context) (db.Store, *sql.DB) {
	database, err := cfg.Database.OpenDB(ctx)
	if err != nil {
		telemetry.Fatal("failed to open db", err)
	}
	return db.NewStore(database, tel), database
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
