package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"tcaqs/internal/db"
	"tcaqs/internal/servers"
	"tcaqs/internal/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var showFeatures bool

func init() {
	showCmd.Flags().BoolVar(&showFeatures, "features", false, "Print the model feature map instead of the record.")
	rootCmd.AddCommand(showCmd)
}

func loadServers() servers.Table {
	metadata, err := servers.LoadTable(cfg.Servers)
	if err != nil {
		slog.Warn("server metadata unavailable, using unknown defaults", "path", cfg.Servers, "err", err)
		return servers.Table{}
	}
	return metadata
}

var showCmd = &cobra.Command{
	Use:   "show <auction id>",
	Short: "Prints a stored auction with its server metadata and an estimated bid.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := parseAuctionId(args[0])
		if err != nil {
			telemetry.Fatal("bad arguments", err)
		}

		store, database := openStore(cmd.Context())
		defer database.Close()

		rec, err := store.Get(cmd.Context(), id)
		if errors.Is(err, db.ErrNotFound) {
			telemetry.Fatal("unknown auction", err)
		}
		if err != nil {
			telemetry.Fatal("failed to read auction", err)
		}

		meta, known := loadServers().Lookup(rec.Server)
		if !known {
			slog.Debug("server not in metadata table", "server", rec.Server)
		}
		features := servers.Features(rec, meta)

		if showFeatures {
			keys := make([]string, 0, len(features))
			for k := range features {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			t := newTable()
			t.AppendHeader(table.Row{"Feature", "Value"})
			for _, k := range keys {
				t.AppendRow(table.Row{k, features[k]})
			}
			t.Render()
			return
		}

		bid := "-"
		if rec.Bid != nil {
			bid = fmt.Sprint(*rec.Bid)
		}
		estimate := estimateBid(cmd.Context(), servers.HeuristicPredictor{}, features)

		t := newTable()
		t.AppendHeader(table.Row{"Field", "Value"})
		t.AppendRows([]table.Row{
			{"Id", rec.ID},
			{"Name", rec.Name},
			{"Status", rec.Status},
			{"Level", rec.Level},
			{"Vocation", rec.Vocation},
			{"Server", fmt.Sprintf("%s (%s, %s)", rec.Server, meta.Location, meta.PvpType)},
			{"Auction", fmt.Sprintf("%s to %s", rec.AuctionStartISO, rec.AuctionEndISO)},
			{"Bid", bid},
			{"Estimated bid", estimate},
			{"Magic level", rec.MagicLevel},
			{"Skills (axe/club/dist/fish/fist/shield/sword)", fmt.Sprintf(
				"%d/%d/%d/%d/%d/%d/%d",
				rec.AxeFighting, rec.ClubFighting, rec.DistanceFighting, rec.Fishing,
				rec.FistFighting, rec.Shielding, rec.SwordFighting,
			)},
			{"Mounts / outfits", fmt.Sprintf("%d / %d", rec.Mounts, rec.Outfits)},
			{"Gold", rec.Gold},
			{"Achievement points", rec.AchievementPoints},
			{"Transfer available", rec.IsTransferAvailable},
			{"Charms / imbuements", fmt.Sprintf("%d / %d", rec.Charms, rec.Imbuements)},
		})
		t.Render()
	},
}

func estimateBid(ctx context.Context, predictor servers.Predictor, features map[string]any) string {
	value, err := predictor.Predict(ctx, features)
	if err != nil {
		tel.ReportWarning("show.estimate", err)
		return "-"
	}
	return fmt.Sprintf("%.0f", value)
}
