package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tcaqs/internal/auction"
	"tcaqs/internal/scrapers/bazaar/bazaartest"
	"tcaqs/internal/telemetry"
	"tcaqs/lib/testutil"

	"github.com/stretchr/testify/require"
)

func stored(id int64, status string) auction.Record {
	return auction.Record{
		ID:              id,
		Status:          status,
		Name:            "Character",
		AuctionStartISO: "2023-01-05T10:00:00",
		AuctionEndISO:   "2023-01-07T18:30:00",
		Level:           8,
		Vocation:        "none",
		Server:          "Antica",
	}
}

func minimumBidPage() string {
	listing := bazaartest.Default()
	listing.BidLabel = "Minimum Bid:"
	return listing.Render()
}

func TestReconcile(t *testing.T) {
	res, cleanup := testutil.SetupStore(t, testutil.StoreParams{Name: "reconcile"})
	defer cleanup()
	store := res.Store

	ctx := context.Background()

	require.NoError(t, store.UpsertBatch(ctx, []auction.Record{
		stored(1, auction.StatusFinished),
		stored(2, auction.StatusFinished),
		stored(3, auction.StatusCurrentlyProcessed),
		stored(4, auction.StatusWillBeTransferred),
		// no document on disk
		stored(5, auction.StatusFinished),
		// not a candidate even though its page shows a minimum bid
		stored(6, "auction ended"),
	}))

	dir := t.TempDir()
	require.NoError(t, bazaartest.WriteDir(dir, map[int64]string{
		1: minimumBidPage(),
		2: bazaartest.Default().Render(),
		3: minimumBidPage(),
		4: bazaartest.Default().Render(),
		6: minimumBidPage(),
	}))

	tel := &telemetry.Recorder{}
	reconciler := New(store, Options{SourceDir: dir, BatchSize: 2, Workers: 2}, tel, nil)
	report, err := reconciler.Run(ctx)
	require.NoError(t, err)

	require.Equal(t, Report{
		Candidates:        5,
		Checked:           5,
		Missing:           1,
		Updated:           2,
		RemainingFinished: 3,
		TotalFailed:       2,
	}, report)
	require.Len(t, tel.Reports("warning", report_reconcile_check), 1)

	expected := map[int64]string{
		1: auction.StatusFailed,
		2: auction.StatusFinished,
		3: auction.StatusFailed,
		4: auction.StatusWillBeTransferred,
		5: auction.StatusFinished,
		6: "auction ended",
	}
	for id, status := range expected {
		rec, err := store.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, status, rec.Status, "auction %d", id)
	}

	// a second pass has nothing left to demote
	report, err = reconciler.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, report.Candidates)
	require.Equal(t, int64(0), report.Updated)
}

func TestReconcileMissingSourceDir(t *testing.T) {
	res, cleanup := testutil.SetupStore(t, testutil.StoreParams{Name: "reconcile-missing-dir"})
	defer cleanup()
	store := res.Store

	ctx := context.Background()
	require.NoError(t, store.UpsertBatch(ctx, []auction.Record{stored(1, auction.StatusFinished)}))

	missing := filepath.Join(t.TempDir(), "does-not-exist")
	_, err := New(store, Options{SourceDir: missing}, &telemetry.Recorder{}, nil).Run(ctx)
	require.ErrorIs(t, err, os.ErrNotExist)

	// a file in place of the directory is rejected too
	dir := t.TempDir()
	require.NoError(t, bazaartest.WriteDir(dir, map[int64]string{1: minimumBidPage()}))
	_, err = New(store, Options{SourceDir: filepath.Join(dir, "1.html")}, &telemetry.Recorder{}, nil).Run(ctx)
	require.Error(t, err)

	rec, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, auction.StatusFinished, rec.Status)
}

func TestReconcileDocumentTimeout(t *testing.T) {
	res, cleanup := testutil.SetupStore(t, testutil.StoreParams{Name: "reconcile-timeout"})
	defer cleanup()
	store := res.Store

	ctx := context.Background()
	require.NoError(t, store.UpsertBatch(ctx, []auction.Record{
		stored(1, auction.StatusFinished),
		stored(2, auction.StatusFinished),
	}))

	dir := t.TempDir()
	require.NoError(t, bazaartest.WriteDir(dir, map[int64]string{
		1: minimumBidPage(),
		2: minimumBidPage(),
	}))

	reconciler := New(store, Options{SourceDir: dir, Workers: 1, Timeout: 50 * time.Millisecond}, &telemetry.Recorder{}, nil)
	reconciler.check = func(ctx context.Context, path string) (bool, error) {
		if filepath.Base(path) == "1.html" {
			<-ctx.Done()
			return false, ctx.Err()
		}
		return CheckDocument(path)
	}

	report, err := reconciler.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Missing)
	require.Equal(t, int64(1), report.Updated)

	rec, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, auction.StatusFinished, rec.Status)
}

func TestCheckDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, bazaartest.WriteDir(dir, map[int64]string{
		1: minimumBidPage(),
		2: bazaartest.Default().Render(),
		3: "<html><body>no bid row</body></html>",
	}))

	noBid, err := CheckDocument(filepath.Join(dir, "1.html"))
	require.NoError(t, err)
	require.True(t, noBid)

	noBid, err = CheckDocument(filepath.Join(dir, "2.html"))
	require.NoError(t, err)
	require.False(t, noBid)

	noBid, err = CheckDocument(filepath.Join(dir, "3.html"))
	require.NoError(t, err)
	require.False(t, noBid)

	_, err = CheckDocument(filepath.Join(dir, "4.html"))
	require.ErrorIs(t, err, errMissing)
}
