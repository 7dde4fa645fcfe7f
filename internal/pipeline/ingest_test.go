package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"tcaqs/internal/auction"
	"tcaqs/internal/db"
	"tcaqs/internal/scrapers/bazaar"
	"tcaqs/internal/scrapers/bazaar/bazaartest"
	"tcaqs/internal/telemetry"
	"tcaqs/lib/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func writeSources(t *testing.T, pages map[int64]string) string {
	dir := t.TempDir()
	require.NoError(t, bazaartest.WriteDir(dir, pages))
	return dir
}

func openStore(t *testing.T) db.Store {
	res, cleanup := testutil.SetupStore(t, testutil.StoreParams{Name: "pipeline"})
	t.Cleanup(cleanup)
	return res.Store
}

func TestIngestIsolatesMalformedDocument(t *testing.T) {
	ctx := context.Background()
	dir := writeSources(t, map[int64]string{
		1001: bazaartest.Default().Render(),
		1002: "<html><body><div class=\"AuctionHeader\">Level: 5</div></body></html>",
		1003: bazaartest.Default().Render(),
	})
	paths, err := ListSources(dir, 0)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	store := openStore(t)
	errorLog := filepath.Join(t.TempDir(), "errors.txt")
	ingester := NewIngester(store, Options{Workers: 3, ErrorLog: errorLog, Source: dir}, &telemetry.Recorder{}, nil)

	summary, err := ingester.Run(ctx, paths)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Seen)
	require.Equal(t, 2, summary.Persisted)
	require.Len(t, summary.Failed, 1)
	require.Equal(t, int64(1002), summary.Failed[0].ID)
	require.True(t, errors.Is(summary.Failed[0].Err, bazaar.ErrMalformedDocument))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
	for _, id := range []int64{1001, 1003} {
		rec, err := store.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, "Sir Tester", rec.Name)
	}

	logged, err := os.ReadFile(errorLog)
	require.NoError(t, err)
	require.Equal(t, "1002\n", string(logged))

	runs, err := store.Runs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, summary.RunID, runs[0].ID)
	require.Equal(t, int64(1), runs[0].Failed)
}

func TestIngestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pages := map[int64]string{}
	for id := int64(1); id <= 25; id++ {
		pages[id] = bazaartest.Default().Render()
	}
	dir := writeSources(t, pages)
	paths, err := ListSources(dir, 0)
	require.NoError(t, err)

	store := openStore(t)
	ingester := NewIngester(store, Options{Workers: 4, ChunkSize: 7}, &telemetry.Recorder{}, nil)

	var snapshots []ProgressSnapshot
	ingester.OnProgress = func(s ProgressSnapshot) { snapshots = append(snapshots, s) }

	for run := 0; run < 2; run++ {
		summary, err := ingester.Run(ctx, paths)
		require.NoError(t, err)
		require.Equal(t, 25, summary.Persisted)
	}
	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(25), count)

	// 4 chunks per run
	require.Len(t, snapshots, 8)
	require.Equal(t, 25, snapshots[3].Done)
}

func TestReingestKeepsFailedStatus(t *testing.T) {
	ctx := context.Background()
	dir := writeSources(t, map[int64]string{7: bazaartest.Default().Render()})
	paths, err := ListSources(dir, 0)
	require.NoError(t, err)

	store := openStore(t)
	ingester := NewIngester(store, Options{Workers: 1}, &telemetry.Recorder{}, nil)

	_, err = ingester.Run(ctx, paths)
	require.NoError(t, err)
	rec, err := store.Get(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, auction.StatusFinished, rec.Status)

	updated, err := store.MarkFailed(ctx, []int64{7})
	require.NoError(t, err)
	require.Equal(t, int64(1), updated)

	_, err = ingester.Run(ctx, paths)
	require.NoError(t, err)
	rec, err = store.Get(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, auction.StatusFailed, rec.Status)
}

func TestIngestInterruptedChunk(t *testing.T) {
	pages := map[int64]string{}
	for id := int64(1); id <= 4; id++ {
		pages[id] = bazaartest.Default().Render()
	}
	dir := writeSources(t, pages)
	paths, err := ListSources(dir, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := openStore(t)
	errorLog := filepath.Join(t.TempDir(), "errors.txt")
	ingester := NewIngester(store, Options{Workers: 1, ErrorLog: errorLog, Offset: 10}, &telemetry.Recorder{}, nil)
	ingester.extract = func(ctx context.Context, path string) (auction.Record, error) {
		if filepath.Base(path) != "1.html" {
			<-ctx.Done()
			return auction.Record{}, ctx.Err()
		}
		cancel()
		return ExtractFile(path)
	}

	summary, err := ingester.Run(ctx, paths)
	var chunkErr *ChunkError
	require.ErrorAs(t, err, &chunkErr)
	require.Equal(t, 10, chunkErr.Offset)
	require.ErrorIs(t, err, context.Canceled)

	require.Empty(t, summary.Failed)
	require.Equal(t, 0, summary.Persisted)
	_, err = os.Stat(errorLog)
	require.True(t, os.IsNotExist(err))
}

// flakyStore fails the first failures calls of UpsertBatch.
type flakyStore struct {
	mutex    sync.Mutex
	failures map[int]int
	calls    int
	batches  [][]auction.Record
	runs     []db.IngestRun
}

func (s *flakyStore) UpsertBatch(ctx context.Context, records []auction.Record) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.calls++
	if s.failures[s.calls] > 0 {
		return errors.New("database is locked")
	}
	s.batches = append(s.batches, records)
	return nil
}

func (s *flakyStore) RecordRun(ctx context.Context, run db.IngestRun) error {
	s.runs = append(s.runs, run)
	return nil
}

func TestIngestRetriesPersistenceOnce(t *testing.T) {
	dir := writeSources(t, map[int64]string{
		1: bazaartest.Default().Render(),
		2: bazaartest.Default().Render(),
	})
	paths, err := ListSources(dir, 0)
	require.NoError(t, err)

	store := &flakyStore{failures: map[int]int{1: 1}}
	tel := &telemetry.Recorder{}
	summary, err := NewIngester(store, Options{Workers: 2}, tel, nil).Run(context.Background(), paths)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Persisted)
	require.Equal(t, 2, store.calls)
	require.Len(t, tel.Reports("warning", report_ingest_chunk), 1)
}

func TestIngestAbortsWithResumeOffset(t *testing.T) {
	pages := map[int64]string{}
	for id := int64(10); id < 16; id++ {
		pages[id] = bazaartest.Default().Render()
	}
	dir := writeSources(t, pages)
	paths, err := ListSources(dir, 0)
	require.NoError(t, err)

	// chunk 0 succeeds, chunk 1 fails on both attempts
	store := &flakyStore{failures: map[int]int{2: 1, 3: 1}}
	opts := Options{Workers: 2, ChunkSize: 2, Offset: 40}
	summary, err := NewIngester(store, opts, &telemetry.Recorder{}, nil).Run(context.Background(), paths)
	require.Error(t, err)

	var chunkErr *ChunkError
	require.True(t, errors.As(err, &chunkErr))
	require.Equal(t, 1, chunkErr.Chunk)
	require.Equal(t, 42, chunkErr.Offset)
	require.Contains(t, err.Error(), "database is locked")

	require.Equal(t, 2, summary.Persisted)
	require.Len(t, store.batches, 1)
	// chunk 2 was never attempted
	require.Equal(t, 3, store.calls)
	require.Len(t, store.runs, 1)
	require.NotEqual(t, uuid.Nil, store.runs[0].ID)
}

func TestListSources(t *testing.T) {
	dir := writeSources(t, map[int64]string{3: "c", 1: "a", 2: "b"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.html"), 0755))

	paths, err := ListSources(dir, 0)
	require.NoError(t, err)
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	require.True(t, sort.StringsAreSorted(names))
	require.Equal(t, "1.html,2.html,3.html", strings.Join(names, ","))

	paths, err = ListSources(dir, 2)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	paths, err = ListSources(dir, 10)
	require.NoError(t, err)
	require.Empty(t, paths)

	_, err = ListSources(filepath.Join(dir, "missing"), 0)
	require.Error(t, err)
}
