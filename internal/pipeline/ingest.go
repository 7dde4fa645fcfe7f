package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tcaqs/internal/auction"
	"tcaqs/internal/chrono"
	"tcaqs/internal/db"
	"tcaqs/internal/scrapers/bazaar"
	"tcaqs/internal/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_ingest_document = "ingest.document"
	report_ingest_chunk    = "ingest.chunk"
	report_ingest_errorlog = "ingest.error-log"
	report_ingest_run      = "ingest.run"
)

const DefaultChunkSize = 1000

var tracer = otel.Tracer("tcaqs.pipeline")
var meter = otel.Meter("tcaqs.pipeline")
var persistedCounter, _ = meter.Int64Counter("documents_persisted", metric.WithDescription("documents written to the store"))
var failedCounter, _ = meter.Int64Counter("documents_failed", metric.WithDescription("documents that could not be extracted"))

// Store is the part of the persistence layer the ingester writes to.
type Store interface {
	UpsertBatch(ctx context.Context, records []auction.Record) error
	RecordRun(ctx context.Context, run db.IngestRun) error
}

type Options struct {
	Workers   int
	ChunkSize int
	// DocumentTimeout bounds the extraction of a single document.
	DocumentTimeout time.Duration
	// ErrorLog, when set, receives the id of every failed document.
	ErrorLog string
	// Offset is how many sources were skipped before the first path given
	// to Run, resume offsets in a ChunkError include it.
	Offset int
	// Source is a label stored with the run, usually the source directory.
	Source string
}

// FailedDocument is a source that could not be extracted.
type FailedDocument struct {
	Path string
	ID   int64
	Err  error
}

type Summary struct {
	RunID     uuid.UUID
	Seen      int
	Persisted int
	Failed    []FailedDocument
	Elapsed   time.Duration
}

// ChunkError aborts a run when a chunk could not be persisted after a
// retry. Chunks before it are committed, Offset is where to resume.
type ChunkError struct {
	Chunk  int
	Offset int
	Err    error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("persist chunk %d (resume with offset %d): %v", e.Chunk, e.Offset, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// Ingester drives extraction and persistence of a list of sources.
type Ingester struct {
	store Store
	opts  Options
	tel   telemetry.API
	clock chrono.TimeAPI
	// extract turns one source into a record, ExtractFile unless a test
	// replaces it.
	extract func(ctx context.Context, path string) (auction.Record, error)

	// OnProgress is called after every chunk.
	OnProgress func(ProgressSnapshot)
}

func NewIngester(store Store, opts Options, tel telemetry.API, clock chrono.TimeAPI) Ingester {
	if opts.ChunkSize < 1 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Workers < 1 {
		opts.Workers = telemetry.CPUCount()
	}
	if clock == nil {
		clock = chrono.NewStandardTime()
	}
	return Ingester{
		store:   store,
		opts:    opts,
		tel:     telemetry.NewScopedAPI("pipeline", tel),
		clock:   clock,
		extract: extractSource,
	}
}

func extractSource(_ context.Context, path string) (auction.Record, error) {
	return ExtractFile(path)
}

// ExtractFile parses the listing at path, the record id comes from the file name.
func ExtractFile(path string) (auction.Record, error) {
	id, err := bazaar.ParseID(filepath.Base(path))
	if err != nil {
		return auction.Record{}, err
	}
	page, err := os.ReadFile(path)
	if err != nil {
		return auction.Record{}, err
	}
	rec, err := bazaar.ParseBytes(page)
	if err != nil {
		return auction.Record{}, err
	}
	rec.ID = id
	return rec, nil
}

// Run extracts and persists paths chunk by chunk. A chunk is committed before
// the next one starts. Malformed documents are collected in the summary and
// never abort the run, a chunk that can't be persisted twice does.
func (i Ingester) Run(ctx context.Context, paths []string) (Summary, error) {
	ctx, span := tracer.Start(ctx, "Ingest")
	defer span.End()
	span.SetAttributes(attribute.Int("sources", len(paths)))

	startedAt := i.clock.Now()
	summary := Summary{RunID: uuid.New()}
	progress := NewProgress(i.clock, len(paths))
	pool := Pool{
		Workers: i.opts.Workers,
		Timeout: i.opts.DocumentTimeout,
		Tel:     i.tel,
	}

	var runErr error
	for chunk, start := 0, 0; start < len(paths); chunk, start = chunk+1, start+i.opts.ChunkSize {
		if ctx.Err() != nil {
			runErr = &ChunkError{Chunk: chunk, Offset: i.opts.Offset + start, Err: ctx.Err()}
			break
		}

		end := min(start+i.opts.ChunkSize, len(paths))
		persisted, failed, err := i.runChunk(ctx, pool, chunk, paths[start:end])
		summary.Seen += end - start
		summary.Failed = append(summary.Failed, failed...)
		if err != nil {
			runErr = &ChunkError{Chunk: chunk, Offset: i.opts.Offset + start, Err: err}
			break
		}
		summary.Persisted += persisted

		snap := progress.Add(end - start)
		if i.OnProgress != nil {
			i.OnProgress(snap)
		} else {
			i.tel.ReportDebug("progress", snap.String())
		}
	}
	summary.Elapsed = i.clock.Now().Sub(startedAt)

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		i.tel.ReportBroken(report_ingest_run, runErr)
	}

	err := i.store.RecordRun(context.WithoutCancel(ctx), db.IngestRun{
		ID:        summary.RunID,
		Source:    i.opts.Source,
		StartedAt: startedAt,
		Elapsed:   summary.Elapsed,
		Seen:      int64(summary.Seen),
		Persisted: int64(summary.Persisted),
		Failed:    int64(len(summary.Failed)),
	})
	if err != nil {
		i.tel.ReportWarning(report_ingest_run, fmt.Errorf("record run: %w", err))
	}

	return summary, runErr
}

func (i Ingester) runChunk(ctx context.Context, pool Pool, chunk int, paths []string) (int, []FailedDocument, error) {
	ctx, span := tracer.Start(ctx, "IngestChunk")
	defer span.End()
	span.SetAttributes(attribute.Int("chunk", chunk), attribute.Int("size", len(paths)))

	outcomes := Map(ctx, pool, paths, i.extract)
	// an interrupted chunk is redone from its resume offset, none of its
	// documents count as failed
	if ctx.Err() != nil {
		return 0, nil, ctx.Err()
	}

	records := make([]auction.Record, 0, len(outcomes))
	var failed []FailedDocument
	for _, o := range outcomes {
		if o.Err != nil {
			id, _ := bazaar.ParseID(filepath.Base(o.Input))
			failed = append(failed, FailedDocument{Path: o.Input, ID: id, Err: o.Err})
			i.tel.ReportWarning(report_ingest_document, o.Err, o.Input)
			continue
		}
		records = append(records, o.Value)
	}
	failedCounter.Add(ctx, int64(len(failed)))

	err := i.appendErrorLog(failed)
	if err != nil {
		i.tel.ReportWarning(report_ingest_errorlog, err)
	}

	err = i.store.UpsertBatch(ctx, records)
	if err != nil {
		i.tel.ReportWarning(report_ingest_chunk, "retrying", chunk, err)
		err = i.store.UpsertBatch(ctx, records)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, failed, err
	}

	persistedCounter.Add(ctx, int64(len(records)))
	i.tel.ReportCount(report_ingest_chunk, int64(len(records)))
	return len(records), failed, nil
}

func (i Ingester) appendErrorLog(failed []FailedDocument) error {
	if i.opts.ErrorLog == "" || len(failed) == 0 {
		return nil
	}

	f, err := os.OpenFile(i.opts.ErrorLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	var b strings.Builder
	for _, doc := range failed {
		// sources that aren't named after an id are logged by name
		line := filepath.Base(doc.Path)
		_, err := bazaar.ParseID(line)
		if err == nil {
			line = fmt.Sprint(doc.ID)
		}
		b.WriteString(line + "\n")
	}
	_, err = f.WriteString(b.String())
	return errors.Join(err, f.Close())
}
