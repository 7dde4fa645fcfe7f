package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tcaqs/internal/auction"
	"tcaqs/internal/chrono"
	"tcaqs/internal/pipeline"
	"tcaqs/internal/scrapers/bazaar"
	"tcaqs/internal/telemetry"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_reconcile_check = "reconcile.check"
	report_reconcile_batch = "reconcile.batch"
)

const DefaultBatchSize = 1000

var tracer = otel.Tracer("tcaqs.reconcile")

// errMissing marks a candidate without a readable source document.
var errMissing = errors.New("source document missing")

// Store is the part of the persistence layer the reconciler needs.
type Store interface {
	IDsByStatus(ctx context.Context, statuses ...string) ([]int64, error)
	MarkFailed(ctx context.Context, ids []int64) (int64, error)
	CountByStatus(ctx context.Context, statuses ...string) (int64, error)
}

type Options struct {
	// SourceDir holds the <id>.html documents records were extracted from.
	SourceDir string
	BatchSize int
	Workers   int
	// Timeout bounds the check of a single document.
	Timeout time.Duration
}

type Report struct {
	Candidates int
	Checked    int
	// Missing counts candidates whose document could not be read in time,
	// they are left unchanged.
	Missing           int
	Updated           int64
	RemainingFinished int64
	TotalFailed       int64
}

// Reconciler demotes auctions stored as finished whose source document shows
// that they closed without a bid.
type Reconciler struct {
	store Store
	opts  Options
	tel   telemetry.API
	clock chrono.TimeAPI
	check func(ctx context.Context, path string) (bool, error)

	// OnProgress is called after every batch.
	OnProgress func(pipeline.ProgressSnapshot)
}

func New(store Store, opts Options, tel telemetry.API, clock chrono.TimeAPI) Reconciler {
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers < 1 {
		opts.Workers = telemetry.CPUCount()
	}
	if clock == nil {
		clock = chrono.NewStandardTime()
	}
	return Reconciler{
		store: store,
		opts:  opts,
		tel:   telemetry.NewScopedAPI("reconcile", tel),
		clock: clock,
		check: checkSource,
	}
}

func checkSource(_ context.Context, path string) (bool, error) {
	return CheckDocument(path)
}

// CheckDocument reports whether the document at path is a no-bid auction.
func CheckDocument(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("%w: %w", errMissing, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return false, fmt.Errorf("%w: %w", errMissing, err)
	}
	return bazaar.IsMinimumBid(doc), nil
}

func (r Reconciler) path(id int64) string {
	return filepath.Join(r.opts.SourceDir, fmt.Sprintf("%d.html", id))
}

// Run checks every finished auction and marks the no-bid ones as failed,
// one update per batch.
func (r Reconciler) Run(ctx context.Context) (Report, error) {
	ctx, span := tracer.Start(ctx, "Reconcile")
	defer span.End()

	var report Report
	info, err := os.Stat(r.opts.SourceDir)
	if err == nil && !info.IsDir() {
		err = fmt.Errorf("%s is not a directory", r.opts.SourceDir)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, fmt.Errorf("read source directory: %w", err)
	}

	ids, err := r.store.IDsByStatus(ctx, auction.FinishedStatuses...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, fmt.Errorf("list candidates: %w", err)
	}
	report.Candidates = len(ids)
	span.SetAttributes(attribute.Int("candidates", len(ids)))

	progress := pipeline.NewProgress(r.clock, len(ids))
	pool := pipeline.Pool{
		Workers: r.opts.Workers,
		Timeout: r.opts.Timeout,
		Tel:     r.tel,
	}

	for start := 0; start < len(ids); start += r.opts.BatchSize {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		end := min(start+r.opts.BatchSize, len(ids))
		batch := ids[start:end]

		outcomes := pipeline.Map(ctx, pool, batch, func(ctx context.Context, id int64) (bool, error) {
			return r.check(ctx, r.path(id))
		})

		var failed []int64
		for _, o := range outcomes {
			report.Checked++
			if o.Err != nil {
				report.Missing++
				r.tel.ReportWarning(report_reconcile_check, o.Err, o.Input)
				continue
			}
			if o.Value {
				failed = append(failed, o.Input)
			}
		}

		updated, err := r.store.MarkFailed(ctx, failed)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return report, fmt.Errorf("mark batch starting at %d failed: %w", start, err)
		}
		report.Updated += updated
		r.tel.ReportCount(report_reconcile_batch, updated)

		snap := progress.Add(len(batch))
		if r.OnProgress != nil {
			r.OnProgress(snap)
		} else {
			r.tel.ReportDebug("progress", snap.String(), report.Updated)
		}
	}

	report.RemainingFinished, err = r.store.CountByStatus(ctx, auction.FinishedStatuses...)
	if err != nil {
		return report, err
	}
	report.TotalFailed, err = r.store.CountByStatus(ctx, auction.StatusFailed)
	if err != nil {
		return report, err
	}
	return report, nil
}
