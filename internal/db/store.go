package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tcaqs/internal/auction"
	"tcaqs/internal/telemetry"
)

const (
	report_db_query    = "db.query"
	report_upsert      = "db.upsert-batch"
	report_mark_failed = "db.mark-failed"
)

// ErrNotFound is returned by Get for an id without a row.
var ErrNotFound = errors.New("character not found")

// Store is the persistence layer of character records.
type Store struct {
	db     *sql.DB
	qry    *Queries
	makeTx MakeTx
	tel    telemetry.API
}

func NewStore(database *sql.DB, tel telemetry.API) Store {
	return Store{
		db:     database,
		qry:    New(database),
		makeTx: NewMakeTx(database),
		tel:    telemetry.NewScopedAPI("db", tel),
	}
}

func (s Store) DB() *sql.DB {
	return s.db
}

// UpsertBatch writes every record inside a single transaction, either all
// of them become visible or none do.
func (s Store) UpsertBatch(ctx context.Context, records []auction.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return err
	}
	defer discard()

	for _, r := range records {
		err := tx.UpsertCharacter(ctx, r)
		if err != nil {
			s.tel.ReportWarning(report_upsert, err, r.ID)
			return fmt.Errorf("upsert character %d: %w", r.ID, err)
		}
	}

	err = commit()
	if err != nil {
		s.tel.ReportBroken(report_upsert, fmt.Errorf("commit: %w", err), len(records))
		return err
	}
	s.tel.ReportCount(report_upsert, int64(len(records)))
	return nil
}

func (s Store) Get(ctx context.Context, id int64) (auction.Record, error) {
	r, err := s.qry.GetCharacter(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return auction.Record{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetCharacter", id)
		return auction.Record{}, err
	}
	return r, nil
}

func (s Store) List(ctx context.Context, limit, offset int) ([]auction.Record, error) {
	records, err := s.qry.ListCharacters(ctx, limit, offset)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "ListCharacters", limit, offset)
	}
	return records, err
}

func (s Store) Count(ctx context.Context) (int64, error) {
	count, err := s.qry.CountCharacters(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "CountCharacters")
	}
	return count, err
}

func (s Store) CountByStatus(ctx context.Context, statuses ...string) (int64, error) {
	count, err := s.qry.CountCharactersByStatus(ctx, statuses)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "CountCharactersByStatus", statuses)
	}
	return count, err
}

func (s Store) StatusCounts(ctx context.Context) ([]StatusCount, error) {
	counts, err := s.qry.GroupCharactersByStatus(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GroupCharactersByStatus")
	}
	return counts, err
}

func (s Store) IDsByStatus(ctx context.Context, statuses ...string) ([]int64, error) {
	ids, err := s.qry.CharacterIDsByStatus(ctx, statuses)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "CharacterIDsByStatus", statuses)
	}
	return ids, err
}

// MarkFailed moves finished auctions among ids to the failed status in one
// statement and returns how many rows changed.
func (s Store) MarkFailed(ctx context.Context, ids []int64) (int64, error) {
	updated, err := s.qry.MarkCharactersFailed(ctx, ids)
	if err != nil {
		s.tel.ReportBroken(report_mark_failed, err, len(ids))
		return 0, err
	}
	s.tel.ReportCount(report_mark_failed, updated)
	return updated, nil
}

func (s Store) Servers(ctx context.Context) ([]string, error) {
	servers, err := s.qry.ListServers(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "ListServers")
	}
	return servers, err
}

func (s Store) RecordRun(ctx context.Context, run IngestRun) error {
	err := s.qry.CreateIngestRun(ctx, run)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "CreateIngestRun", run.ID)
	}
	return err
}

func (s Store) Runs(ctx context.Context, limit int) ([]IngestRun, error) {
	runs, err := s.qry.ListIngestRuns(ctx, limit)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "ListIngestRuns", limit)
	}
	return runs, err
}
