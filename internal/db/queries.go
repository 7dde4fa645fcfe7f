package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"tcaqs/internal/auction"

	"github.com/google/uuid"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

// characterColumns is the column order used by every characters query.
var characterColumns = []string{
	"id",
	"status",
	"name",
	"is_name_contains_special_character",
	"bid",
	"auction_start_date_iso",
	"auction_end_date_iso",
	"level",
	"vocation",
	"server",
	"axe_fighting",
	"club_fighting",
	"distance_fighting",
	"fishing",
	"fist_fighting",
	"magic_level",
	"shielding",
	"sword_fighting",
	"mounts",
	"outfits",
	"gold",
	"achievement_points",
	"is_transfer_available",
	"charm_expansion",
	"available_charm_points",
	"spent_charm_points",
	"hunting_task_points",
	"permanent_prey_task_slot",
	"permanent_hunt_task_slot",
	"prey_wildcards",
	"hirelings",
	"hirelings_jobs",
	"hirelings_outfits",
	"imbuements",
	"charms",
}

func characterValues(r auction.Record) []any {
	var bid sql.NullInt64
	if r.Bid != nil {
		bid = sql.NullInt64{Int64: *r.Bid, Valid: true}
	}
	return []any{
		r.ID,
		r.Status,
		r.Name,
		r.NameHasSpecialCharacter,
		bid,
		r.AuctionStartISO,
		r.AuctionEndISO,
		r.Level,
		r.Vocation,
		r.Server,
		r.AxeFighting,
		r.ClubFighting,
		r.DistanceFighting,
		r.Fishing,
		r.FistFighting,
		r.MagicLevel,
		r.Shielding,
		r.SwordFighting,
		r.Mounts,
		r.Outfits,
		r.Gold,
		r.AchievementPoints,
		r.IsTransferAvailable,
		r.CharmExpansion,
		r.AvailableCharmPoints,
		r.SpentCharmPoints,
		r.HuntingTaskPoints,
		r.PermanentPreyTaskSlot,
		r.PermanentHuntTaskSlot,
		r.PreyWildcards,
		r.Hirelings,
		r.HirelingsJobs,
		r.HirelingsOutfits,
		r.Imbuements,
		r.Charms,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharacter(row rowScanner) (auction.Record, error) {
	var r auction.Record
	var bid sql.NullInt64
	err := row.Scan(
		&r.ID,
		&r.Status,
		&r.Name,
		&r.NameHasSpecialCharacter,
		&bid,
		&r.AuctionStartISO,
		&r.AuctionEndISO,
		&r.Level,
		&r.Vocation,
		&r.Server,
		&r.AxeFighting,
		&r.ClubFighting,
		&r.DistanceFighting,
		&r.Fishing,
		&r.FistFighting,
		&r.MagicLevel,
		&r.Shielding,
		&r.SwordFighting,
		&r.Mounts,
		&r.Outfits,
		&r.Gold,
		&r.AchievementPoints,
		&r.IsTransferAvailable,
		&r.CharmExpansion,
		&r.AvailableCharmPoints,
		&r.SpentCharmPoints,
		&r.HuntingTaskPoints,
		&r.PermanentPreyTaskSlot,
		&r.PermanentHuntTaskSlot,
		&r.PreyWildcards,
		&r.Hirelings,
		&r.HirelingsJobs,
		&r.HirelingsOutfits,
		&r.Imbuements,
		&r.Charms,
	)
	if err != nil {
		return auction.Record{}, err
	}
	if bid.Valid {
		r.Bid = auction.Int64(bid.Int64)
	}
	return r, nil
}

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func anySlice[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

var upsertCharacter = func() string {
	updates := make([]string, 0, len(characterColumns)-1)
	for _, col := range characterColumns[1:] {
		if col == "status" {
			// failed is terminal, a re-ingested page can't revive it
			updates = append(updates, fmt.Sprintf(
				"status = case when characters.status = '%s' then characters.status else excluded.status end",
				auction.StatusFailed,
			))
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	return fmt.Sprintf(
		"insert into characters (%s) values (%s) on conflict(id) do update set %s",
		strings.Join(characterColumns, ", "),
		placeholders(len(characterColumns)),
		strings.Join(updates, ", "),
	)
}()

// UpsertCharacter inserts the record or replaces the columns of the existing
// row with the same id. A failed status is kept.
func (q *Queries) UpsertCharacter(ctx context.Context, r auction.Record) error {
	_, err := q.db.ExecContext(ctx, upsertCharacter, characterValues(r)...)
	return err
}

var getCharacter = fmt.Sprintf(
	"select %s from characters where id = ?",
	strings.Join(characterColumns, ", "),
)

func (q *Queries) GetCharacter(ctx context.Context, id int64) (auction.Record, error) {
	row := q.db.QueryRowContext(ctx, getCharacter, id)
	return scanCharacter(row)
}

var listCharacters = fmt.Sprintf(
	"select %s from characters order by id limit ? offset ?",
	strings.Join(characterColumns, ", "),
)

func (q *Queries) ListCharacters(ctx context.Context, limit, offset int) ([]auction.Record, error) {
	rows, err := q.db.QueryContext(ctx, listCharacters, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auction.Record
	for rows.Next() {
		r, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) CountCharacters(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, "select count(*) from characters").Scan(&count)
	return count, err
}

func (q *Queries) CountCharactersByStatus(ctx context.Context, statuses []string) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(
		"select count(*) from characters where status in (%s)",
		placeholders(len(statuses)),
	)
	var count int64
	err := q.db.QueryRowContext(ctx, query, anySlice(statuses)...).Scan(&count)
	return count, err
}

type StatusCount struct {
	Status string
	Count  int64
}

func (q *Queries) GroupCharactersByStatus(ctx context.Context) ([]StatusCount, error) {
	rows, err := q.db.QueryContext(
		ctx,
		"select status, count(*) from characters group by status order by count(*) desc, status",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var c StatusCount
		err := rows.Scan(&c.Status, &c.Count)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) CharacterIDsByStatus(ctx context.Context, statuses []string) ([]int64, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		"select id from characters where status in (%s) order by id",
		placeholders(len(statuses)),
	)
	rows, err := q.db.QueryContext(ctx, query, anySlice(statuses)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		err := rows.Scan(&id)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// MarkCharactersFailed moves the given ids to the failed status, rows that
// are not in one of the finished statuses are left untouched.
func (q *Queries) MarkCharactersFailed(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(
		"update characters set status = ? where id in (%s) and status in (%s)",
		placeholders(len(ids)),
		placeholders(len(auction.FinishedStatuses)),
	)
	args := make([]any, 0, 1+len(ids)+len(auction.FinishedStatuses))
	args = append(args, auction.StatusFailed)
	args = append(args, anySlice(ids)...)
	args = append(args, anySlice(auction.FinishedStatuses)...)

	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) ListServers(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, "select distinct server from characters order by server")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var server string
		err := rows.Scan(&server)
		if err != nil {
			return nil, err
		}
		out = append(out, server)
	}
	return out, rows.Err()
}

// IngestRun is one row of the ingest run log.
type IngestRun struct {
	ID        uuid.UUID
	Source    string
	StartedAt time.Time
	Elapsed   time.Duration
	Seen      int64
	Persisted int64
	Failed    int64
}

func (q *Queries) CreateIngestRun(ctx context.Context, run IngestRun) error {
	_, err := q.db.ExecContext(
		ctx,
		`insert into ingest_runs (id, source, started_at, elapsed_ms, seen, persisted, failed)
		values (?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(),
		run.Source,
		run.StartedAt.Unix(),
		run.Elapsed.Milliseconds(),
		run.Seen,
		run.Persisted,
		run.Failed,
	)
	return err
}

func (q *Queries) ListIngestRuns(ctx context.Context, limit int) ([]IngestRun, error) {
	rows, err := q.db.QueryContext(
		ctx,
		`select id, source, started_at, elapsed_ms, seen, persisted, failed
		from ingest_runs order by started_at desc limit ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IngestRun
	for rows.Next() {
		var run IngestRun
		var id string
		var startedAt, elapsedMs int64
		err := rows.Scan(&id, &run.Source, &startedAt, &elapsedMs, &run.Seen, &run.Persisted, &run.Failed)
		if err != nil {
			return nil, err
		}
		run.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("ingest run id %q: %w", id, err)
		}
		run.StartedAt = time.Unix(startedAt, 0)
		run.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		out = append(out, run)
	}
	return out, rows.Err()
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}
