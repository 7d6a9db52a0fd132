package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"quizdoc/api/internal/pipeline"
)

var ErrNotFound = sql.ErrNoRows

// RunRepo is the ledger of pipeline runs. It implements pipeline.Recorder.
// Only run metadata is kept; the question itself lives in Notion.
type RunRepo struct {
	DB     *sql.DB
	Engine string
	Model  string
}

func NewRunRepo(db *sql.DB, engine, model string) *RunRepo {
	return &RunRepo{DB: db, Engine: engine, Model: model}
}

const schema = `
create table if not exists quiz_runs (
  id            bigserial primary key,
  run_id        uuid not null unique,
  created_at    timestamptz not null default now(),
  file          text not null default '',
  image_hash    text not null default '',
  engine        text not null,
  model         text not null,
  state         text not null,
  failed_stage  text,
  error_kind    text,
  error         text,
  attempts      int not null default 0,
  parent_page   text not null default '',
  block_id      text,
  duration_ms   bigint not null default 0
);
alter table quiz_runs add column if not exists parent_page text not null default '';
alter table quiz_runs drop column if exists transcript;
alter table quiz_runs drop column if exists question_json;
create index if not exists quiz_runs_hash_idx on quiz_runs (image_hash, engine, model, created_at desc);`

func (r *RunRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

type RunRow struct {
	RunID       string
	CreatedAt   time.Time
	File        string
	ImageHash   string
	State       string
	FailedStage string
	ErrorKind   string
	Attempts    int
	ParentPage  string
	BlockID     string
}

func (r *RunRepo) Record(ctx context.Context, o pipeline.Outcome) error {
	var stage, kind, msg sql.NullString
	var f *pipeline.Failure
	if errors.As(o.Err, &f) {
		stage = sql.NullString{String: string(f.Stage), Valid: true}
		kind = sql.NullString{String: f.Category() + "." + f.Kind(), Valid: true}
		msg = sql.NullString{String: f.Err.Error(), Valid: true}
	}

	const q = `
insert into quiz_runs (
  run_id, file, image_hash, engine, model, state,
  failed_stage, error_kind, error, attempts, parent_page,
  block_id, duration_ms
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.DB.ExecContext(ctx, q,
		o.RunID, o.File, o.ImageHash, r.Engine, r.Model, string(o.State),
		stage, kind, msg, o.Attempts, o.ParentPageID,
		nullString(o.BlockID), o.Finished.Sub(o.Started).Milliseconds(),
	)
	return err
}

// FindPublished returns the latest successful run for the same image,
// engine and model under parentPage. maxAge <= 0 ignores age.
func (r *RunRepo) FindPublished(ctx context.Context, imageHash, parentPage string, maxAge time.Duration) (*RunRow, error) {
	const q = `
select run_id::text, created_at, file, image_hash, state,
       coalesce(failed_stage,''), coalesce(error_kind,''), attempts,
       parent_page, coalesce(block_id,'')
from quiz_runs
where image_hash = $1 and engine = $2 and model = $3 and state = $4 and parent_page = $5
order by created_at desc
limit 1`
	row, err := scanRun(r.DB.QueryRowContext(ctx, q, imageHash, r.Engine, r.Model, string(pipeline.Done), parentPage))
	if err != nil {
		return nil, err
	}
	if maxAge > 0 && time.Since(row.CreatedAt) > maxAge {
		return nil, ErrNotFound
	}
	return row, nil
}

// Recent lists the newest runs first.
func (r *RunRepo) Recent(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
select run_id::text, created_at, file, image_hash, state,
       coalesce(failed_stage,''), coalesce(error_kind,''), attempts,
       parent_page, coalesce(block_id,'')
from quiz_runs
order by created_at desc
limit $1`
	rows, err := r.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		row, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes ledger rows older than the given age.
func (r *RunRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	res, err := r.DB.ExecContext(ctx, `delete from quiz_runs where created_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*RunRow, error) {
	var row RunRow
	if err := s.Scan(&row.RunID, &row.CreatedAt, &row.File, &row.ImageHash, &row.State,
		&row.FailedStage, &row.ErrorKind, &row.Attempts, &row.ParentPage, &row.BlockID); err != nil {
		return nil, err
	}
	return &row, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
