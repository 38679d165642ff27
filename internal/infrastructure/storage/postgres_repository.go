package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"WikiTracker/internal/domain"
	"WikiTracker/internal/ports"
)

// insertBatch bounds the rows per INSERT so statements stay under the bind-parameter limit.
const insertBatch = 500

// PostgresRepository keeps every classified row of a run in Postgres.
type PostgresRepository struct {
	db    *sql.DB
	table string
	psql  sq.StatementBuilderType
}

var _ ports.ResultRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation and the target table name.
func NewPostgresRepository(db *sql.DB, table string) *PostgresRepository {
	return &PostgresRepository{
		db:    db,
		table: table,
		psql:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// EnsureSchema creates the audit table when it does not exist yet.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, createTableSQL(r.table)); err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	return nil
}

// SaveRun inserts all rows of the run in a single transaction.
func (r *PostgresRepository) SaveRun(ctx context.Context, summary domain.RunSummary, table *domain.MergedTable) error {
	if r.db == nil || table.Len() == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	classifiedAt := summary.FinishedAt
	if classifiedAt.IsZero() {
		classifiedAt = time.Now()
	}

	for start := 0; start < table.Len(); start += insertBatch {
		end := min(start+insertBatch, table.Len())
		query, args, err := r.insertQuery(summary, table.Rows[start:end], start, classifiedAt).ToSql()
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CountLabels returns label frequencies of a stored run.
func (r *PostgresRepository) CountLabels(ctx context.Context, runID string) (map[domain.Label]int, error) {
	if r.db == nil {
		return nil, errors.New("database is not configured")
	}

	query, args, err := r.countQuery(runID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}

	result := make(map[domain.Label]int)
	for rows.Next() {
		var (
			label string
			count int
		)
		if err := rows.Scan(&label, &count); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan label: %w", err)
		}
		result[domain.Label(label)] = count
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

func (r *PostgresRepository) insertQuery(summary domain.RunSummary, rows []domain.MergedRecord, offset int, at time.Time) sq.InsertBuilder {
	insert := r.psql.Insert(r.table).
		Columns("run_id", "row_index", "video_title", "description", "label", "model", "classified_at")
	for i, row := range rows {
		insert = insert.Values(
			summary.RunID,
			offset+i,
			row.Tracker.VideoTitle,
			sql.NullString{String: row.Description.String, Valid: row.Description.Valid},
			string(row.Label),
			summary.Model,
			at,
		)
	}
	return insert
}

func (r *PostgresRepository) countQuery(runID string) sq.SelectBuilder {
	return r.psql.Select("label", "COUNT(*)").
		From(r.table).
		Where(sq.Eq{"run_id": runID}).
		GroupBy("label").
		OrderBy("label")
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    run_id        TEXT        NOT NULL,
    row_index     INTEGER     NOT NULL,
    video_title   TEXT        NOT NULL,
    description   TEXT,
    label         TEXT        NOT NULL,
    model         TEXT        NOT NULL,
    classified_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (run_id, row_index)
)`, table)
}
