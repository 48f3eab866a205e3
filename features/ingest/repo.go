package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
)

type Repository interface {
	Create(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
	MarkRunning(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, documents, chunks int) error
	Fail(ctx context.Context, id string, chunks int, message string) error
	Requeue(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status string) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const runColumns = `id, path, id_strategy, status, documents, chunks, error, created_at, updated_at`

func (r *PostgresRepo) Create(ctx context.Context, run *Run) error {
	query := `INSERT INTO ingest_runs (path, id_strategy, status) VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, run.Path, run.IDStrategy, run.Status).
		Scan(&run.ID, &run.CreatedAt, &run.UpdatedAt)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	run := &Run{}
	if err := s.Scan(&run.ID, &run.Path, &run.IDStrategy, &run.Status, &run.Documents, &run.Chunks, &run.Error, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	return run, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM ingest_runs WHERE id = $1`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: ingest run %s", apperr.ErrNotFound, id)
	}
	return run, err
}

func (r *PostgresRepo) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM ingest_runs ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (r *PostgresRepo) exec(ctx context.Context, id, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: ingest run %s", apperr.ErrNotFound, id)
	}
	return nil
}

func (r *PostgresRepo) MarkRunning(ctx context.Context, id string) error {
	query := `UPDATE ingest_runs SET status = 'running', error = '', updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, id, query, id)
}

func (r *PostgresRepo) Complete(ctx context.Context, id string, documents, chunks int) error {
	query := `UPDATE ingest_runs SET status = 'completed', documents = $1, chunks = $2, error = '', updated_at = NOW() WHERE id = $3`
	return r.exec(ctx, id, query, documents, chunks, id)
}

func (r *PostgresRepo) Fail(ctx context.Context, id string, chunks int, message string) error {
	query := `UPDATE ingest_runs SET status = 'failed', chunks = $1, error = $2, updated_at = NOW() WHERE id = $3`
	return r.exec(ctx, id, query, chunks, message, id)
}

func (r *PostgresRepo) Requeue(ctx context.Context, id string) error {
	query := `UPDATE ingest_runs SET status = 'queued', error = '', updated_at = NOW() WHERE id = $1 AND status = 'failed'`
	return r.exec(ctx, id, query, id)
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingest_runs`).Scan(&count)
	return count, err
}

func (r *PostgresRepo) CountByStatus(ctx context.Context, status string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingest_runs WHERE status = $1`, status).Scan(&count)
	return count, err
}
