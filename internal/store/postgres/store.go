// Package postgres provides the Postgres-backed ResultStore.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pricewatch/pricewatch/internal/crawler"
	"github.com/pricewatch/pricewatch/internal/store"
)

// Store implements store.ResultStore using a pgx connection pool.
// Successful outcomes additionally append to price_history and update
// the product's current price.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store from a DSN.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// StartJob upserts the job row as running.
func (s *Store) StartJob(ctx context.Context, jobID uuid.UUID, total int) error {
	query := `
		INSERT INTO crawl_jobs (id, status, progress, processed_targets, total_targets, started_at)
		VALUES ($1, $2, 0, 0, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    progress = 0,
		    processed_targets = 0,
		    total_targets = EXCLUDED.total_targets,
		    started_at = EXCLUDED.started_at;
	`
	if _, err := s.pool.Exec(ctx, query, jobID, store.JobStatusRunning, total, time.Now().UTC()); err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	return nil
}

// UpdateProgress records processed count and derived percentage.
func (s *Store) UpdateProgress(ctx context.Context, jobID uuid.UUID, processed, total int) error {
	query := `
		UPDATE crawl_jobs
		SET progress = $1, processed_targets = $2, total_targets = $3
		WHERE id = $4;
	`
	progress := store.ProgressPercent(processed, total)
	if _, err := s.pool.Exec(ctx, query, progress, processed, total, jobID); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// RecordOutcome persists the per-target outcome row and, on success,
// the price-history append and current-price update in one
// transaction.
func (s *Store) RecordOutcome(ctx context.Context, jobID uuid.UUID, outcome crawler.Outcome) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin outcome tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	outcomeQuery := `
		INSERT INTO crawl_outcomes
			(job_id, target_id, success, error_code, error_message, duration_ms, retries, user_agent, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	if _, err := tx.Exec(ctx, outcomeQuery,
		jobID,
		outcome.TargetID,
		outcome.Success,
		nullString(string(outcome.ErrorCode)),
		nullString(outcome.ErrorMessage),
		outcome.Duration.Milliseconds(),
		outcome.Retries,
		nullString(outcome.UserAgent),
		outcome.CheckedAt,
	); err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}

	if outcome.Success && outcome.Product != nil && outcome.Product.Price != nil {
		historyQuery := `
			INSERT INTO price_history (product_id, price, is_available, checked_at)
			VALUES ($1, $2, $3, $4);
		`
		if _, err := tx.Exec(ctx, historyQuery,
			outcome.TargetID,
			*outcome.Product.Price,
			outcome.Product.Available,
			outcome.CheckedAt,
		); err != nil {
			return fmt.Errorf("append price history: %w", err)
		}

		productQuery := `
			UPDATE products
			SET current_price = $1, last_checked = $2, updated_at = $3
			WHERE id = $4;
		`
		if _, err := tx.Exec(ctx, productQuery,
			*outcome.Product.Price,
			outcome.CheckedAt,
			time.Now().UTC(),
			outcome.TargetID,
		); err != nil {
			return fmt.Errorf("update current price: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit outcome tx: %w", err)
	}
	return nil
}

// CompleteJob writes the terminal job status.
func (s *Store) CompleteJob(ctx context.Context, jobID uuid.UUID, status store.JobStatus, errText string) error {
	query := `
		UPDATE crawl_jobs
		SET status = $1, error_message = $2, completed_at = $3,
		    progress = CASE WHEN $1 = 'completed' THEN 100 ELSE progress END
		WHERE id = $4;
	`
	if _, err := s.pool.Exec(ctx, query, status, nullString(errText), time.Now().UTC(), jobID); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// GetJob fetches the job row.
func (s *Store) GetJob(ctx context.Context, jobID uuid.UUID) (store.JobState, error) {
	query := `
		SELECT id, status, progress, processed_targets, total_targets,
		       COALESCE(error_message, ''), started_at, completed_at
		FROM crawl_jobs WHERE id = $1;
	`
	var state store.JobState
	err := s.pool.QueryRow(ctx, query, jobID).Scan(
		&state.ID,
		&state.Status,
		&state.Progress,
		&state.Processed,
		&state.Total,
		&state.ErrorText,
		&state.Started,
		&state.Finished,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return store.JobState{}, store.ErrJobNotFound
		}
		return store.JobState{}, fmt.Errorf("get job: %w", err)
	}
	return state, nil
}

// ListOutcomes returns all outcome rows for a job in recorded order.
func (s *Store) ListOutcomes(ctx context.Context, jobID uuid.UUID) ([]crawler.Outcome, error) {
	query := `
		SELECT target_id, success, COALESCE(error_code, ''), COALESCE(error_message, ''),
		       duration_ms, retries, COALESCE(user_agent, ''), checked_at
		FROM crawl_outcomes WHERE job_id = $1 ORDER BY checked_at;
	`
	rows, err := s.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []crawler.Outcome
	for rows.Next() {
		var o crawler.Outcome
		var durationMs int64
		var code string
		if err := rows.Scan(
			&o.TargetID,
			&o.Success,
			&code,
			&o.ErrorMessage,
			&durationMs,
			&o.Retries,
			&o.UserAgent,
			&o.CheckedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.ErrorCode = crawler.ErrorCode(code)
		o.Duration = time.Duration(durationMs) * time.Millisecond
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return outcomes, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
