// Package postgres implements the repository interfaces on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"digestly/internal/domain/entity"
	"digestly/internal/observability/metrics"
	"digestly/internal/repository"
)

// RunRepo implements the RunRepository interface for PostgreSQL.
type RunRepo struct {
	db *sql.DB
}

// NewRunRepo creates a new PostgreSQL-based RunRepository.
func NewRunRepo(db *sql.DB) repository.RunRepository {
	return &RunRepo{db: db}
}

// Insert appends a run record. Records are never updated afterwards.
func (repo *RunRepo) Insert(ctx context.Context, record *entity.RunRecord) error {
	if record == nil {
		return fmt.Errorf("Insert: record is nil")
	}
	if record.GenerationID == "" {
		return fmt.Errorf("Insert: generation ID is empty")
	}

	const query = `
INSERT INTO newsletter_runs
    (generation_id, user_email, status, final_stage, articles_collected,
     articles_included, delivery_id, dry_run, errors, stage_timings,
     started_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id`

	start := time.Now()
	err := repo.db.QueryRowContext(ctx, query,
		record.GenerationID,
		record.UserEmail,
		string(record.Status),
		record.FinalStage,
		record.ArticlesCollected,
		record.ArticlesIncluded,
		record.DeliveryID,
		record.DryRun,
		nullableJSON(record.Errors),
		nullableJSON(record.StageTimings),
		record.StartedAt,
		record.CompletedAt,
	).Scan(&record.ID)
	metrics.RecordDBQuery("run_insert", time.Since(start))

	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// GetByGenerationID returns the record for a generation ID.
func (repo *RunRepo) GetByGenerationID(ctx context.Context, generationID string) (*entity.RunRecord, error) {
	const query = `
SELECT id, generation_id, user_email, status, final_stage, articles_collected,
       articles_included, delivery_id, dry_run, errors, stage_timings,
       started_at, completed_at
FROM newsletter_runs
WHERE generation_id = $1`

	start := time.Now()
	row := repo.db.QueryRowContext(ctx, query, generationID)
	record, err := scanRunRecord(row)
	metrics.RecordDBQuery("run_get", time.Since(start))

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByGenerationID: %w", entity.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByGenerationID: %w", err)
	}
	return record, nil
}

// ListRecent returns the most recent runs, newest first.
func (repo *RunRepo) ListRecent(ctx context.Context, limit int) ([]*entity.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
SELECT id, generation_id, user_email, status, final_stage, articles_collected,
       articles_included, delivery_id, dry_run, errors, stage_timings,
       started_at, completed_at
FROM newsletter_runs
ORDER BY started_at DESC
LIMIT $1`

	start := time.Now()
	rows, err := repo.db.QueryContext(ctx, query, limit)
	metrics.RecordDBQuery("run_list", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*entity.RunRecord, 0, limit)
	for rows.Next() {
		record, err := scanRunRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ListRecent: Scan: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	return records, nil
}

// CountByStatus returns run counts grouped by terminal status.
func (repo *RunRepo) CountByStatus(ctx context.Context) (map[entity.RunStatus]int64, error) {
	const query = `SELECT status, COUNT(*) FROM newsletter_runs GROUP BY status`

	start := time.Now()
	rows, err := repo.db.QueryContext(ctx, query)
	metrics.RecordDBQuery("run_count", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("CountByStatus: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[entity.RunStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("CountByStatus: Scan: %w", err)
		}
		counts[entity.RunStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("CountByStatus: %w", err)
	}
	return counts, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunRecord(row rowScanner) (*entity.RunRecord, error) {
	record := &entity.RunRecord{}
	var status string
	var errorsJSON, timingsJSON sql.NullString

	err := row.Scan(
		&record.ID,
		&record.GenerationID,
		&record.UserEmail,
		&status,
		&record.FinalStage,
		&record.ArticlesCollected,
		&record.ArticlesIncluded,
		&record.DeliveryID,
		&record.DryRun,
		&errorsJSON,
		&timingsJSON,
		&record.StartedAt,
		&record.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Status = entity.RunStatus(status)
	if errorsJSON.Valid {
		record.Errors = []byte(errorsJSON.String)
	}
	if timingsJSON.Valid {
		record.StageTimings = []byte(timingsJSON.String)
	}
	return record, nil
}

// nullableJSON maps empty JSON payloads to NULL.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
