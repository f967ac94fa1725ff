package repository

import (
	"context"

	"digestly/internal/domain/entity"
)

// RunRepository stores newsletter generation run records. Records are
// append-only: failed runs are diagnosed from their stored errors, never
// edited.
type RunRepository interface {
	// Insert appends a run record and fills in its assigned ID.
	Insert(ctx context.Context, record *entity.RunRecord) error

	// GetByGenerationID returns the record for a generation ID, or
	// entity.ErrNotFound when none exists.
	GetByGenerationID(ctx context.Context, generationID string) (*entity.RunRecord, error)

	// ListRecent returns the most recent runs, newest first.
	ListRecent(ctx context.Context, limit int) ([]*entity.RunRecord, error)

	// CountByStatus returns the number of runs per terminal status.
	CountByStatus(ctx context.Context) (map[entity.RunStatus]int64, error)
}
