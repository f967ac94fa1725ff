package repository

import (
	"context"
	"time"

	"digestly/internal/domain/entity"
)

// SimilarContent represents the result of a similarity search.
// Similarity is cosine similarity in [0.0, 1.0].
type SimilarContent struct {
	ContentHash string
	Title       string
	Similarity  float64
}

// ContentEmbeddingRepository manages per-recipient content embeddings used
// for novelty scoring.
type ContentEmbeddingRepository interface {
	// Upsert creates or updates an embedding. The combination of
	// (user_id, content_hash, model) is the unique key; on conflict the
	// vector and updated_at are replaced.
	Upsert(ctx context.Context, embedding *entity.ContentEmbedding) error

	// SearchSimilar finds the recipient's stored content most similar to the
	// given vector, ordered by similarity descending. Returns an empty slice
	// when the recipient has no history.
	SearchSimilar(ctx context.Context, userID string, vector []float32, limit int) ([]SimilarContent, error)

	// DeleteOlderThan removes embeddings last updated before the cutoff and
	// returns the number of deleted rows.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
