package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"digestly/internal/domain/entity"
	"digestly/internal/observability/metrics"
	"digestly/internal/repository"
)

// DefaultSearchTimeout is the default timeout for similarity search queries.
const DefaultSearchTimeout = 5 * time.Second

// ContentEmbeddingRepo implements the ContentEmbeddingRepository interface
// for PostgreSQL with the pgvector extension.
type ContentEmbeddingRepo struct {
	db *sql.DB
}

// NewContentEmbeddingRepo creates a new PostgreSQL-based ContentEmbeddingRepository.
func NewContentEmbeddingRepo(db *sql.DB) repository.ContentEmbeddingRepository {
	return &ContentEmbeddingRepo{db: db}
}

// Upsert creates a new embedding or updates an existing one.
// Uses INSERT ... ON CONFLICT DO UPDATE on (user_id, content_hash, model).
func (repo *ContentEmbeddingRepo) Upsert(ctx context.Context, embedding *entity.ContentEmbedding) error {
	if embedding == nil {
		return fmt.Errorf("Upsert: embedding is nil")
	}
	if err := embedding.Validate(); err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}

	vector := pgvector.NewVector(embedding.Embedding)

	const query = `
INSERT INTO content_embeddings (user_id, content_hash, title, model, dimension, embedding, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
ON CONFLICT (user_id, content_hash, model)
DO UPDATE SET
	title = EXCLUDED.title,
	dimension = EXCLUDED.dimension,
	embedding = EXCLUDED.embedding,
	updated_at = NOW()
RETURNING id, created_at, updated_at`

	start := time.Now()
	err := repo.db.QueryRowContext(ctx, query,
		embedding.UserID,
		embedding.ContentHash,
		embedding.Title,
		embedding.Model,
		embedding.Dimension,
		vector,
	).Scan(&embedding.ID, &embedding.CreatedAt, &embedding.UpdatedAt)
	metrics.RecordDBQuery("embedding_upsert", time.Since(start))

	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

// SearchSimilar finds the recipient's stored content most similar to the
// given vector. Uses cosine distance operator (<=>) for comparison.
func (repo *ContentEmbeddingRepo) SearchSimilar(ctx context.Context, userID string, vector []float32, limit int) ([]repository.SimilarContent, error) {
	searchCtx, cancel := context.WithTimeout(ctx, DefaultSearchTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	pgVector := pgvector.NewVector(vector)

	const query = `
SELECT content_hash, title, 1 - (embedding <=> $2) AS similarity
FROM content_embeddings
WHERE user_id = $1
ORDER BY embedding <=> $2
LIMIT $3`

	start := time.Now()
	rows, err := repo.db.QueryContext(searchCtx, query, userID, pgVector, limit)
	metrics.RecordDBQuery("embedding_search", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("SearchSimilar: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]repository.SimilarContent, 0, limit)
	for rows.Next() {
		var result repository.SimilarContent
		if err := rows.Scan(&result.ContentHash, &result.Title, &result.Similarity); err != nil {
			return nil, fmt.Errorf("SearchSimilar: Scan: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SearchSimilar: %w", err)
	}
	return results, nil
}

// DeleteOlderThan removes embeddings last updated before the cutoff.
func (repo *ContentEmbeddingRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM content_embeddings WHERE updated_at < $1`

	start := time.Now()
	result, err := repo.db.ExecContext(ctx, query, cutoff)
	metrics.RecordDBQuery("embedding_prune", time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("DeleteOlderThan: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteOlderThan: %w", err)
	}
	return deleted, nil
}
