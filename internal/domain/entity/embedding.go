package entity

import (
	"fmt"
	"time"
)

// EmbeddingModel is the model used for all content embeddings.
const EmbeddingModel = "text-embedding-3-small"

// EmbeddingDimension is the vector dimension produced by EmbeddingModel.
const EmbeddingDimension = 1536

// ContentEmbedding stores a vector representation of a delivered content
// item, scoped to one recipient. It backs novelty scoring: content similar
// to what a recipient already received scores low on novelty.
type ContentEmbedding struct {
	ID          int64
	UserID      string
	ContentHash string
	Title       string
	Model       string
	Dimension   int
	Embedding   []float32
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewContentEmbedding creates an embedding record for a recipient and item.
func NewContentEmbedding(userID, contentHash, title string, vector []float32) *ContentEmbedding {
	return &ContentEmbedding{
		UserID:      userID,
		ContentHash: contentHash,
		Title:       title,
		Model:       EmbeddingModel,
		Dimension:   len(vector),
		Embedding:   vector,
	}
}

// Validate checks the embedding before persistence.
func (e *ContentEmbedding) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("embedding user ID cannot be empty")
	}
	if e.ContentHash == "" {
		return fmt.Errorf("embedding content hash cannot be empty")
	}
	if e.Model == "" {
		return fmt.Errorf("embedding model cannot be empty")
	}
	if len(e.Embedding) == 0 {
		return fmt.Errorf("embedding vector cannot be empty")
	}
	if e.Dimension != len(e.Embedding) {
		return fmt.Errorf("embedding dimension %d does not match vector length %d",
			e.Dimension, len(e.Embedding))
	}
	return nil
}
