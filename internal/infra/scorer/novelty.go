package scorer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"digestly/internal/domain/entity"
	"digestly/internal/repository"
)

// noveltySearchLimit is how many nearest neighbours to consider per item.
const noveltySearchLimit = 5

// embeddingCreator is the subset of the OpenAI client used for embeddings.
type embeddingCreator interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// NoveltyScorer assigns novelty scores by comparing content embeddings
// against what the recipient already received. Scores range from 0 (near
// duplicate of past content) to 1 (nothing similar on record).
type NoveltyScorer struct {
	client embeddingCreator
	store  repository.ContentEmbeddingRepository
	logger *slog.Logger
}

func NewNoveltyScorer(apiKey string, store repository.ContentEmbeddingRepository, logger *slog.Logger) *NoveltyScorer {
	return &NoveltyScorer{
		client: openai.NewClient(apiKey),
		store:  store,
		logger: logger,
	}
}

// Score fills NoveltyScore on each item and records the item's embedding for
// future runs. Per-item store failures are logged and skipped; only the
// embedding API call itself is fatal.
func (n *NoveltyScorer) Score(ctx context.Context, profile *entity.UserProfile, analyzed []*entity.AnalyzedContent) error {
	if len(analyzed) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	inputs := make([]string, len(analyzed))
	for i, a := range analyzed {
		inputs[i] = embeddingInput(a.Item)
	}

	resp, err := n.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.SmallEmbedding3,
	})
	if err != nil {
		return fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(analyzed) {
		return fmt.Errorf("embedding response size mismatch: got %d, want %d",
			len(resp.Data), len(analyzed))
	}

	for i, a := range analyzed {
		vector := resp.Data[i].Embedding

		similar, err := n.store.SearchSimilar(ctx, profile.UserID, vector, noveltySearchLimit)
		if err != nil {
			n.logger.WarnContext(ctx, "novelty search failed, leaving score unset",
				slog.String("content_hash", a.Item.ContentHash),
				slog.String("error", err.Error()))
			continue
		}

		a.NoveltyScore = floatPtr(noveltyFromSimilar(similar))

		embedding := entity.NewContentEmbedding(profile.UserID, a.Item.ContentHash, a.Item.Title, vector)
		if err := n.store.Upsert(ctx, embedding); err != nil {
			n.logger.WarnContext(ctx, "embedding upsert failed",
				slog.String("content_hash", a.Item.ContentHash),
				slog.String("error", err.Error()))
		}
	}

	return nil
}

// embeddingInput is the text embedded per item. Title plus a summary prefix
// keeps requests small while preserving topical identity.
func embeddingInput(item *entity.ContentItem) string {
	const maxChars = 1000
	text := item.Title
	if item.Summary != "" {
		text += "\n" + item.Summary
	}
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return text
}

// noveltyFromSimilar converts nearest-neighbour similarity into a novelty
// score. An identical past item yields 0; no history yields 1.
func noveltyFromSimilar(similar []repository.SimilarContent) float64 {
	if len(similar) == 0 {
		return 1.0
	}
	max := 0.0
	for _, s := range similar {
		if s.Similarity > max {
			max = s.Similarity
		}
	}
	return clamp(1.0 - max)
}
