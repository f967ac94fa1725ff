// Package source provides content source implementations for the collection
// stage. Every source fetches items for a single interest and returns domain
// content items; resilience (retry, circuit breaking) lives inside each
// source so the collection engine can treat them uniformly.
package source

import (
	"context"

	"digestly/internal/domain/entity"
)

// Source fetches content for one interest from one upstream.
//
// Implementations must be safe for concurrent use; the collection engine
// fans out over interests and sources in parallel.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Fetch returns up to limit items relevant to the interest.
	// An empty result with a nil error means the source had nothing.
	Fetch(ctx context.Context, interest string, limit int) ([]*entity.ContentItem, error)
}
