package repository

import (
	"context"
	"time"

	"digestly/internal/domain/entity"
)

// UserProfileRepository manages newsletter recipient profiles.
type UserProfileRepository interface {
	// Upsert creates or updates a profile keyed by email.
	Upsert(ctx context.Context, profile *entity.UserProfile) error

	// FindByEmail returns the profile for an email address, or
	// entity.ErrNotFound when none exists.
	FindByEmail(ctx context.Context, email string) (*entity.UserProfile, error)

	// List returns all profiles ordered by email.
	List(ctx context.Context) ([]*entity.UserProfile, error)

	// RecordNewsletterSent updates the recipient's delivery bookkeeping
	// after a successful send.
	RecordNewsletterSent(ctx context.Context, userID string, sentAt time.Time) error
}

// InteractionRepository records recipient engagement signals for use in
// analytics and interest weight adjustment.
type InteractionRepository interface {
	// Record appends one interaction.
	Record(ctx context.Context, interaction *entity.UserInteraction) error

	// ListByUser returns a recipient's interactions since the given time,
	// newest first.
	ListByUser(ctx context.Context, userID string, since time.Time) ([]*entity.UserInteraction, error)
}
