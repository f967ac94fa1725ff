package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"digestly/internal/domain/entity"
	"digestly/internal/observability/metrics"
	"digestly/internal/repository"
)

// UserProfileRepo implements the UserProfileRepository interface for PostgreSQL.
type UserProfileRepo struct {
	db *sql.DB
}

// NewUserProfileRepo creates a new PostgreSQL-based UserProfileRepository.
func NewUserProfileRepo(db *sql.DB) repository.UserProfileRepository {
	return &UserProfileRepo{db: db}
}

const userProfileColumns = `
user_id, email, name, timezone, github_username, interests, interest_weights,
schedule_time, schedule_days, max_articles, include_github_activity,
include_trending_repos, content_type_preferences, last_newsletter_sent,
total_newsletters_sent, created_at, updated_at`

// Upsert creates or updates a profile keyed by email.
func (repo *UserProfileRepo) Upsert(ctx context.Context, profile *entity.UserProfile) error {
	if profile == nil {
		return fmt.Errorf("Upsert: profile is nil")
	}
	if profile.Email == "" {
		return fmt.Errorf("Upsert: email is empty")
	}

	interests, err := json.Marshal(profile.Interests)
	if err != nil {
		return fmt.Errorf("Upsert: marshal interests: %w", err)
	}
	weights, err := json.Marshal(profile.InterestWeights)
	if err != nil {
		return fmt.Errorf("Upsert: marshal interest weights: %w", err)
	}
	days, err := json.Marshal(profile.ScheduleDays)
	if err != nil {
		return fmt.Errorf("Upsert: marshal schedule days: %w", err)
	}
	contentTypes, err := json.Marshal(profile.ContentTypePreferences)
	if err != nil {
		return fmt.Errorf("Upsert: marshal content types: %w", err)
	}

	const query = `
INSERT INTO user_profiles
    (user_id, email, name, timezone, github_username, interests,
     interest_weights, schedule_time, schedule_days, max_articles,
     include_github_activity, include_trending_repos,
     content_type_preferences, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
ON CONFLICT (email)
DO UPDATE SET
    name = EXCLUDED.name,
    timezone = EXCLUDED.timezone,
    github_username = EXCLUDED.github_username,
    interests = EXCLUDED.interests,
    interest_weights = EXCLUDED.interest_weights,
    schedule_time = EXCLUDED.schedule_time,
    schedule_days = EXCLUDED.schedule_days,
    max_articles = EXCLUDED.max_articles,
    include_github_activity = EXCLUDED.include_github_activity,
    include_trending_repos = EXCLUDED.include_trending_repos,
    content_type_preferences = EXCLUDED.content_type_preferences,
    updated_at = NOW()
RETURNING user_id, created_at, updated_at`

	start := time.Now()
	err = repo.db.QueryRowContext(ctx, query,
		profile.UserID,
		profile.Email,
		profile.Name,
		profile.Timezone,
		profile.GitHubUsername,
		string(interests),
		string(weights),
		profile.ScheduleTime,
		string(days),
		profile.MaxArticles,
		profile.IncludeGitHubActivity,
		profile.IncludeTrendingRepos,
		string(contentTypes),
	).Scan(&profile.UserID, &profile.CreatedAt, &profile.UpdatedAt)
	metrics.RecordDBQuery("user_upsert", time.Since(start))

	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

// FindByEmail returns the profile for an email address.
func (repo *UserProfileRepo) FindByEmail(ctx context.Context, email string) (*entity.UserProfile, error) {
	query := `SELECT ` + userProfileColumns + ` FROM user_profiles WHERE email = $1`

	start := time.Now()
	row := repo.db.QueryRowContext(ctx, query, email)
	profile, err := scanUserProfile(row)
	metrics.RecordDBQuery("user_find", time.Since(start))

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("FindByEmail: %w", entity.ErrNotFound)
		}
		return nil, fmt.Errorf("FindByEmail: %w", err)
	}
	return profile, nil
}

// List returns all profiles ordered by email.
func (repo *UserProfileRepo) List(ctx context.Context) ([]*entity.UserProfile, error) {
	query := `SELECT ` + userProfileColumns + ` FROM user_profiles ORDER BY email`

	start := time.Now()
	rows, err := repo.db.QueryContext(ctx, query)
	metrics.RecordDBQuery("user_list", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	profiles := make([]*entity.UserProfile, 0)
	for rows.Next() {
		profile, err := scanUserProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("List: Scan: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return profiles, nil
}

// RecordNewsletterSent bumps delivery bookkeeping after a successful send.
func (repo *UserProfileRepo) RecordNewsletterSent(ctx context.Context, userID string, sentAt time.Time) error {
	const query = `
UPDATE user_profiles
SET last_newsletter_sent = $2,
    total_newsletters_sent = total_newsletters_sent + 1,
    updated_at = NOW()
WHERE user_id = $1`

	start := time.Now()
	result, err := repo.db.ExecContext(ctx, query, userID, sentAt)
	metrics.RecordDBQuery("user_record_sent", time.Since(start))
	if err != nil {
		return fmt.Errorf("RecordNewsletterSent: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("RecordNewsletterSent: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("RecordNewsletterSent: %w", entity.ErrNotFound)
	}
	return nil
}

func scanUserProfile(row rowScanner) (*entity.UserProfile, error) {
	profile := &entity.UserProfile{}
	var interests, weights, days, contentTypes string
	var lastSent sql.NullTime

	err := row.Scan(
		&profile.UserID,
		&profile.Email,
		&profile.Name,
		&profile.Timezone,
		&profile.GitHubUsername,
		&interests,
		&weights,
		&profile.ScheduleTime,
		&days,
		&profile.MaxArticles,
		&profile.IncludeGitHubActivity,
		&profile.IncludeTrendingRepos,
		&contentTypes,
		&lastSent,
		&profile.TotalNewslettersSent,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(interests), &profile.Interests); err != nil {
		return nil, fmt.Errorf("unmarshal interests: %w", err)
	}
	if err := json.Unmarshal([]byte(weights), &profile.InterestWeights); err != nil {
		return nil, fmt.Errorf("unmarshal interest weights: %w", err)
	}
	if err := json.Unmarshal([]byte(days), &profile.ScheduleDays); err != nil {
		return nil, fmt.Errorf("unmarshal schedule days: %w", err)
	}
	if err := json.Unmarshal([]byte(contentTypes), &profile.ContentTypePreferences); err != nil {
		return nil, fmt.Errorf("unmarshal content types: %w", err)
	}
	if lastSent.Valid {
		profile.LastNewsletterSent = lastSent.Time
	}
	return profile, nil
}

// InteractionRepo implements the InteractionRepository interface for PostgreSQL.
type InteractionRepo struct {
	db *sql.DB
}

// NewInteractionRepo creates a new PostgreSQL-based InteractionRepository.
func NewInteractionRepo(db *sql.DB) repository.InteractionRepository {
	return &InteractionRepo{db: db}
}

// Record appends one interaction.
func (repo *InteractionRepo) Record(ctx context.Context, interaction *entity.UserInteraction) error {
	if interaction == nil {
		return fmt.Errorf("Record: interaction is nil")
	}

	const query = `
INSERT INTO user_interactions (user_id, content_id, type, value, title, url, source, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	start := time.Now()
	_, err := repo.db.ExecContext(ctx, query,
		interaction.UserID,
		interaction.ContentID,
		string(interaction.Type),
		interaction.Value,
		interaction.Title,
		interaction.URL,
		interaction.Source,
		interaction.Timestamp,
	)
	metrics.RecordDBQuery("interaction_record", time.Since(start))

	if err != nil {
		return fmt.Errorf("Record: %w", err)
	}
	return nil
}

// ListByUser returns a recipient's interactions since the given time.
func (repo *InteractionRepo) ListByUser(ctx context.Context, userID string, since time.Time) ([]*entity.UserInteraction, error) {
	const query = `
SELECT user_id, content_id, type, value, title, url, source, occurred_at
FROM user_interactions
WHERE user_id = $1 AND occurred_at >= $2
ORDER BY occurred_at DESC`

	start := time.Now()
	rows, err := repo.db.QueryContext(ctx, query, userID, since)
	metrics.RecordDBQuery("interaction_list", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	defer func() { _ = rows.Close() }()

	interactions := make([]*entity.UserInteraction, 0)
	for rows.Next() {
		in := &entity.UserInteraction{}
		var interactionType string
		err := rows.Scan(
			&in.UserID,
			&in.ContentID,
			&interactionType,
			&in.Value,
			&in.Title,
			&in.URL,
			&in.Source,
			&in.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("ListByUser: Scan: %w", err)
		}
		in.Type = entity.InteractionType(interactionType)
		interactions = append(interactions, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	return interactions, nil
}
