package postgres_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digestly/internal/domain/entity"
	pg "digestly/internal/infra/adapter/persistence/postgres"
)

func profileRowColumns() []string {
	return []string{
		"user_id", "email", "name", "timezone", "github_username", "interests",
		"interest_weights", "schedule_time", "schedule_days", "max_articles",
		"include_github_activity", "include_trending_repos",
		"content_type_preferences", "last_newsletter_sent",
		"total_newsletters_sent", "created_at", "updated_at",
	}
}

func profileRow(email string) []driverValue {
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	return []driverValue{
		"uid-1", email, "Dev", "Europe/Berlin", "devhandle",
		`["golang","kubernetes"]`, `{"golang":1.5}`, "07:30", `[1,3,5]`,
		8, true, false, `["articles","github"]`, now, 12, now, now,
	}
}

type driverValue = driver.Value

func TestUserProfileRepo_FindByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows(profileRowColumns()).AddRow(profileRow("dev@example.com")...)
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_profiles WHERE email = $1")).
		WithArgs("dev@example.com").
		WillReturnRows(rows)

	repo := pg.NewUserProfileRepo(db)
	profile, err := repo.FindByEmail(context.Background(), "dev@example.com")
	require.NoError(t, err)

	assert.Equal(t, "uid-1", profile.UserID)
	assert.Equal(t, []string{"golang", "kubernetes"}, profile.Interests)
	assert.Equal(t, 1.5, profile.InterestWeight("golang"))
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, profile.ScheduleDays)
	assert.Equal(t, 8, profile.MaxArticles)
	assert.True(t, profile.IncludeGitHubActivity)
	assert.False(t, profile.IncludeTrendingRepos)
	assert.Equal(t, 12, profile.TotalNewslettersSent)
	assert.False(t, profile.LastNewsletterSent.IsZero())
}

func TestUserProfileRepo_FindByEmailNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_profiles")).
		WithArgs("missing@example.com").
		WillReturnError(sql.ErrNoRows)

	repo := pg.NewUserProfileRepo(db)
	_, err = repo.FindByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestUserProfileRepo_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	profile := entity.NewUserProfile("dev@example.com", "Dev", []string{"golang"})
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO user_profiles")).
		WithArgs(profile.UserID, profile.Email, profile.Name, profile.Timezone,
			profile.GitHubUsername, `["golang"]`, `{}`, profile.ScheduleTime,
			`[1,2,3,4,5]`, profile.MaxArticles, true, true,
			`["articles","videos","papers","discussions","github"]`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "created_at", "updated_at"}).
			AddRow(profile.UserID, now, now))

	repo := pg.NewUserProfileRepo(db)
	require.NoError(t, repo.Upsert(context.Background(), profile))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserProfileRepo_UpsertValidation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewUserProfileRepo(db)
	require.Error(t, repo.Upsert(context.Background(), nil))
	require.Error(t, repo.Upsert(context.Background(), &entity.UserProfile{}))
}

func TestUserProfileRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows(profileRowColumns()).
		AddRow(profileRow("a@example.com")...).
		AddRow(profileRow("b@example.com")...)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY email")).WillReturnRows(rows)

	repo := pg.NewUserProfileRepo(db)
	profiles, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "a@example.com", profiles[0].Email)
}

func TestUserProfileRepo_RecordNewsletterSent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	sentAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_profiles")).
		WithArgs("uid-1", sentAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := pg.NewUserProfileRepo(db)
	require.NoError(t, repo.RecordNewsletterSent(context.Background(), "uid-1", sentAt))
}

func TestUserProfileRepo_RecordNewsletterSentUnknownUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	sentAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_profiles")).
		WithArgs("ghost", sentAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := pg.NewUserProfileRepo(db)
	err = repo.RecordNewsletterSent(context.Background(), "ghost", sentAt)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestInteractionRepo_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ts := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_interactions")).
		WithArgs("uid-1", "hash1234", "click", 0.0, "Go 1.24", "https://go.dev", "rss_feed", ts).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := pg.NewInteractionRepo(db)
	err = repo.Record(context.Background(), &entity.UserInteraction{
		UserID:    "uid-1",
		ContentID: "hash1234",
		Type:      entity.InteractionClick,
		Title:     "Go 1.24",
		URL:       "https://go.dev",
		Source:    "rss_feed",
		Timestamp: ts,
	})
	require.NoError(t, err)
}

func TestInteractionRepo_ListByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	since := time.Now().Add(-30 * 24 * time.Hour)
	ts := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"user_id", "content_id", "type", "value", "title", "url", "source", "occurred_at"}).
		AddRow("uid-1", "h1", "read", 240.0, "t", "u", "rss_feed", ts)

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_interactions")).
		WithArgs("uid-1", since).
		WillReturnRows(rows)

	repo := pg.NewInteractionRepo(db)
	interactions, err := repo.ListByUser(context.Background(), "uid-1", since)
	require.NoError(t, err)
	require.Len(t, interactions, 1)
	assert.Equal(t, entity.InteractionRead, interactions[0].Type)
	assert.Equal(t, 240.0, interactions[0].Value)
	assert.Greater(t, interactions[0].EngagementScore(), 0.0)
}
