package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digestly/internal/domain/entity"
)

type fakeRunRepo struct {
	inserted []*entity.RunRecord
	err      error
}

func (f *fakeRunRepo) Insert(_ context.Context, record *entity.RunRecord) error {
	if f.err != nil {
		return f.err
	}
	record.ID = int64(len(f.inserted) + 1)
	f.inserted = append(f.inserted, record)
	return nil
}

func (f *fakeRunRepo) GetByGenerationID(context.Context, string) (*entity.RunRecord, error) {
	return nil, entity.ErrNotFound
}

func (f *fakeRunRepo) ListRecent(context.Context, int) ([]*entity.RunRecord, error) {
	return f.inserted, nil
}

func (f *fakeRunRepo) CountByStatus(context.Context) (map[entity.RunStatus]int64, error) {
	return nil, nil
}

type fakeUserRepo struct {
	sentUserID string
	sentAt     time.Time
	calls      int
	err        error
}

func (f *fakeUserRepo) Upsert(context.Context, *entity.UserProfile) error { return nil }

func (f *fakeUserRepo) FindByEmail(context.Context, string) (*entity.UserProfile, error) {
	return nil, entity.ErrNotFound
}

func (f *fakeUserRepo) List(context.Context) ([]*entity.UserProfile, error) { return nil, nil }

func (f *fakeUserRepo) RecordNewsletterSent(_ context.Context, userID string, sentAt time.Time) error {
	f.calls++
	f.sentUserID = userID
	f.sentAt = sentAt
	return f.err
}

func TestRecordDeliveryUpdatesRecipient(t *testing.T) {
	users := &fakeUserRepo{}
	svc := NewAnalyticsService(&fakeRunRepo{}, users, nil)

	st := NewState(pipelineProfile(), Request{})
	sentAt := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	st.DeliveryResult = &entity.DeliveryResult{Success: true, DeliveryID: "re_1", SentAt: sentAt}

	require.NoError(t, svc.RecordDelivery(context.Background(), st))
	assert.Equal(t, 1, users.calls)
	assert.Equal(t, st.Profile.UserID, users.sentUserID)
	assert.Equal(t, sentAt, users.sentAt)
}

func TestRecordDeliverySkipsDryRun(t *testing.T) {
	users := &fakeUserRepo{}
	svc := NewAnalyticsService(&fakeRunRepo{}, users, nil)

	st := NewState(pipelineProfile(), Request{DryRun: true})
	st.DeliveryResult = &entity.DeliveryResult{Success: true, DeliveryID: "dry-run-x"}

	require.NoError(t, svc.RecordDelivery(context.Background(), st))
	assert.Zero(t, users.calls)
}

func TestRecordDeliverySkipsFailedSend(t *testing.T) {
	users := &fakeUserRepo{}
	svc := NewAnalyticsService(&fakeRunRepo{}, users, nil)

	st := NewState(pipelineProfile(), Request{})
	st.DeliveryResult = &entity.DeliveryResult{Success: false}

	require.NoError(t, svc.RecordDelivery(context.Background(), st))
	assert.Zero(t, users.calls)

	st.DeliveryResult = nil
	require.NoError(t, svc.RecordDelivery(context.Background(), st))
	assert.Zero(t, users.calls)
}

func TestRecordDeliveryWrapsRepositoryError(t *testing.T) {
	users := &fakeUserRepo{err: errors.New("db down")}
	svc := NewAnalyticsService(&fakeRunRepo{}, users, nil)

	st := NewState(pipelineProfile(), Request{})
	st.DeliveryResult = &entity.DeliveryResult{Success: true}

	err := svc.RecordDelivery(context.Background(), st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RecordDelivery:")
}

func TestPersistRun(t *testing.T) {
	runs := &fakeRunRepo{}
	svc := NewAnalyticsService(runs, &fakeUserRepo{}, nil)

	st := NewState(pipelineProfile(), Request{})
	st.CurrentStage = StageCompleted
	st.CompletedAt = st.StartedAt.Add(3 * time.Second)

	require.NoError(t, svc.PersistRun(context.Background(), st))
	require.Len(t, runs.inserted, 1)
	assert.Equal(t, st.GenerationID, runs.inserted[0].GenerationID)
	assert.EqualValues(t, 1, runs.inserted[0].ID)
}

func TestPersistRunWrapsRepositoryError(t *testing.T) {
	runs := &fakeRunRepo{err: errors.New("insert failed")}
	svc := NewAnalyticsService(runs, nil, nil)

	err := svc.PersistRun(context.Background(), NewState(pipelineProfile(), Request{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PersistRun:")
}

func TestBuildRunRecord(t *testing.T) {
	st := NewState(pipelineProfile(), Request{DryRun: true})
	st.CurrentStage = StageCompleted
	st.CompletedAt = st.StartedAt.Add(4 * time.Second)
	st.RawContent = contentItems(12)
	st.Newsletter = curatedNewsletter(6)
	st.DeliveryResult = &entity.DeliveryResult{Success: true, DeliveryID: "re_9"}
	st.AddError(StageCollection, "one source down", SeverityHigh, "SOURCE_DOWN")
	st.StageTimings[StageCollection] = 1500 * time.Millisecond

	record := buildRunRecord(st)

	assert.Equal(t, st.GenerationID, record.GenerationID)
	assert.Equal(t, "dev@example.com", record.UserEmail)
	assert.Equal(t, entity.RunCompleted, record.Status)
	assert.Equal(t, string(StageCompleted), record.FinalStage)
	assert.Equal(t, 12, record.ArticlesCollected)
	assert.Equal(t, 6, record.ArticlesIncluded)
	assert.Equal(t, "re_9", record.DeliveryID)
	assert.True(t, record.DryRun)

	var storedErrors []ProcessingError
	require.NoError(t, json.Unmarshal(record.Errors, &storedErrors))
	require.Len(t, storedErrors, 1)
	assert.Equal(t, "SOURCE_DOWN", storedErrors[0].Code)

	var timings map[string]float64
	require.NoError(t, json.Unmarshal(record.StageTimings, &timings))
	assert.InDelta(t, 1.5, timings[string(StageCollection)], 0.001)
}

func TestBuildRunRecordFailedStatus(t *testing.T) {
	st := NewState(pipelineProfile(), Request{})
	st.CurrentStage = StageFailed
	st.CompletedAt = st.StartedAt.Add(time.Second)
	st.AddError(StageValidation, "no email", SeverityCritical, "MISSING_EMAIL")

	record := buildRunRecord(st)
	assert.Equal(t, entity.RunFailed, record.Status)
	assert.Equal(t, string(StageFailed), record.FinalStage)
	assert.Empty(t, record.StageTimings)
}

type fakeInteractionRepo struct {
	interactions []*entity.UserInteraction
	err          error
}

func (f *fakeInteractionRepo) Record(_ context.Context, in *entity.UserInteraction) error {
	if f.err != nil {
		return f.err
	}
	f.interactions = append(f.interactions, in)
	return nil
}

func (f *fakeInteractionRepo) ListByUser(context.Context, string, time.Time) ([]*entity.UserInteraction, error) {
	return f.interactions, f.err
}

func TestApplyEngagementBoostsMatchingInterests(t *testing.T) {
	svc := NewAnalyticsService(&fakeRunRepo{}, &fakeUserRepo{}, nil)
	svc.Interactions = &fakeInteractionRepo{interactions: []*entity.UserInteraction{
		{Type: entity.InteractionLike, Title: "Profiling Golang services", Timestamp: time.Now()},
		{Type: entity.InteractionSkip, Title: "Golang release notes", Timestamp: time.Now()},
	}}

	profile := pipelineProfile()
	require.NoError(t, svc.ApplyEngagement(context.Background(), profile))

	// like (+1.5) and skip (-0.2) both match "golang": 1 + (1.5-0.2)*0.05.
	assert.InDelta(t, 1.065, profile.InterestWeights["golang"], 1e-9)
}

func TestApplyEngagementClampsWeights(t *testing.T) {
	many := make([]*entity.UserInteraction, 60)
	for i := range many {
		many[i] = &entity.UserInteraction{Type: entity.InteractionShare, URL: "https://example.com/golang-tips"}
	}
	svc := NewAnalyticsService(&fakeRunRepo{}, &fakeUserRepo{}, nil)
	svc.Interactions = &fakeInteractionRepo{interactions: many}

	profile := pipelineProfile()
	require.NoError(t, svc.ApplyEngagement(context.Background(), profile))

	assert.LessOrEqual(t, profile.InterestWeights["golang"], 3.0)
}

func TestApplyEngagementIgnoresUnmatchedAndErrors(t *testing.T) {
	svc := NewAnalyticsService(&fakeRunRepo{}, &fakeUserRepo{}, nil)
	svc.Interactions = &fakeInteractionRepo{interactions: []*entity.UserInteraction{
		{Type: entity.InteractionLike, Title: "Gardening weekly"},
	}}

	profile := pipelineProfile()
	require.NoError(t, svc.ApplyEngagement(context.Background(), profile))
	assert.NotContains(t, profile.InterestWeights, "gardening")

	svc.Interactions = &fakeInteractionRepo{err: errors.New("db down")}
	assert.Error(t, svc.ApplyEngagement(context.Background(), profile))

	svc.Interactions = nil
	assert.NoError(t, svc.ApplyEngagement(context.Background(), profile))
}
