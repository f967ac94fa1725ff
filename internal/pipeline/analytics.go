package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"digestly/internal/domain/entity"
	"digestly/internal/repository"
)

// AnalyticsService persists run outcomes and recipient statistics. It
// implements Recorder over the run and profile repositories.
type AnalyticsService struct {
	Runs  repository.RunRepository
	Users repository.UserProfileRepository

	// Interactions is optional; when set, recorded engagement feeds back
	// into interest weights via ApplyEngagement.
	Interactions repository.InteractionRepository

	Logger *slog.Logger
}

// NewAnalyticsService creates an analytics recorder.
func NewAnalyticsService(runs repository.RunRepository, users repository.UserProfileRepository, logger *slog.Logger) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsService{Runs: runs, Users: users, Logger: logger}
}

// RecordDelivery updates the recipient's delivery bookkeeping after a
// successful send. Dry runs leave recipient statistics untouched.
func (a *AnalyticsService) RecordDelivery(ctx context.Context, st *State) error {
	if st.Request.DryRun || st.DeliveryResult == nil || !st.DeliveryResult.Success {
		return nil
	}
	if a.Users == nil {
		return nil
	}
	sentAt := st.DeliveryResult.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	if err := a.Users.RecordNewsletterSent(ctx, st.Profile.UserID, sentAt); err != nil {
		return fmt.Errorf("RecordDelivery: %w", err)
	}
	return nil
}

const (
	engagementLookback = 30 * 24 * time.Hour

	// weightStep scales one engagement signal's effect on a weight.
	weightStep = 0.05

	minInterestWeight = 0.1
	maxInterestWeight = 3.0
)

// ApplyEngagement folds the recipient's recent interactions into their
// interest weights so heuristic ranking tracks what they actually engage
// with. An interaction counts toward every interest whose keyword appears in
// the item's title or URL. Weights stay within [0.1, 3.0]. Without an
// interaction repository this is a no-op.
func (a *AnalyticsService) ApplyEngagement(ctx context.Context, profile *entity.UserProfile) error {
	if a.Interactions == nil || profile == nil || profile.UserID == "" {
		return nil
	}

	since := time.Now().UTC().Add(-engagementLookback)
	interactions, err := a.Interactions.ListByUser(ctx, profile.UserID, since)
	if err != nil {
		return fmt.Errorf("ApplyEngagement: %w", err)
	}
	if len(interactions) == 0 {
		return nil
	}

	if profile.InterestWeights == nil {
		profile.InterestWeights = make(map[string]float64, len(profile.Interests))
	}
	adjusted := 0
	for _, interaction := range interactions {
		text := strings.ToLower(interaction.Title + " " + interaction.URL)
		for _, interest := range profile.Interests {
			if !strings.Contains(text, strings.ToLower(interest)) {
				continue
			}
			weight, ok := profile.InterestWeights[interest]
			if !ok {
				weight = 1.0
			}
			weight += interaction.EngagementScore() * weightStep
			if weight < minInterestWeight {
				weight = minInterestWeight
			}
			if weight > maxInterestWeight {
				weight = maxInterestWeight
			}
			profile.InterestWeights[interest] = weight
			adjusted++
		}
	}

	if adjusted > 0 {
		a.Logger.Debug("Interest weights adjusted from engagement",
			slog.String("user_id", profile.UserID),
			slog.Int("interactions", len(interactions)),
			slog.Int("adjustments", adjusted))
	}
	return nil
}

// PersistRun archives the run record. It is called exactly once per run, at
// the terminal state.
func (a *AnalyticsService) PersistRun(ctx context.Context, st *State) error {
	if a.Runs == nil {
		return nil
	}
	record := buildRunRecord(st)
	if err := a.Runs.Insert(ctx, record); err != nil {
		return fmt.Errorf("PersistRun: %w", err)
	}
	a.Logger.Debug("Run record persisted",
		slog.String("generation_id", st.GenerationID),
		slog.Int64("run_id", record.ID))
	return nil
}

// buildRunRecord flattens the pipeline state into the append-only run row.
func buildRunRecord(st *State) *entity.RunRecord {
	status := entity.RunCompleted
	if st.FinalStatus() == "failed" {
		status = entity.RunFailed
	}

	record := &entity.RunRecord{
		GenerationID:      st.GenerationID,
		UserEmail:         recipientEmail(st),
		Status:            status,
		FinalStage:        string(st.CurrentStage),
		ArticlesCollected: len(st.RawContent),
		ArticlesIncluded:  totalArticles(st),
		DryRun:            st.Request.DryRun,
		StartedAt:         st.StartedAt,
		CompletedAt:       st.CompletedAt,
	}
	if st.DeliveryResult != nil {
		record.DeliveryID = st.DeliveryResult.DeliveryID
	}

	if len(st.Errors) > 0 {
		if raw, err := json.Marshal(st.Errors); err == nil {
			record.Errors = raw
		}
	}
	if len(st.StageTimings) > 0 {
		timings := make(map[string]float64, len(st.StageTimings))
		for stage, d := range st.StageTimings {
			timings[string(stage)] = d.Seconds()
		}
		if raw, err := json.Marshal(timings); err == nil {
			record.StageTimings = raw
		}
	}
	return record
}
