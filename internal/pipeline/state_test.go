package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState(t *testing.T) {
	st := NewState(pipelineProfile(), Request{DryRun: true})

	assert.NotEmpty(t, st.GenerationID)
	assert.Equal(t, StageValidation, st.CurrentStage)
	assert.True(t, st.Request.DryRun)
	assert.NotNil(t, st.Context)
	assert.NotNil(t, st.StageTimings)
	assert.False(t, st.StartedAt.IsZero())
	assert.True(t, st.CompletedAt.IsZero())
}

func TestStateErrorBookkeeping(t *testing.T) {
	st := NewState(pipelineProfile(), Request{})

	st.AddError(StageCollection, "source down", SeverityHigh, "SOURCE_DOWN")
	assert.False(t, st.HasCriticalErrors())

	st.AddError(StageCuration, "nothing survived", SeverityCritical, "CURATION_EMPTY")
	assert.True(t, st.HasCriticalErrors())

	collection := st.ErrorsForStage(StageCollection)
	require.Len(t, collection, 1)
	assert.Equal(t, "SOURCE_DOWN", collection[0].Code)
	assert.False(t, collection[0].Timestamp.IsZero())

	assert.Empty(t, st.ErrorsForStage(StageDelivery))
}

func TestStateFinalStatus(t *testing.T) {
	st := NewState(pipelineProfile(), Request{})
	assert.Equal(t, "success", st.FinalStatus())

	st.AddWarning("minor hiccup")
	assert.Equal(t, "success-with-warnings", st.FinalStatus())

	st.AddError(StageDelivery, "bounced", SeverityHigh, "DELIVERY_FAILED")
	assert.Equal(t, "success-with-warnings", st.FinalStatus())

	st.AddError(StageDelivery, "no recipient", SeverityCritical, "MISSING_EMAIL")
	assert.Equal(t, "failed", st.FinalStatus())
}

func TestStateFailedStageMeansFailed(t *testing.T) {
	st := NewState(pipelineProfile(), Request{})
	st.CurrentStage = StageFailed
	assert.Equal(t, "failed", st.FinalStatus())
}

func TestStateDuration(t *testing.T) {
	st := NewState(pipelineProfile(), Request{})
	st.StartedAt = time.Now().Add(-2 * time.Second)

	assert.GreaterOrEqual(t, st.Duration(), 2*time.Second)

	st.CompletedAt = st.StartedAt.Add(5 * time.Second)
	assert.Equal(t, 5*time.Second, st.Duration())
}
