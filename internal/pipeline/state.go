// Package pipeline implements the newsletter generation workflow: a
// deterministic state machine driving validation, collection, curation,
// generation, delivery, and analytics, with severity-gated error recovery
// between stages.
package pipeline

import (
	"time"

	"github.com/google/uuid"

	"digestly/internal/domain/entity"
)

// Stage identifies a workflow stage.
type Stage string

const (
	StageValidation Stage = "validation"
	StageCollection Stage = "collection"
	StageCuration   Stage = "curation"
	StageGeneration Stage = "generation"
	StageDelivery   Stage = "delivery"
	StageAnalytics  Stage = "analytics"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// Severity classifies a processing error. Only critical errors terminate a
// run; high severity triggers the stage's remediation branch; low and medium
// are recorded without altering routing.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ProcessingError is one error recorded during a run. Immutable once
// appended.
type ProcessingError struct {
	Stage     Stage          `json:"stage"`
	Message   string         `json:"message"`
	Severity  Severity       `json:"severity"`
	Code      string         `json:"code,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Request carries the per-run flags.
type Request struct {
	// DryRun renders everything but skips the real send.
	DryRun bool

	// TestMode marks runs triggered from setup or diagnostics.
	TestMode bool

	// MaxArticles overrides the profile's article budget when positive.
	MaxArticles int
}

// Side-channel context keys. Keep this list short; anything used by more
// than one stage should become a named State field instead.
const (
	// ContextKeyActivity holds the personal activity summary fetched
	// during collection, consumed by curation metadata.
	ContextKeyActivity = "github_activity"

	// ContextKeySourceErrors holds the per-source fetch errors from
	// collection, consumed by analytics.
	ContextKeySourceErrors = "source_errors"
)

// State is the mutable aggregate threaded through one generation run.
// Exactly one State exists per run; errors and warnings are append-only.
type State struct {
	GenerationID string
	Profile      *entity.UserProfile
	Request      Request

	RawContent     []*entity.ContentItem
	Newsletter     *entity.CuratedNewsletter
	EmailContent   *entity.EmailContent
	DeliveryResult *entity.DeliveryResult

	Errors   []ProcessingError
	Warnings []string

	// Context carries cross-stage side-channel data under the documented
	// ContextKey constants.
	Context map[string]any

	CurrentStage Stage
	StageTimings map[Stage]time.Duration
	UsedFallback bool

	StartedAt   time.Time
	CompletedAt time.Time
}

// NewState creates the state for one generation run with a fresh
// generation ID.
func NewState(profile *entity.UserProfile, req Request) *State {
	return &State{
		GenerationID: uuid.New().String(),
		Profile:      profile,
		Request:      req,
		Context:      make(map[string]any),
		CurrentStage: StageValidation,
		StageTimings: make(map[Stage]time.Duration),
		StartedAt:    time.Now().UTC(),
	}
}

// AddError appends a processing error.
func (s *State) AddError(stage Stage, message string, severity Severity, code string) {
	s.Errors = append(s.Errors, ProcessingError{
		Stage:     stage,
		Message:   message,
		Severity:  severity,
		Code:      code,
		Timestamp: time.Now().UTC(),
	})
}

// AddWarning appends a warning.
func (s *State) AddWarning(message string) {
	s.Warnings = append(s.Warnings, message)
}

// HasCriticalErrors reports whether any recorded error is critical.
func (s *State) HasCriticalErrors() bool {
	for _, e := range s.Errors {
		if e.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// ErrorsForStage returns the errors recorded by one stage.
func (s *State) ErrorsForStage(stage Stage) []ProcessingError {
	var out []ProcessingError
	for _, e := range s.Errors {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

// FinalStatus summarizes a finished run: failed, success, or
// success-with-warnings.
func (s *State) FinalStatus() string {
	if s.CurrentStage == StageFailed || s.HasCriticalErrors() {
		return "failed"
	}
	if len(s.Warnings) > 0 || len(s.Errors) > 0 {
		return "success-with-warnings"
	}
	return "success"
}

// Duration returns the total run duration, or time elapsed so far when the
// run has not finished.
func (s *State) Duration() time.Duration {
	if s.CompletedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.CompletedAt.Sub(s.StartedAt)
}
