package entity

import (
	"encoding/json"
	"time"
)

// RunStatus is the terminal status of a newsletter generation run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunRecord is an append-only audit record of one generation run. Errors and
// StageTimings carry the pipeline's serialized diagnostics; the record is
// never updated after insertion.
type RunRecord struct {
	ID                int64
	GenerationID      string
	UserEmail         string
	Status            RunStatus
	FinalStage        string
	ArticlesCollected int
	ArticlesIncluded  int
	DeliveryID        string
	DryRun            bool
	Errors            json.RawMessage
	StageTimings      json.RawMessage
	StartedAt         time.Time
	CompletedAt       time.Time
}

// Duration returns the total run duration.
func (r *RunRecord) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}
