package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"digestly/internal/domain/entity"
	"digestly/internal/observability/logging"
	"digestly/internal/observability/metrics"
	"digestly/internal/observability/tracing"
	"digestly/internal/usecase/collect"
)

// Collector runs the collection stage.
type Collector interface {
	Collect(ctx context.Context, profile *entity.UserProfile) (*collect.Result, error)
	CollectFallback(profile *entity.UserProfile) *collect.Result
}

// Curator runs the curation stage.
type Curator interface {
	Curate(ctx context.Context, profile *entity.UserProfile, items []*entity.ContentItem) (*entity.CuratedNewsletter, error)
	ComposeFallback(profile *entity.UserProfile, items []*entity.ContentItem) *entity.CuratedNewsletter
}

// Deliverer runs the generation and delivery stages.
type Deliverer interface {
	Generate(newsletter *entity.CuratedNewsletter, profile *entity.UserProfile, generationID string) (*entity.EmailContent, error)
	GenerateFallback(profile *entity.UserProfile, generationID string) *entity.EmailContent
	Deliver(ctx context.Context, profile *entity.UserProfile, content *entity.EmailContent, generationID string, dryRun bool) (*entity.DeliveryResult, error)
}

// Recorder persists run outcomes. Both methods are best-effort from the
// pipeline's point of view; their failures never fail a run.
type Recorder interface {
	// RecordDelivery updates recipient statistics after a successful send.
	RecordDelivery(ctx context.Context, st *State) error

	// PersistRun archives the run record at terminal states.
	PersistRun(ctx context.Context, st *State) error
}

// Machine is the workflow state machine. Stages execute strictly
// sequentially for one run; each remediation branch runs at most once per
// stage per run.
type Machine struct {
	Collector Collector
	Curator   Curator
	Deliverer Deliverer
	Recorder  Recorder
	Logger    *slog.Logger
}

// NewMachine creates a workflow state machine. Recorder may be nil to skip
// run persistence.
func NewMachine(collector Collector, curator Curator, deliverer Deliverer, recorder Recorder, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		Collector: collector,
		Curator:   curator,
		Deliverer: deliverer,
		Recorder:  recorder,
		Logger:    logger,
	}
}

// Run drives the state machine from validation to a terminal state. It
// always returns the final state; pipeline-level problems are recorded on
// the state rather than returned, so callers inspect FinalStatus.
func (m *Machine) Run(ctx context.Context, st *State) *State {
	ctx = logging.WithGenerationContext(ctx, st.GenerationID)
	ctx, runSpan := tracing.StartRun(ctx, st.GenerationID)
	defer runSpan.End()

	logger := m.Logger.With(slog.String("generation_id", st.GenerationID))
	logger.Info("Starting newsletter generation",
		slog.String("email", recipientEmail(st)),
		slog.Bool("dry_run", st.Request.DryRun))

	// Remediation branches are bounded to one pass per stage per run.
	handled := make(map[Stage]bool)

	stage := StageValidation
	for stage != StageCompleted && stage != StageFailed {
		if err := ctx.Err(); err != nil {
			st.AddError(stage, "Run cancelled: "+err.Error(), SeverityCritical, "CANCELLED")
			stage = StageFailed
			break
		}

		switch stage {
		case StageValidation:
			m.runStage(ctx, st, StageValidation, func(context.Context) {
				validate(st)
			})
			stage = m.routeAfterValidation(st)

		case StageCollection:
			m.runStage(ctx, st, StageCollection, func(sctx context.Context) {
				m.collect(sctx, st)
			})
			stage = m.routeAfterCollection(ctx, st, handled)

		case StageCuration:
			m.runStage(ctx, st, StageCuration, func(sctx context.Context) {
				m.curate(sctx, st)
			})
			stage = m.routeAfterCuration(st, handled)

		case StageGeneration:
			m.runStage(ctx, st, StageGeneration, func(context.Context) {
				m.generate(st)
			})
			stage = m.routeAfterGeneration(st)

		case StageDelivery:
			m.runStage(ctx, st, StageDelivery, func(sctx context.Context) {
				m.deliver(sctx, st)
			})
			stage = m.routeAfterDelivery(st, handled)

		case StageAnalytics:
			m.runStage(ctx, st, StageAnalytics, func(sctx context.Context) {
				m.analytics(sctx, st)
			})
			stage = StageCompleted

		default:
			st.AddError(stage, "Unknown stage", SeverityCritical, "UNKNOWN_STAGE")
			stage = StageFailed
		}
	}

	m.finish(ctx, st, stage, logger)
	return st
}

func (m *Machine) runStage(ctx context.Context, st *State, stage Stage, fn func(context.Context)) {
	st.CurrentStage = stage
	sctx, span := tracing.StartStage(ctx, st.GenerationID, string(stage))
	start := time.Now()

	fn(sctx)

	elapsed := time.Since(start)
	st.StageTimings[stage] = elapsed
	metrics.RecordStageDuration(string(stage), elapsed)
	tracing.EndStage(span, nil)
}

// collect runs the collection engine and stores results on the state.
func (m *Machine) collect(ctx context.Context, st *State) {
	result, err := m.Collector.Collect(ctx, st.Profile)
	if err != nil {
		st.AddError(StageCollection, "Content collection failed: "+err.Error(), SeverityCritical, "COLLECTION_FAILED")
		return
	}
	st.RawContent = result.Items
	if result.UsedFallback {
		st.UsedFallback = true
		st.AddWarning("Some sources were unavailable, fallback content was used")
	}
	if len(result.SourceErrors) > 0 {
		errs := make(map[string]string, len(result.SourceErrors))
		for key, serr := range result.SourceErrors {
			errs[key] = serr.Error()
		}
		st.Context[ContextKeySourceErrors] = errs
	}
}

func (m *Machine) curate(ctx context.Context, st *State) {
	newsletter, err := m.Curator.Curate(ctx, st.Profile, st.RawContent)
	if err != nil {
		st.AddError(StageCuration, "Curation failed: "+err.Error(), SeverityHigh, "CURATION_FAILED")
		return
	}
	st.Newsletter = newsletter
}

func (m *Machine) generate(st *State) {
	content, err := m.Deliverer.Generate(st.Newsletter, st.Profile, st.GenerationID)
	if err != nil {
		st.AddError(StageGeneration, "Email generation failed: "+err.Error(), SeverityHigh, "GENERATION_FAILED")
		st.AddWarning("Newsletter rendering failed, sending a service notice instead")
		content = m.Deliverer.GenerateFallback(st.Profile, st.GenerationID)
	}
	st.EmailContent = content
}

func (m *Machine) deliver(ctx context.Context, st *State) {
	result, err := m.Deliverer.Deliver(ctx, st.Profile, st.EmailContent, st.GenerationID, st.Request.DryRun)
	if err != nil {
		st.AddError(StageDelivery, "Email delivery failed: "+err.Error(), SeverityHigh, "DELIVERY_FAILED")
	}
	st.DeliveryResult = result
}

// analytics updates recipient statistics. Failures never escalate.
func (m *Machine) analytics(ctx context.Context, st *State) {
	if m.Recorder == nil {
		return
	}
	if err := m.Recorder.RecordDelivery(ctx, st); err != nil {
		st.AddWarning("Analytics update failed: " + err.Error())
	}
}

func (m *Machine) routeAfterValidation(st *State) Stage {
	if st.HasCriticalErrors() {
		return StageFailed
	}
	return StageCollection
}

func (m *Machine) routeAfterCollection(ctx context.Context, st *State, handled map[Stage]bool) Stage {
	if st.HasCriticalErrors() {
		return StageFailed
	}

	if len(st.RawContent) == 0 {
		if handled[StageCollection] {
			st.AddError(StageCollection, "No content collected even after remediation", SeverityCritical, "NO_CONTENT_COLLECTED")
			return StageFailed
		}
		handled[StageCollection] = true
		st.AddError(StageCollection, "No content was collected from any source", SeverityHigh, "NO_CONTENT_COLLECTED")

		// Remediation: one synthetic fallback pass.
		result := m.Collector.CollectFallback(st.Profile)
		if result == nil || len(result.Items) == 0 {
			st.AddError(StageCollection, "Fallback collection yielded no content", SeverityCritical, "NO_CONTENT_COLLECTED")
			return StageFailed
		}
		st.RawContent = result.Items
		st.UsedFallback = true
		st.AddWarning("Collection remediation used synthetic fallback content")
		return StageCuration
	}

	if len(st.RawContent) < 3 {
		st.AddWarning("Only collected a small amount of content")
	}
	return StageCuration
}

func (m *Machine) routeAfterCuration(st *State, handled map[Stage]bool) Stage {
	if st.HasCriticalErrors() {
		return StageFailed
	}

	if st.Newsletter == nil || st.Newsletter.TotalArticles() == 0 {
		if handled[StageCuration] {
			st.AddError(StageCuration, "No curated content even after remediation", SeverityCritical, "CURATION_EMPTY")
			return StageFailed
		}
		handled[StageCuration] = true
		if st.Newsletter == nil {
			st.AddError(StageCuration, "Curation produced no newsletter", SeverityHigh, "CURATION_EMPTY")
		}

		// Remediation: the never-failing fallback composer over raw items.
		newsletter := m.Curator.ComposeFallback(st.Profile, st.RawContent)
		if newsletter == nil || newsletter.TotalArticles() == 0 {
			st.AddError(StageCuration, "Fallback curation yielded no articles", SeverityCritical, "CURATION_EMPTY")
			return StageFailed
		}
		st.Newsletter = newsletter
		st.AddWarning("Used fallback curation")
	}
	return StageGeneration
}

func (m *Machine) routeAfterGeneration(st *State) Stage {
	if st.HasCriticalErrors() || st.EmailContent == nil {
		if st.EmailContent == nil {
			st.AddError(StageGeneration, "No email content produced", SeverityCritical, "GENERATION_EMPTY")
		}
		return StageFailed
	}
	return StageDelivery
}

func (m *Machine) routeAfterDelivery(st *State, handled map[Stage]bool) Stage {
	// Dry runs complete immediately regardless of the synthetic result.
	if st.Request.DryRun {
		return StageCompleted
	}

	if st.DeliveryResult != nil && st.DeliveryResult.Success {
		return StageAnalytics
	}

	// One pass through the handler, then terminate with the failure
	// recorded; delivery is not retried beyond the sender's own budget.
	if !handled[StageDelivery] {
		handled[StageDelivery] = true
		message := "Newsletter could not be delivered"
		if st.DeliveryResult != nil && st.DeliveryResult.ErrorMessage != "" {
			message = fmt.Sprintf("Newsletter could not be delivered: %s", st.DeliveryResult.ErrorMessage)
		}
		st.AddWarning(message)
	}
	return StageCompleted
}

func (m *Machine) finish(ctx context.Context, st *State, terminal Stage, logger *slog.Logger) {
	st.CurrentStage = terminal
	st.CompletedAt = time.Now().UTC()

	for _, e := range st.Errors {
		metrics.RecordPipelineError(string(e.Stage), string(e.Severity))
	}
	metrics.RecordPipelineRun(st.FinalStatus(), st.Duration())

	if m.Recorder != nil {
		if err := m.Recorder.PersistRun(ctx, st); err != nil {
			logger.Warn("Failed to persist run record", slog.String("error", err.Error()))
		}
	}

	attrs := []any{
		slog.String("status", st.FinalStatus()),
		slog.Duration("duration", st.Duration()),
		slog.Int("errors", len(st.Errors)),
		slog.Int("warnings", len(st.Warnings)),
		slog.Int("articles", totalArticles(st)),
	}
	if terminal == StageFailed {
		logger.Error("Newsletter generation failed", attrs...)
	} else {
		logger.Info("Newsletter generation completed", attrs...)
	}
}

func totalArticles(st *State) int {
	if st.Newsletter == nil {
		return 0
	}
	return st.Newsletter.TotalArticles()
}

func recipientEmail(st *State) string {
	if st.Profile == nil {
		return ""
	}
	return st.Profile.Email
}
