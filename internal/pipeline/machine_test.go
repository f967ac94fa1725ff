package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digestly/internal/domain/entity"
	"digestly/internal/usecase/collect"
)

type fakeCollector struct {
	result        *collect.Result
	err           error
	fallback      *collect.Result
	calls         int
	fallbackCalls int
}

func (f *fakeCollector) Collect(context.Context, *entity.UserProfile) (*collect.Result, error) {
	f.calls++
	return f.result, f.err
}

func (f *fakeCollector) CollectFallback(*entity.UserProfile) *collect.Result {
	f.fallbackCalls++
	return f.fallback
}

type fakeCurator struct {
	newsletter    *entity.CuratedNewsletter
	err           error
	fallback      *entity.CuratedNewsletter
	calls         int
	fallbackCalls int
}

func (f *fakeCurator) Curate(context.Context, *entity.UserProfile, []*entity.ContentItem) (*entity.CuratedNewsletter, error) {
	f.calls++
	return f.newsletter, f.err
}

func (f *fakeCurator) ComposeFallback(*entity.UserProfile, []*entity.ContentItem) *entity.CuratedNewsletter {
	f.fallbackCalls++
	return f.fallback
}

type fakeDeliverer struct {
	content      *entity.EmailContent
	genErr       error
	result       *entity.DeliveryResult
	delErr       error
	deliverCalls int
	lastDryRun   bool
}

func (f *fakeDeliverer) Generate(*entity.CuratedNewsletter, *entity.UserProfile, string) (*entity.EmailContent, error) {
	return f.content, f.genErr
}

func (f *fakeDeliverer) GenerateFallback(*entity.UserProfile, string) *entity.EmailContent {
	return &entity.EmailContent{Subject: "Your newsletter will be back soon"}
}

func (f *fakeDeliverer) Deliver(_ context.Context, _ *entity.UserProfile, _ *entity.EmailContent, generationID string, dryRun bool) (*entity.DeliveryResult, error) {
	f.deliverCalls++
	f.lastDryRun = dryRun
	if dryRun {
		return &entity.DeliveryResult{
			Success:    true,
			DeliveryID: "dry-run-" + generationID,
			Status:     entity.DeliverySent,
		}, nil
	}
	return f.result, f.delErr
}

type fakeRecorder struct {
	deliveries  int
	persists    int
	lastRecord  *State
	deliveryErr error
}

func (f *fakeRecorder) RecordDelivery(_ context.Context, st *State) error {
	f.deliveries++
	return f.deliveryErr
}

func (f *fakeRecorder) PersistRun(_ context.Context, st *State) error {
	f.persists++
	f.lastRecord = st
	return nil
}

func pipelineProfile() *entity.UserProfile {
	return entity.NewUserProfile("dev@example.com", "Dana", []string{"golang"})
}

func contentItems(n int) []*entity.ContentItem {
	items := make([]*entity.ContentItem, n)
	for i := range items {
		items[i] = entity.NewContentItem(
			"A reasonably long article title",
			"https://example.com/item",
			entity.SourceHackerNews,
			entity.ContentTypeArticle,
		)
	}
	return items
}

func curatedNewsletter(articles int) *entity.CuratedNewsletter {
	section := &entity.ContentSection{Title: "Golang"}
	for i := 0; i < articles; i++ {
		section.Articles = append(section.Articles, &entity.AnalyzedContent{
			Item: contentItems(1)[0],
		})
	}
	return &entity.CuratedNewsletter{
		SubjectLine: "Your Daily Digest",
		Sections:    []*entity.ContentSection{section},
	}
}

func happyMachine() (*Machine, *fakeCollector, *fakeCurator, *fakeDeliverer, *fakeRecorder) {
	collector := &fakeCollector{result: &collect.Result{Items: contentItems(5), RawCount: 5}}
	curator := &fakeCurator{newsletter: curatedNewsletter(5)}
	deliverer := &fakeDeliverer{
		content: &entity.EmailContent{Subject: "Your Daily Digest", HTMLBody: "<p>hi</p>"},
		result:  &entity.DeliveryResult{Success: true, DeliveryID: "re_1", Status: entity.DeliverySent},
	}
	recorder := &fakeRecorder{}
	return NewMachine(collector, curator, deliverer, recorder, nil), collector, curator, deliverer, recorder
}

func TestRunHappyPath(t *testing.T) {
	machine, collector, curator, deliverer, recorder := happyMachine()
	st := NewState(pipelineProfile(), Request{})

	final := machine.Run(context.Background(), st)

	assert.Equal(t, StageCompleted, final.CurrentStage)
	assert.Equal(t, "success", final.FinalStatus())
	assert.Equal(t, 1, collector.calls)
	assert.Equal(t, 1, curator.calls)
	assert.Equal(t, 1, deliverer.deliverCalls)
	assert.Equal(t, 1, recorder.deliveries)
	assert.Equal(t, 1, recorder.persists)
	assert.False(t, final.CompletedAt.IsZero())

	for _, stage := range []Stage{StageValidation, StageCollection, StageCuration, StageGeneration, StageDelivery, StageAnalytics} {
		_, ok := final.StageTimings[stage]
		assert.True(t, ok, "missing timing for %s", stage)
	}
}

func TestRunMissingEmailFailsBeforeCollection(t *testing.T) {
	machine, collector, _, _, recorder := happyMachine()

	profile := pipelineProfile()
	profile.Email = ""
	st := NewState(profile, Request{})

	final := machine.Run(context.Background(), st)

	assert.Equal(t, StageFailed, final.CurrentStage)
	assert.Equal(t, "failed", final.FinalStatus())
	assert.Zero(t, collector.calls)
	assert.Equal(t, 1, recorder.persists)

	errs := final.ErrorsForStage(StageValidation)
	require.NotEmpty(t, errs)
	assert.Equal(t, "MISSING_EMAIL", errs[0].Code)
	assert.Equal(t, SeverityCritical, errs[0].Severity)
}

func TestRunNoInterestsStillProceeds(t *testing.T) {
	machine, collector, _, _, _ := happyMachine()

	profile := pipelineProfile()
	profile.Interests = nil
	st := NewState(profile, Request{})

	final := machine.Run(context.Background(), st)

	assert.Equal(t, StageCompleted, final.CurrentStage)
	assert.Equal(t, 1, collector.calls)

	errs := final.ErrorsForStage(StageValidation)
	require.NotEmpty(t, errs)
	assert.Equal(t, "NO_INTERESTS", errs[0].Code)
	assert.Equal(t, SeverityHigh, errs[0].Severity)
	assert.False(t, final.HasCriticalErrors())
}

func TestRunAllSourcesFailedFallbackCompletes(t *testing.T) {
	machine, collector, _, _, _ := happyMachine()
	collector.result = &collect.Result{
		Items:        contentItems(4),
		RawCount:     4,
		UsedFallback: true,
		SourceErrors: map[string]error{"github/golang": errors.New("down")},
	}

	st := NewState(pipelineProfile(), Request{})
	final := machine.Run(context.Background(), st)

	assert.Equal(t, StageCompleted, final.CurrentStage)
	assert.Equal(t, "success-with-warnings", final.FinalStatus())
	assert.True(t, final.UsedFallback)
	assert.False(t, final.HasCriticalErrors())
	assert.NotEmpty(t, final.Warnings)
	assert.Contains(t, final.Context, ContextKeySourceErrors)
}

func TestRunEmptyCollectionRemediationSucceeds(t *testing.T) {
	machine, collector, _, _, _ := happyMachine()
	collector.result = &collect.Result{}
	collector.fallback = &collect.Result{Items: contentItems(3), UsedFallback: true}

	st := NewState(pipelineProfile(), Request{})
	final := machine.Run(context.Background(), st)

	assert.Equal(t, StageCompleted, final.CurrentStage)
	assert.Equal(t, 1, collector.fallbackCalls)
	assert.True(t, final.UsedFallback)
}

func TestRunEmptyCollectionRemediationFails(t *testing.T) {
	machine, collector, curator, _, _ := happyMachine()
	collector.result = &collect.Result{}
	collector.fallback = &collect.Result{}

	st := NewState(pipelineProfile(), Request{})
	final := machine.Run(context.Background(), st)

	assert.Equal(t, StageFailed, final.CurrentStage)
	assert.Equal(t, 1, collector.fallbackCalls)
	assert.Zero(t, curator.calls)
	assert.True(t, final.HasCriticalErrors())

	var critical *ProcessingError
	for i := range final.Errors {
		if final.Errors[i].Severity == SeverityCritical {
			critical = &final.Errors[i]
			break
		}
	}
	require.NotNil(t, critical)
	assert.Equal(t, "NO_CONTENT_COLLECTED", critical.Code)
}

func TestRunCurationFailureUsesFallbackComposer(t *testing.T) {
	machine, _, curator, _, _ := happyMachine()
	curator.newsletter = nil
	curator.err = errors.New("scorer exploded")
	curator.fallback = curatedNewsletter(2)

	st := NewState(pipelineProfile(), Request{})
	final := machine.Run(context.Background(), st)

	assert.Equal(t, StageCompleted, final.CurrentStage)
	assert.Equal(t, 1, curator.fallbackCalls)
	assert.Contains(t, final.Warnings, "Used fallback curation")
	assert.Equal(t, 2, final.Newsletter.TotalArticles())
}

func TestRunCurationFallbackEmptyFails(t *testing.T) {
	machine, _, curator, deliverer, _ := happyMachine()
	curator.newsletter = nil
	curator.err = errors.New("scorer exploded")
	curator.fallback = &entity.CuratedNewsletter{}

	st := NewState(pipelineProfile(), Request{})
	final := machine.Run(context.Background(), st)

	assert.Equal(t, StageFailed, final.CurrentStage)
	assert.Zero(t, deliverer.deliverCalls)
	assert.True(t, final.HasCriticalErrors())
}

func TestRunGenerationFailureSendsFallbackNotice(t *testing.T) {
	machine, _, _, deliverer, _ := happyMachine()
	deliverer.content = nil
	deliverer.genErr = errors.New("template broken")

	st := NewState(pipelineProfile(), Request{})
	final := machine.Run(context.Background(), st)

	assert.Equal(t, StageCompleted, final.CurrentStage)
	assert.Equal(t, 1, deliverer.deliverCalls)
	require.NotNil(t, final.EmailContent)
	assert.Equal(t, "Your newsletter will be back soon", final.EmailContent.Subject)
}

func TestRunDryRunSkipsRealDelivery(t *testing.T) {
	machine, _, _, deliverer, recorder := happyMachine()

	st := NewState(pipelineProfile(), Request{DryRun: true})
	final := machine.Run(context.Background(), st)

	assert.Equal(t, StageCompleted, final.CurrentStage)
	assert.True(t, deliverer.lastDryRun)
	require.NotNil(t, final.DeliveryResult)
	assert.Equal(t, "dry-run-"+final.GenerationID, final.DeliveryResult.DeliveryID)

	// Analytics is skipped on dry runs; the run record is still written.
	assert.Zero(t, recorder.deliveries)
	assert.Equal(t, 1, recorder.persists)
}

func TestRunDeliveryFailureCompletesWithWarning(t *testing.T) {
	machine, _, _, deliverer, recorder := happyMachine()
	deliverer.result = &entity.DeliveryResult{Success: false, Status: entity.DeliveryFailed, ErrorMessage: "rate limited"}
	deliverer.delErr = errors.New("rate limited")

	st := NewState(pipelineProfile(), Request{})
	final := machine.Run(context.Background(), st)

	assert.Equal(t, StageCompleted, final.CurrentStage)
	assert.Equal(t, 1, deliverer.deliverCalls)
	assert.Zero(t, recorder.deliveries)
	assert.Equal(t, "success-with-warnings", final.FinalStatus())
	assert.Contains(t, final.Warnings, "Newsletter could not be delivered: rate limited")
}

func TestRunAnalyticsFailureNeverEscalates(t *testing.T) {
	machine, _, _, _, recorder := happyMachine()
	recorder.deliveryErr = errors.New("db down")

	st := NewState(pipelineProfile(), Request{})
	final := machine.Run(context.Background(), st)

	assert.Equal(t, StageCompleted, final.CurrentStage)
	assert.Equal(t, "success-with-warnings", final.FinalStatus())
	assert.NotEmpty(t, final.Warnings)
}

func TestRunCancelledContext(t *testing.T) {
	machine, collector, _, _, _ := happyMachine()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := NewState(pipelineProfile(), Request{})
	final := machine.Run(ctx, st)

	assert.Equal(t, StageFailed, final.CurrentStage)
	assert.Zero(t, collector.calls)
}

func TestRunBoundedTransitions(t *testing.T) {
	// A curator that keeps failing must not loop: one remediation pass,
	// then terminate.
	machine, _, curator, _, _ := happyMachine()
	curator.newsletter = nil
	curator.err = errors.New("always fails")
	curator.fallback = nil

	st := NewState(pipelineProfile(), Request{})
	final := machine.Run(context.Background(), st)

	assert.Equal(t, StageFailed, final.CurrentStage)
	assert.Equal(t, 1, curator.calls)
	assert.Equal(t, 1, curator.fallbackCalls)
}
