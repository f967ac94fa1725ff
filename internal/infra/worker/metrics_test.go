package worker

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Metrics register against the default registry via promauto, so tests share
// one instance.
var (
	metricsOnce sync.Once
	testMetrics *WorkerMetrics
)

func sharedMetrics() *WorkerMetrics {
	metricsOnce.Do(func() {
		testMetrics = NewWorkerMetrics()
		testMetrics.MustRegister()
	})
	return testMetrics
}

func TestRecordTick(t *testing.T) {
	m := sharedMetrics()

	before := testutil.ToFloat64(m.SchedulerTicksTotal.WithLabelValues("success"))
	m.RecordTick("success")
	after := testutil.ToFloat64(m.SchedulerTicksTotal.WithLabelValues("success"))

	if after != before+1 {
		t.Errorf("expected tick counter to increment, before=%f after=%f", before, after)
	}
}

func TestRecordGeneration(t *testing.T) {
	m := sharedMetrics()

	before := testutil.ToFloat64(m.NewslettersGeneratedTotal.WithLabelValues("failed"))
	m.RecordGeneration("failed")
	after := testutil.ToFloat64(m.NewslettersGeneratedTotal.WithLabelValues("failed"))

	if after != before+1 {
		t.Errorf("expected generation counter to increment, before=%f after=%f", before, after)
	}
}

func TestRecordRecipientsDue(t *testing.T) {
	m := sharedMetrics()

	before := testutil.ToFloat64(m.RecipientsDueTotal)
	m.RecordRecipientsDue(3)
	after := testutil.ToFloat64(m.RecipientsDueTotal)

	if after != before+3 {
		t.Errorf("expected due counter to add 3, before=%f after=%f", before, after)
	}
}

func TestRecordLastSuccess(t *testing.T) {
	m := sharedMetrics()

	m.RecordLastSuccess()
	if testutil.ToFloat64(m.LastSuccessTimestamp) == 0 {
		t.Error("expected last success timestamp to be set")
	}
}
