package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mediaforge-app/mediaforge/internal/domain"
)

// ─── Metric Helpers ─────────────────────────────────────────────────────────

func TestRecordTransition_CountsStatus(t *testing.T) {
	c := JobTransitions.WithLabelValues("transcription", "processing")
	before := testutil.ToFloat64(c)

	RecordTransition(domain.KindTranscription, domain.StatusProcessing, time.Now())

	if got := testutil.ToFloat64(c); got != before+1 {
		t.Errorf("transitions = %v, want %v", got, before+1)
	}
}

func TestRecordTransition_TerminalObservesDuration(t *testing.T) {
	RecordTransition(domain.KindVideoSynthesis, domain.StatusCompleted, time.Now().Add(-2*time.Second))

	if n := testutil.CollectAndCount(JobDuration, "mediaforge_jobs_duration_seconds"); n == 0 {
		t.Error("terminal transition should observe a duration")
	}
}

func TestRecordReservation(t *testing.T) {
	ok := Reservations.WithLabelValues("SUCCESS")
	failed := Reservations.WithLabelValues("FAILED")
	coins := CoinsReserved.WithLabelValues("transcription")
	okBefore, failedBefore, coinsBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed), testutil.ToFloat64(coins)

	RecordReservation(domain.KindTranscription, 4, nil)
	RecordReservation(domain.KindTranscription, 4, errors.New("insufficient"))

	if got := testutil.ToFloat64(ok); got != okBefore+1 {
		t.Errorf("success = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(failed); got != failedBefore+1 {
		t.Errorf("failed = %v, want %v", got, failedBefore+1)
	}
	if got := testutil.ToFloat64(coins); got != coinsBefore+4 {
		t.Errorf("coins = %v, want %v", got, coinsBefore+4)
	}
}
