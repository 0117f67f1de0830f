package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"node.town/hark/transcription"
)

func newTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return New(reg, reg)
}

func TestObserverCounts(t *testing.T) {
	m := newTestMetrics()

	m.SessionStarted()
	m.FrameStepped(10*time.Millisecond, 3)
	m.FrameStepped(12*time.Millisecond, 0)
	m.TokenDecoded("Hello")
	m.TokenDecoded("")
	m.TokenDecoded(" world")
	m.SessionFinished(transcription.Result{Elapsed: time.Second}, nil)

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"sessions", m.SessionsStarted, 1},
		{"frames", m.FramesStepped, 2},
		{"events", m.EventsReceived, 3},
		{"tokens", m.TokensDecoded, 3},
		{"degenerate", m.DegenerateTokens, 1},
		{"fragments", m.FragmentsEmitted, 2},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestSessionFailureIsLabelledByStage(t *testing.T) {
	m := newTestMetrics()

	err := &transcription.Error{Stage: transcription.ErrEngine, Frame: 4, Err: errors.New("boom")}
	m.SessionFinished(transcription.Result{}, err)
	m.SessionFinished(transcription.Result{}, errors.New("other"))

	if got := testutil.ToFloat64(m.SessionsFailed.WithLabelValues("engine")); got != 1 {
		t.Errorf("engine failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SessionsFailed.WithLabelValues("unknown")); got != 1 {
		t.Errorf("unknown failures = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := newTestMetrics()
	m.SessionStarted()
	m.RecordHTTPRequest("GET", "/transcripts", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"hark_sessions_started_total 1", `hark_http_requests_total{method="GET",route="/transcripts",status="200"} 1`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRegistersOnlyWithGivenRegistry(t *testing.T) {
	// promauto panics on duplicate registration, so two instances must not
	// share a registry.
	a, b := newTestMetrics(), newTestMetrics()
	a.SessionStarted()
	if got := testutil.ToFloat64(b.SessionsStarted); got != 0 {
		t.Errorf("second registry sessions = %v, want 0", got)
	}

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "hark_") {
			t.Errorf("default registry has %s", f.GetName())
		}
	}
}
