package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"node.town/hark/transcription"
)

// Metrics holds the Prometheus collectors for transcription sessions and
// the HTTP API. It implements transcription.Observer.
type Metrics struct {
	SessionsStarted  prometheus.Counter
	SessionsFailed   *prometheus.CounterVec
	SessionDuration  prometheus.Histogram
	FramesStepped    prometheus.Counter
	StepDuration     prometheus.Histogram
	EventsReceived   prometheus.Counter
	TokensDecoded    prometheus.Counter
	DegenerateTokens prometheus.Counter
	FragmentsEmitted prometheus.Counter

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg and serves metrics from gatherer.
// Callers own the registry; the server builds one holding these plus the Go
// and process collectors.
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "hark_sessions_started_total",
			Help: "Transcription sessions started",
		}),
		SessionsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hark_sessions_failed_total",
			Help: "Transcription sessions that failed, by stage",
		}, []string{"stage"}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hark_session_duration_seconds",
			Help:    "Wall time of a transcription session",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		FramesStepped: f.NewCounter(prometheus.CounterOpts{
			Name: "hark_frames_stepped_total",
			Help: "Audio frames fed to the decoder",
		}),
		StepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hark_step_duration_seconds",
			Help:    "Time the decoder took per frame",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		EventsReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "hark_events_received_total",
			Help: "Events reported by the decoder",
		}),
		TokensDecoded: f.NewCounter(prometheus.CounterOpts{
			Name: "hark_tokens_decoded_total",
			Help: "Tokens passed through the detokenizer",
		}),
		DegenerateTokens: f.NewCounter(prometheus.CounterOpts{
			Name: "hark_degenerate_tokens_total",
			Help: "Tokens that added no text",
		}),
		FragmentsEmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "hark_fragments_emitted_total",
			Help: "Text fragments written to sinks",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hark_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hark_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		gatherer: gatherer,
	}
}

func (m *Metrics) SessionStarted() {
	m.SessionsStarted.Inc()
}

func (m *Metrics) FrameStepped(elapsed time.Duration, events int) {
	m.FramesStepped.Inc()
	m.StepDuration.Observe(elapsed.Seconds())
	m.EventsReceived.Add(float64(events))
}

func (m *Metrics) TokenDecoded(fragment string) {
	m.TokensDecoded.Inc()
	if fragment == "" {
		m.DegenerateTokens.Inc()
		return
	}
	m.FragmentsEmitted.Inc()
}

func (m *Metrics) SessionFinished(res transcription.Result, err error) {
	m.SessionDuration.Observe(res.Elapsed.Seconds())
	if err != nil {
		stage := transcription.StageOf(err)
		if stage == "" {
			stage = "unknown"
		}
		m.SessionsFailed.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry the collectors were registered with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

var _ transcription.Observer = (*Metrics)(nil)
