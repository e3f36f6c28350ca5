// Package metrics holds the Prometheus instruments of the API.
package metrics

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records usage gate decisions, webhook outcomes, study turns and
// collaborator latency.
type Metrics struct {
	meteredRequests *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	studyTurns      *prometheus.CounterVec
	llmLatency      *prometheus.HistogramVec
	extractRuns     *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the process-wide metrics, registering them on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics(prometheus.DefaultRegisterer)
	})
	return instance
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		meteredRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "uniprofs",
				Name:      "metered_requests_total",
				Help:      "Usage gate decisions by result",
			},
			[]string{"result"},
		),
		webhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "uniprofs",
				Name:      "webhook_events_total",
				Help:      "Payment webhook events by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		studyTurns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "uniprofs",
				Subsystem: "study",
				Name:      "turns_total",
				Help:      "Study dialogue turns by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		llmLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "uniprofs",
				Subsystem: "llm",
				Name:      "request_duration_seconds",
				Help:      "Latency of language generation requests",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
			},
			[]string{"outcome"},
		),
		extractRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "uniprofs",
				Subsystem: "extract",
				Name:      "runs_total",
				Help:      "Document helper script runs by script and outcome",
			},
			[]string{"script", "outcome"},
		),
	}
	reg.MustRegister(m.meteredRequests, m.webhookEvents, m.studyTurns, m.llmLatency, m.extractRuns)
	return m
}

func (m *Metrics) RecordMetered(result string) {
	m.meteredRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordWebhook(eventType, outcome string) {
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) RecordStudyTurn(op, outcome string) {
	m.studyTurns.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveLLM(outcome string, d time.Duration) {
	m.llmLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) RecordExtract(script, outcome string) {
	m.extractRuns.WithLabelValues(script, outcome).Inc()
}

// Handler serves the default registry for scraping.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// Outcome maps an error to the "ok"/"error" label used across instruments.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
