package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordMetered(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry())

	m.RecordMetered("allowed")
	m.RecordMetered("allowed")
	m.RecordMetered("denied")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.meteredRequests.WithLabelValues("allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.meteredRequests.WithLabelValues("denied")))
}

func TestRecordWebhookAndLatency(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry())

	m.RecordWebhook("checkout.session.completed", "applied")
	m.ObserveLLM(Outcome(nil), 2*time.Second)
	m.ObserveLLM(Outcome(errors.New("boom")), time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhookEvents.WithLabelValues("checkout.session.completed", "applied")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.llmLatency))
}

func TestGetIsSingleton(t *testing.T) {
	assert.Same(t, Get(), Get())
}
