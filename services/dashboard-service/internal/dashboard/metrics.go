package dashboard

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stoik/leaddesk/services/dashboard-service/internal/webhook"
)

// Webhook call outcomes
const (
	outcomeOK     = "ok"
	outcomeNoRows = "no_rows"
	outcomeStatus = "bad_status"
	outcomeError  = "error"
)

// Metrics replaces the periodic counter logging with Prometheus collectors
type Metrics struct {
	WebhookCalls   *prometheus.CounterVec
	WebhookLatency *prometheus.HistogramVec
	UploadedBytes  *prometheus.CounterVec
	FileOps        *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them when reg is not nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhookCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leaddesk",
			Name:      "webhook_calls_total",
			Help:      "Webhook calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		WebhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leaddesk",
			Name:      "webhook_call_duration_seconds",
			Help:      "Webhook call latency by endpoint.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"endpoint"}),
		UploadedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leaddesk",
			Name:      "uploaded_bytes_total",
			Help:      "Accepted upload bytes by target.",
		}, []string{"target"}),
		FileOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leaddesk",
			Name:      "file_operations_total",
			Help:      "Stored file operations by kind.",
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.WebhookCalls, m.WebhookLatency, m.UploadedBytes, m.FileOps)
	}
	return m
}

func (m *Metrics) observeWebhook(endpoint string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := outcomeOK
	var statusErr *webhook.StatusError
	switch {
	case err == nil:
	case errors.Is(err, webhook.ErrNoRows):
		outcome = outcomeNoRows
	case errors.As(err, &statusErr):
		outcome = outcomeStatus
	default:
		outcome = outcomeError
	}
	m.WebhookCalls.WithLabelValues(endpoint, outcome).Inc()
	m.WebhookLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (m *Metrics) addUploaded(target string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.UploadedBytes.WithLabelValues(target).Add(float64(n))
}

func (m *Metrics) fileOp(op string) {
	if m == nil {
		return
	}
	m.FileOps.WithLabelValues(op).Inc()
}
