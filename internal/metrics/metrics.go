package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the portal's Prometheus collectors.
type Metrics struct {
	FilterVerdicts   *prometheus.CounterVec
	LangDetections   *prometheus.CounterVec
	Notifications    *prometheus.CounterVec
	RequestDurations *prometheus.HistogramVec
}

// New registers the collectors with the default registry on first use and
// returns the shared set afterwards.
//
//   - portal_filter_verdicts_total{status,reason}
//   - portal_langdetect_total{source,language}
//   - portal_notifications_total{result}
//   - portal_http_request_duration_seconds{method,route,status}
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			FilterVerdicts: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "portal_filter_verdicts_total",
					Help: "Comment filter verdicts by status and reason",
				},
				[]string{"status", "reason"},
			),
			LangDetections: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "portal_langdetect_total",
					Help: "Language classifications by source and detected language",
				},
				[]string{"source", "language"},
			),
			Notifications: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "portal_notifications_total",
					Help: "Subscriber notification attempts by result",
				},
				[]string{"result"},
			),
			RequestDurations: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "portal_http_request_duration_seconds",
					Help:    "HTTP request latency",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "route", "status"},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) ObserveVerdict(status, reason string) {
	if m == nil {
		return
	}
	m.FilterVerdicts.WithLabelValues(status, reason).Inc()
}

func (m *Metrics) ObserveLanguage(source, language string) {
	if m == nil {
		return
	}
	if source == "" {
		source = "none"
	}
	m.LangDetections.WithLabelValues(source, language).Inc()
}

func (m *Metrics) ObserveNotification(result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDurations.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
