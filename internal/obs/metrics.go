// Package obs exposes Prometheus metrics for upstream health.
package obs

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"homeboard/internal/model"
)

type Metrics struct {
	UpstreamTotal    *prometheus.CounterVec   // source, result=ok|<error kind>
	UpstreamDuration *prometheus.HistogramVec // source
	CacheTotal       *prometheus.CounterVec   // cache, result=hit|miss

	CalendarFailuresTotal  *prometheus.CounterVec // calendar
	ConsistencyFailures    prometheus.Counter
	NotificationsSentTotal prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		UpstreamTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homeboard_upstream_checks_total",
				Help: "Upstream refreshes by source and result",
			},
			[]string{"source", "result"},
		),
		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "homeboard_upstream_duration_seconds",
				Help:    "Duration of upstream refreshes",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
			},
			[]string{"source"},
		),
		CacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homeboard_cache_lookups_total",
				Help: "Cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
		CalendarFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homeboard_calendar_failures_total",
				Help: "Calendars excluded from an aggregation",
			},
			[]string{"calendar"},
		),
		ConsistencyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "homeboard_appliance_consistency_failures_total",
			Help: "Disable operations after which the appliances disagreed",
		}),
		NotificationsSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "homeboard_notifications_sent_total",
			Help: "Reminders and notices pushed to the notify chat",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.UpstreamTotal,
		m.UpstreamDuration,
		m.CacheTotal,
		m.CalendarFailuresTotal,
		m.ConsistencyFailures,
		m.NotificationsSentTotal,
	)

	return m
}

// ObserveCheck records one upstream refresh.
func (m *Metrics) ObserveCheck(source string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = model.Kind(err)
	}
	m.UpstreamTotal.WithLabelValues(source, result).Inc()
	m.UpstreamDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveCache records a cache lookup. It matches cache.Observer.
func (m *Metrics) ObserveCache(name string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheTotal.WithLabelValues(name, result).Inc()
}

// ObserveCalendarFailures counts excluded calendars.
func (m *Metrics) ObserveCalendarFailures(calendars []string) {
	for _, c := range calendars {
		m.CalendarFailuresTotal.WithLabelValues(c).Inc()
	}
}

// ObserveInconsistency counts a disagreement between the appliances.
func (m *Metrics) ObserveInconsistency(_, _ model.BlockingStatus) {
	m.ConsistencyFailures.Inc()
}

// ObserveNotifications counts pushed messages.
func (m *Metrics) ObserveNotifications(n int) {
	m.NotificationsSentTotal.Add(float64(n))
}

// Handler serves the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
