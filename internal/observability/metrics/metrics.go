package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics exposes counters/histograms for slot queries and reservations.
type BookingMetrics struct {
	slotQueries      *prometheus.CounterVec
	slotQueryLatency *prometheus.HistogramVec
	reservations     *prometheus.CounterVec
	feedSubscribers  prometheus.Gauge
	eventsPublished  *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		slotQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "availability",
			Name:      "slot_queries_total",
			Help:      "Total slot queries by outcome",
		}, []string{"status"}),
		slotQueryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agenda",
			Subsystem: "availability",
			Name:      "slot_query_latency_seconds",
			Help:      "Latency of a single day's slot query",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "reservations",
			Name:      "commits_total",
			Help:      "Reservation commits by outcome (success, conflict, invalid, error)",
		}, []string{"outcome"}),
		feedSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agenda",
			Subsystem: "changefeed",
			Name:      "subscribers",
			Help:      "Open change feed subscriptions",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "changefeed",
			Name:      "events_published_total",
			Help:      "Change events published by kind and status",
		}, []string{"kind", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotQueries, m.slotQueryLatency, m.reservations, m.feedSubscribers, m.eventsPublished)
	return m
}

func (m *BookingMetrics) ObserveSlotQuery(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.slotQueries.WithLabelValues(status).Inc()
	m.slotQueryLatency.WithLabelValues(status).Observe(elapsed.Seconds())
}

func (m *BookingMetrics) ObserveReservation(outcome string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) SubscriberOpened() {
	if m == nil {
		return
	}
	m.feedSubscribers.Inc()
}

func (m *BookingMetrics) SubscriberClosed() {
	if m == nil {
		return
	}
	m.feedSubscribers.Dec()
}

func (m *BookingMetrics) ObservePublish(kind string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.eventsPublished.WithLabelValues(kind, status).Inc()
}
