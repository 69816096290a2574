package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for slot queries, edits and bookings.
// A nil *SchedulingMetrics is a valid no-op.
type SchedulingMetrics struct {
	operations     *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	slotsReturned  *prometheus.HistogramVec
	bookings       *prometheus.CounterVec
	outboxDelivery *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendo",
			Subsystem: "scheduling",
			Name:      "operations_total",
			Help:      "Scheduling operations by outcome",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agendo",
			Subsystem: "scheduling",
			Name:      "operation_duration_seconds",
			Help:      "Latency of scheduling operations including store reads",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		slotsReturned: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agendo",
			Subsystem: "scheduling",
			Name:      "slots_returned",
			Help:      "Number of slots returned per query",
			Buckets:   []float64{0, 1, 4, 8, 16, 32, 64, 128},
		}, []string{"availability"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendo",
			Subsystem: "scheduling",
			Name:      "booking_attempts_total",
			Help:      "Booking attempts by result (booked, conflict, error)",
		}, []string{"result"}),
		outboxDelivery: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendo",
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox events delivered to Kafka",
		}, []string{"event_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operations, m.latency, m.slotsReturned, m.bookings, m.outboxDelivery)
	return m
}

func (m *SchedulingMetrics) ObserveOperation(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(seconds)
}

func (m *SchedulingMetrics) ObserveSlots(available, unavailable int) {
	if m == nil {
		return
	}
	m.slotsReturned.WithLabelValues("available").Observe(float64(available))
	m.slotsReturned.WithLabelValues("unavailable").Observe(float64(unavailable))
}

func (m *SchedulingMetrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(result).Inc()
}

func (m *SchedulingMetrics) ObserveOutboxPublished(eventType string) {
	if m == nil {
		return
	}
	m.outboxDelivery.WithLabelValues(eventType).Inc()
}
