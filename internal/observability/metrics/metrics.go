package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "doctor_booking"

// BookingMetrics exposes counters/histograms for booking, payment and scheduler flows.
type BookingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	paymentsTotal    *prometheus.CounterVec
	cancellations    *prometheus.CounterVec
	gatewayLatency   *prometheus.HistogramVec
	schedulerRuns    *prometheus.CounterVec
	schedulerTouched *prometheus.CounterVec
	realtimeDelivery *prometheus.CounterVec
}

// NewBookingMetrics registers the collectors on reg, or the default registerer when nil.
func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		paymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "confirmations_total",
			Help:      "Payment confirmation attempts by source and outcome",
		}, []string{"source", "outcome"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "cancellations_total",
			Help:      "Appointment cancellations by reason class",
		}, []string{"reason"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "gateway_latency_seconds",
			Help:      "Latency of payment gateway calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		schedulerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Scheduler task runs by job and outcome",
		}, []string{"job", "outcome"}),
		schedulerTouched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "appointments_affected_total",
			Help:      "Appointments changed by scheduler tasks",
		}, []string{"job"}),
		realtimeDelivery: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "deliveries_total",
			Help:      "Live notification deliveries by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.paymentsTotal, m.cancellations, m.gatewayLatency,
		m.schedulerRuns, m.schedulerTouched, m.realtimeDelivery)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObservePayment(source, outcome string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(source, outcome).Inc()
}

func (m *BookingMetrics) ObserveCancellation(reason string) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(reason).Inc()
}

func (m *BookingMetrics) ObserveGatewayLatency(operation string, failed bool, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.gatewayLatency.WithLabelValues(operation, status).Observe(seconds)
}

func (m *BookingMetrics) ObserveSchedulerRun(job string, failed bool, affected int) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.schedulerRuns.WithLabelValues(job, outcome).Inc()
	if affected > 0 {
		m.schedulerTouched.WithLabelValues(job).Add(float64(affected))
	}
}

func (m *BookingMetrics) ObserveDelivery(result string) {
	if m == nil {
		return
	}
	m.realtimeDelivery.WithLabelValues(result).Inc()
}
