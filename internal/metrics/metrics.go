package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squashbot_commands_total",
			Help: "Total number of chat commands received",
		},
		[]string{"command"},
	)

	BookingsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "squashbot_bookings_started_total",
			Help: "Total number of booking lookups started",
		},
	)

	BookingsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "squashbot_bookings_completed_total",
			Help: "Total number of bookings submitted successfully",
		},
	)

	BookingFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squashbot_booking_failures_total",
			Help: "Total number of failed booking sequences",
		},
		[]string{"code"},
	)

	SessionsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "squashbot_sessions_expired_total",
			Help: "Total number of sessions torn down by the idle sweep",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "squashbot_active_sessions",
			Help: "Number of tracked chat sessions",
		},
	)
)

func RecordCommand(command string) {
	CommandsTotal.WithLabelValues(command).Inc()
}

func RecordBookingStarted() {
	BookingsStartedTotal.Inc()
}

func RecordBookingCompleted() {
	BookingsCompletedTotal.Inc()
}

func RecordBookingFailure(code string) {
	BookingFailuresTotal.WithLabelValues(code).Inc()
}

func RecordSessionExpired() {
	SessionsExpiredTotal.Inc()
}

func SetActiveSessions(n int) {
	ActiveSessions.Set(float64(n))
}
