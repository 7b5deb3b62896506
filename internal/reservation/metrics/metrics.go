package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the reservation lifecycle.
type Metrics struct {
	Created   prometheus.Counter
	Cancelled prometheus.Counter

	// Rejected operations by reason ("overlap", "duplicate_slot", "cap", ...)
	Rejected *prometheus.CounterVec
}

// New creates a Metrics instance with all reservation metrics registered.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounter(prometheus.CounterOpts{
			Name: "circulate_reservations_created_total",
			Help: "Total reservations created",
		}),

		Cancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "circulate_reservations_cancelled_total",
			Help: "Total reservations soft-deleted",
		}),

		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "circulate_reservation_rejections_total",
			Help: "Total rejected reservation operations by reason",
		}, []string{"reason"}),
	}
}

// IncrementCreated records a successfully placed reservation.
func (m *Metrics) IncrementCreated() {
	if m != nil {
		m.Created.Inc()
	}
}

// IncrementCancelled records a reservation cancellation.
func (m *Metrics) IncrementCancelled() {
	if m != nil {
		m.Cancelled.Inc()
	}
}

// IncrementRejected records a rejected reservation operation.
func (m *Metrics) IncrementRejected(reason string) {
	if m != nil {
		m.Rejected.WithLabelValues(reason).Inc()
	}
}
