package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the loan lifecycle.
type Metrics struct {
	// Loans created, split by origin ("direct" vs "reservation")
	Created *prometheus.CounterVec

	// Loans soft-deleted (returns/cancellations)
	Cancelled prometheus.Counter

	// Rejected operations by reason ("overlap", "priority", "forbidden", ...)
	Rejected *prometheus.CounterVec
}

// New creates a Metrics instance with all loan metrics registered.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "circulate_loans_created_total",
			Help: "Total loans created, by origin",
		}, []string{"origin"}), // origin: "direct", "reservation"

		Cancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "circulate_loans_cancelled_total",
			Help: "Total loans soft-deleted",
		}),

		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "circulate_loan_rejections_total",
			Help: "Total rejected loan operations by reason",
		}, []string{"reason"}),
	}
}

// IncrementCreated records a successfully placed loan.
func (m *Metrics) IncrementCreated(origin string) {
	if m != nil {
		m.Created.WithLabelValues(origin).Inc()
	}
}

// IncrementCancelled records a loan cancellation.
func (m *Metrics) IncrementCancelled() {
	if m != nil {
		m.Cancelled.Inc()
	}
}

// IncrementRejected records a rejected loan operation.
func (m *Metrics) IncrementRejected(reason string) {
	if m != nil {
		m.Rejected.WithLabelValues(reason).Inc()
	}
}
