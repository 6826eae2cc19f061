package delivery

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts lifecycle activity. A nil *Metrics is a no-op.
type Metrics struct {
	transitions *prometheus.CounterVec
	itemWrites  *prometheus.CounterVec
	fetches     *prometheus.CounterVec
}

// NewMetrics registers the lifecycle collectors against registerer, or the
// default registerer when nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldops_delivery_transitions_total",
			Help: "Delivery order transitions by resulting status and outcome.",
		}, []string{"status", "outcome"}),
		itemWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldops_delivery_item_writes_total",
			Help: "Per-item completion writes by outcome.",
		}, []string{"outcome"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldops_delivery_fetches_total",
			Help: "Order fetches by the source that served them.",
		}, []string{"source"}),
	}
	registerer.MustRegister(m.transitions, m.itemWrites, m.fetches)
	return m
}

func (m *Metrics) transition(status Status, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(status), outcome(err)).Inc()
}

func (m *Metrics) itemWrite(err error) {
	if m == nil {
		return
	}
	m.itemWrites.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) fetch(source FetchSource) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(string(source)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
