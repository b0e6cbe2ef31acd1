package orders

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-orderfsm/fsm"
)

const metricsNamespace = "orderfsm"

// MetricsListener counts transitions and rejections as prometheus counters.
type MetricsListener struct {
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
}

// NewMetricsListener creates the counters and registers them with reg when reg is not nil.
func NewMetricsListener(reg prometheus.Registerer) (*MetricsListener, error) {
	m := &MetricsListener{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transitions_total",
			Help:      "State changes applied to orders.",
		}, []string{"from", "to", "event"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rejections_total",
			Help:      "Events not accepted in the order's current state.",
		}, []string{"state", "event"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.transitions, m.rejections} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *MetricsListener) Notify(_ context.Context, n fsm.Notification) error {
	switch n.Kind {
	case fsm.NotificationStateChanged:
		m.transitions.WithLabelValues(n.From.String(), n.To.String(), n.Event.String()).Inc()
	case fsm.NotificationEventNotAccepted:
		m.rejections.WithLabelValues(n.From.String(), n.Event.String()).Inc()
	}
	return nil
}

// Transitions exposes the transition counter for collection and tests.
func (m *MetricsListener) Transitions() *prometheus.CounterVec { return m.transitions }

// Rejections exposes the rejection counter for collection and tests.
func (m *MetricsListener) Rejections() *prometheus.CounterVec { return m.rejections }
