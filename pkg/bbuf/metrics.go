package bbuf

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes buffer operations to prometheus.
type Metrics struct {
	ops    *prometheus.CounterVec
	size   prometheus.Gauge
	filled prometheus.Gauge
	empty  prometheus.Gauge
}

// NewMetrics creates buffer metrics labelled with name and registers them.
func NewMetrics(reg prometheus.Registerer, name string) (*Metrics, error) {
	labels := prometheus.Labels{"buffer": name}
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "ringtask",
			Subsystem:   "buffer",
			Name:        "operations_total",
			ConstLabels: labels,
			Help:        "Operations by outcome (produced, consumed, full, empty)",
		}, []string{"outcome"}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "ringtask",
			Subsystem:   "buffer",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Number of values stored",
		}),
		filled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "ringtask",
			Subsystem:   "buffer",
			Name:        "filled_slots",
			ConstLabels: labels,
			Help:        "Count of the filled-slot signal",
		}),
		empty: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "ringtask",
			Subsystem:   "buffer",
			Name:        "empty_slots",
			ConstLabels: labels,
			Help:        "Count of the empty-slot signal",
		}),
	}
	for _, c := range []prometheus.Collector{m.ops, m.size, m.filled, m.empty} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) record(res Result) {
	m.ops.WithLabelValues(res.Outcome()).Inc()
	m.size.Set(float64(res.Snapshot.Size))
	m.filled.Set(float64(res.Snapshot.Filled))
	m.empty.Set(float64(res.Snapshot.Empty))
}
