package stackmon

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"

	fx "github.com/robotalks/ringtask/pkg/framework"
)

// Defaults of Monitor.
const (
	DefaultInterval  = 2 * time.Second
	DefaultWarnBelow = 64
)

// Report is the high-water-mark of one task.
type Report struct {
	Task          string
	StackSize     int
	HighWaterMark int
}

// Monitor periodically reports the high-water-mark of its tasks.
// It only observes; tasks are run by whoever owns them.
type Monitor struct {
	Interval time.Duration
	// WarnBelow logs a warning when a margin drops below it.
	WarnBelow int

	tasks []*Task
	gauge *prometheus.GaugeVec
}

// NewMonitor creates a Monitor.
func NewMonitor(tasks ...*Task) *Monitor {
	return &Monitor{
		Interval:  DefaultInterval,
		WarnBelow: DefaultWarnBelow,
		tasks:     tasks,
	}
}

// Add adds tasks to monitor.
func (m *Monitor) Add(tasks ...*Task) *Monitor {
	m.tasks = append(m.tasks, tasks...)
	return m
}

// RegisterMetrics exports high-water-marks as a gauge.
func (m *Monitor) RegisterMetrics(reg prometheus.Registerer) error {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ringtask",
		Subsystem: "stack",
		Name:      "high_water_mark_bytes",
		Help:      "Lowest remaining stack ever observed per task",
	}, []string{"task"})
	if err := reg.Register(gauge); err != nil {
		return err
	}
	m.gauge = gauge
	return nil
}

// Name implements framework.Named.
func (m *Monitor) Name() string {
	return "stackmon"
}

// Reports returns the current high-water-marks in task order.
func (m *Monitor) Reports() []Report {
	reports := make([]Report, len(m.tasks))
	for n, t := range m.tasks {
		reports[n] = Report{
			Task:          t.Name(),
			StackSize:     t.StackSize(),
			HighWaterMark: t.HighWaterMark(),
		}
	}
	return reports
}

// Control implements Controller.
func (m *Monitor) Control(fx.ControlContext) error {
	for _, r := range m.Reports() {
		glog.Infof("Remaining stack for %s: %d bytes", r.Task, r.HighWaterMark)
		if m.gauge != nil {
			m.gauge.WithLabelValues(r.Task).Set(float64(r.HighWaterMark))
		}
		if r.HighWaterMark < m.WarnBelow {
			glog.Warningf("task %s close to stack overflow: %d of %d bytes left", r.Task, r.HighWaterMark, r.StackSize)
		}
	}
	return nil
}

// AddToLoop implements LoopAdder.
func (m *Monitor) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.ControlFunc(m.Control))
}

// Run implements Runnable, reporting at start and every Interval.
func (m *Monitor) Run(ctx context.Context) error {
	m.Control(nil)
	loop := fx.NewLoop()
	if m.Interval > 0 {
		loop.Interval = m.Interval
	}
	return loop.Add(m).Run(ctx)
}
