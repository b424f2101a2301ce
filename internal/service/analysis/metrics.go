package analysis

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report analysis activity.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	taskOutcomes  *prometheus.CounterVec
	tasksActive   prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the package-level metrics registered with the global
// Prometheus registry, created once.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs Metrics on reg. Tests pass a fresh registry.
// Collectors already registered under the same name are reused; any other
// registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docstream",
			Subsystem: "analysis",
			Name:      "stage_duration_seconds",
			Help:      "Duration spent in each analysis stage.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"stage", "status"},
	)
	stageFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docstream",
			Subsystem: "analysis",
			Name:      "stage_failures_total",
			Help:      "Stage executions that failed or degraded.",
		},
		[]string{"stage", "reason"},
	)
	taskOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docstream",
			Subsystem: "analysis",
			Name:      "tasks_total",
			Help:      "Finished analysis tasks by outcome.",
		},
		[]string{"outcome"},
	)
	tasksActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docstream",
			Subsystem: "analysis",
			Name:      "tasks_active",
			Help:      "Number of analysis tasks currently running.",
		},
	)

	collectors := []prometheus.Collector{stageDuration, stageFailures, taskOutcomes, tasksActive}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch target := collector.(type) {
				case *prometheus.HistogramVec:
					stageDuration = already.ExistingCollector.(*prometheus.HistogramVec)
				case *prometheus.CounterVec:
					switch target {
					case stageFailures:
						stageFailures = already.ExistingCollector.(*prometheus.CounterVec)
					case taskOutcomes:
						taskOutcomes = already.ExistingCollector.(*prometheus.CounterVec)
					}
				case prometheus.Gauge:
					tasksActive = already.ExistingCollector.(prometheus.Gauge)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		stageDuration: stageDuration,
		stageFailures: stageFailures,
		taskOutcomes:  taskOutcomes,
		tasksActive:   tasksActive,
	}
}

// ObserveStageDuration records the time spent in a stage with the given status label.
func (m *Metrics) ObserveStageDuration(stage, status string, duration time.Duration) {
	if m == nil || m.stageDuration == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, status).Observe(duration.Seconds())
}

// IncStageFailure increments the failure counter for stage and reason.
func (m *Metrics) IncStageFailure(stage, reason string) {
	if m == nil || m.stageFailures == nil {
		return
	}
	m.stageFailures.WithLabelValues(stage, reason).Inc()
}

// IncOutcome counts a finished task.
func (m *Metrics) IncOutcome(outcome string) {
	if m == nil || m.taskOutcomes == nil {
		return
	}
	m.taskOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncActiveTasks() {
	if m == nil || m.tasksActive == nil {
		return
	}
	m.tasksActive.Inc()
}

func (m *Metrics) DecActiveTasks() {
	if m == nil || m.tasksActive == nil {
		return
	}
	m.tasksActive.Dec()
}
