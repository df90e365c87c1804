package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/slok/opstrack/internal/metrics"
)

const namespace = "opstrack"

// Recorder records the task runtime metrics on Prometheus collectors.
type Recorder struct {
	tasksLaunched   *prometheus.CounterVec
	launchFailures  *prometheus.CounterVec
	tasksTerminated *prometheus.CounterVec
	polls           *prometheus.CounterVec
	locked          prometheus.Gauge
	safetyReleases  prometheus.Counter
	heartbeats      *prometheus.CounterVec
}

var _ metrics.Recorder = &Recorder{}

// NewRecorder returns a new Prometheus recorder registered on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		tasksLaunched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "task",
			Name:      "launched_total",
			Help:      "Total number of tasks launched on the server.",
		}, []string{"operation"}),
		launchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "task",
			Name:      "launch_failures_total",
			Help:      "Total number of launch requests that did not produce a task.",
		}, []string{"operation"}),
		tasksTerminated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "task",
			Name:      "terminated_total",
			Help:      "Total number of tasks that reached a terminal state.",
		}, []string{"operation", "state"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "requests_total",
			Help:      "Total number of task status polls by result.",
		}, []string{"result"}),
		locked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "interaction",
			Name:      "locked",
			Help:      "1 while the interaction lock is held.",
		}),
		safetyReleases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interaction",
			Name:      "safety_releases_total",
			Help:      "Total number of interaction locks released by the safety timer.",
		}),
		heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keepalive",
			Name:      "pings_total",
			Help:      "Total number of keepalive pings by outcome.",
		}, []string{"success"}),
	}

	collectors := []prometheus.Collector{
		r.tasksLaunched,
		r.launchFailures,
		r.tasksTerminated,
		r.polls,
		r.locked,
		r.safetyReleases,
		r.heartbeats,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Recorder) IncTaskLaunched(operation string) {
	r.tasksLaunched.WithLabelValues(operation).Inc()
}

func (r *Recorder) IncLaunchFailed(operation string) {
	r.launchFailures.WithLabelValues(operation).Inc()
}

func (r *Recorder) IncTaskTerminated(operation, state string) {
	r.tasksTerminated.WithLabelValues(operation, state).Inc()
}

func (r *Recorder) IncPoll(result string) {
	r.polls.WithLabelValues(result).Inc()
}

func (r *Recorder) SetInteractionLocked(locked bool) {
	if locked {
		r.locked.Set(1)
		return
	}
	r.locked.Set(0)
}

func (r *Recorder) IncLockSafetyRelease() {
	r.safetyReleases.Inc()
}

func (r *Recorder) IncHeartbeat(ok bool) {
	r.heartbeats.WithLabelValues(strconv.FormatBool(ok)).Inc()
}
