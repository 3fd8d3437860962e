package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vigil"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	transitions    *prom.CounterVec
	checkIns       *prom.CounterVec
	storeErrors    *prom.CounterVec
	remoteCalls    *prom.CounterVec
	tickDuration   prom.Histogram
	ticksSkipped   prom.Counter
	graceRemaining prom.Gauge

	relayTasks    *prom.CounterVec
	relayLateness prom.Histogram
	relayPending  prom.Gauge
}

// NewPrometheusRecorder constructs metrics and registers them on reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		transitions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Watchdog state transitions by target state",
		}, []string{"state"}),
		checkIns: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "check_ins_total",
			Help:      "Observed activity, split by whether it fell inside the window",
		}, []string{"counted"}),
		storeErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Durable store failures by operation",
		}, []string{"op"}),
		remoteCalls: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Relay calls by operation and result",
		}, []string{"op", "result"}),
		tickDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of watchdog poll ticks",
			Buckets:   prom.DefBuckets,
		}),
		ticksSkipped: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_skipped_total",
			Help:      "Poll ticks skipped because the previous one was still running",
		}),
		graceRemaining: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "grace_remaining_seconds",
			Help:      "Grace period left on the current escalation",
		}),
		relayTasks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "tasks_total",
			Help:      "Relay task events",
		}, []string{"event"}),
		relayLateness: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "delivery_lateness_seconds",
			Help:      "Delay between a task's scheduled time and its delivery",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		relayPending: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "pending_tasks",
			Help:      "Tasks waiting for delivery",
		}),
	}
	reg.MustRegister(pr.transitions, pr.checkIns, pr.storeErrors, pr.remoteCalls,
		pr.tickDuration, pr.ticksSkipped, pr.graceRemaining,
		pr.relayTasks, pr.relayLateness, pr.relayPending)
	return pr
}

func (p *PrometheusRecorder) IncTransition(to string) {
	p.transitions.WithLabelValues(to).Inc()
}

func (p *PrometheusRecorder) IncCheckIn(counted bool) {
	p.checkIns.WithLabelValues(boolLabel(counted)).Inc()
}

func (p *PrometheusRecorder) IncStoreError(op string) {
	p.storeErrors.WithLabelValues(op).Inc()
}

func (p *PrometheusRecorder) IncRemoteCall(op string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	p.remoteCalls.WithLabelValues(op, result).Inc()
}

func (p *PrometheusRecorder) ObserveTick(d time.Duration) {
	p.tickDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTickSkipped() {
	p.ticksSkipped.Inc()
}

func (p *PrometheusRecorder) SetGraceRemaining(seconds float64) {
	p.graceRemaining.Set(seconds)
}

func (p *PrometheusRecorder) IncRelayTask(event string) {
	p.relayTasks.WithLabelValues(event).Inc()
}

func (p *PrometheusRecorder) ObserveDeliveryLateness(d time.Duration) {
	p.relayLateness.Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetRelayPending(n int) {
	p.relayPending.Set(float64(n))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// HTTPHandler serves the metrics gathered by reg.
func HTTPHandler(reg prom.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
