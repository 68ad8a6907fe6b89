package zerotrust

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics is the snapshot returned by Engine.GetMetrics.
type EngineMetrics struct {
	AccessRequests      int64         `json:"access_requests"`
	AccessGranted       int64         `json:"access_granted"`
	AccessDenied        int64         `json:"access_denied"`
	EvaluationFailures  int64         `json:"evaluation_failures"`
	AverageDecisionTime time.Duration `json:"average_decision_time"`
	TrustScores         int           `json:"trust_scores"`
	EnabledPolicies     int           `json:"enabled_policies"`
	NetworkSegments     int           `json:"network_segments"`
	QuarantinedAgents   int           `json:"quarantined_agents"`
}

// metricsRecorder keeps the running counters exposed through GetMetrics and
// mirrors them to prometheus collectors.
type metricsRecorder struct {
	mu                  sync.Mutex
	accessRequests      int64
	accessGranted       int64
	accessDenied        int64
	evaluationFailures  int64
	averageDecisionTime time.Duration

	promRequests   *prometheus.CounterVec
	promFailures   prometheus.Counter
	promDuration   prometheus.Histogram
	promQuarantine prometheus.Gauge
}

func newMetricsRecorder(registry prometheus.Registerer) *metricsRecorder {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	mr := &metricsRecorder{
		promRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accessd",
			Subsystem: "engine",
			Name:      "access_requests_total",
			Help:      "Access evaluations by outcome.",
		}, []string{"outcome"}),
		promFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "accessd",
			Subsystem: "engine",
			Name:      "evaluation_failures_total",
			Help:      "Evaluations that failed internally and returned a fail-secure deny.",
		}),
		promDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "accessd",
			Subsystem: "engine",
			Name:      "decision_duration_seconds",
			Help:      "Time spent producing an access decision.",
			Buckets:   prometheus.DefBuckets,
		}),
		promQuarantine: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "accessd",
			Subsystem: "engine",
			Name:      "quarantined_agents",
			Help:      "Agents currently quarantined.",
		}),
	}

	registry.MustRegister(mr.promRequests, mr.promFailures, mr.promDuration, mr.promQuarantine)
	return mr
}

func (mr *metricsRecorder) recordDecision(allowed bool, elapsed time.Duration) {
	mr.mu.Lock()
	mr.accessRequests++
	if allowed {
		mr.accessGranted++
	} else {
		mr.accessDenied++
	}
	// Running mean over all decisions.
	n := mr.accessRequests
	mr.averageDecisionTime += (elapsed - mr.averageDecisionTime) / time.Duration(n)
	mr.mu.Unlock()

	outcome := "denied"
	if allowed {
		outcome = "granted"
	}
	mr.promRequests.WithLabelValues(outcome).Inc()
	mr.promDuration.Observe(elapsed.Seconds())
}

func (mr *metricsRecorder) recordFailure() {
	mr.mu.Lock()
	mr.evaluationFailures++
	mr.mu.Unlock()
	mr.promFailures.Inc()
}

func (mr *metricsRecorder) setQuarantined(count int) {
	mr.promQuarantine.Set(float64(count))
}

func (mr *metricsRecorder) snapshot() EngineMetrics {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	return EngineMetrics{
		AccessRequests:      mr.accessRequests,
		AccessGranted:       mr.accessGranted,
		AccessDenied:        mr.accessDenied,
		EvaluationFailures:  mr.evaluationFailures,
		AverageDecisionTime: mr.averageDecisionTime,
	}
}
