package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the orchestrator's instrumentation. All collectors are
// registered on construction; a nil registerer yields unregistered
// collectors, which is what tests want.
type Metrics struct {
	Requests        *prometheus.CounterVec
	AgentCalls      *prometheus.CounterVec
	SubtaskFailures *prometheus.CounterVec
	RequestSeconds  *prometheus.HistogramVec
	AgentSeconds    *prometheus.HistogramVec
	PeerReviews     *prometheus.CounterVec
}

// NewMetrics creates and registers the orchestrator collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Subsystem: "orchestrator",
			Name:      "requests_total",
			Help:      "Requests submitted, by terminal status.",
		}, []string{"status"}),
		AgentCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Subsystem: "orchestrator",
			Name:      "agent_invocations_total",
			Help:      "Agent invocations, by agent type and outcome.",
		}, []string{"agent_type", "outcome"}),
		SubtaskFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Subsystem: "orchestrator",
			Name:      "subtask_failures_total",
			Help:      "Failed sub-tasks, by error kind.",
		}, []string{"kind"}),
		RequestSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "huddle",
			Subsystem: "orchestrator",
			Name:      "request_duration_seconds",
			Help:      "End-to-end request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		AgentSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "huddle",
			Subsystem: "orchestrator",
			Name:      "agent_call_duration_seconds",
			Help:      "Single agent invocation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent_type"}),
		PeerReviews: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Subsystem: "orchestrator",
			Name:      "peer_reviews_total",
			Help:      "Peer review rounds, by terminal task status.",
		}, []string{"status"}),
	}
}
