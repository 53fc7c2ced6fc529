package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/leofalp/chatrelay/providers/ai"
)

var (
	metricTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatrelay",
		Name:      "turns_total",
		Help:      "Chat turns by terminal outcome.",
	}, []string{"outcome"})
	metricFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatrelay",
		Name:      "fallbacks_total",
		Help:      "Fallback attempts made after the requested model was unavailable.",
	})
	metricProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatrelay",
		Name:      "provider_failures_total",
		Help:      "Provider failures by provider kind and class (unavailable, interrupted).",
	}, []string{"provider", "class"})
	metricFirstDelta = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chatrelay",
		Name:      "first_delta_seconds",
		Help:      "Time from turn start to the first relayed delta.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"provider"})
	metricTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatrelay",
		Name:      "tokens_total",
		Help:      "Tokens reported by providers, by model and direction.",
	}, []string{"model", "direction"})
	metricCost = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatrelay",
		Name:      "cost_usd_total",
		Help:      "Estimated spend in US dollars by model.",
	}, []string{"model"})
)

func recordTurn(outcome Outcome) {
	metricTurns.WithLabelValues(string(outcome)).Inc()
}

func recordFallback() {
	metricFallbacks.Inc()
}

func recordProviderFailure(kind ai.ProviderKind, class string) {
	metricProviderFailures.WithLabelValues(string(kind), class).Inc()
}

func recordFirstDelta(kind ai.ProviderKind, elapsed time.Duration) {
	metricFirstDelta.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

func recordUsage(reply *AssembledReply) {
	if reply.Usage != nil {
		metricTokens.WithLabelValues(reply.ModelUsed, "prompt").Add(float64(reply.Usage.PromptTokens))
		metricTokens.WithLabelValues(reply.ModelUsed, "completion").Add(float64(reply.Usage.CompletionTokens))
	}
	if reply.Cost != nil && reply.Cost.Total > 0 {
		metricCost.WithLabelValues(reply.ModelUsed).Add(reply.Cost.Total)
	}
}
