// Package metrics holds the prometheus collectors for the engine.
// Everything is registered through promauto at package init; handlers
// and clients record into these directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InboundMessages counts webhook messages by platform and outcome.
	InboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "saju",
		Name:      "inbound_messages_total",
		Help:      "Inbound chat messages by platform and handling outcome.",
	}, []string{"platform", "outcome"})

	// HandleLatency tracks end-to-end orchestrator handling time.
	HandleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "saju",
		Name:      "handle_seconds",
		Help:      "Orchestrator handling latency per intent.",
		Buckets:   []float64{0.05, 0.2, 0.5, 1, 2, 3, 5, 10, 20, 40},
	}, []string{"intent"})

	// LLMCalls counts completion and embedding calls by outcome.
	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "saju",
		Name:      "llm_calls_total",
		Help:      "LLM API calls by operation (chat, embed) and outcome.",
	}, []string{"op", "outcome"})

	// LLMTokens accumulates prompt and completion token usage.
	LLMTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "saju",
		Name:      "llm_tokens_total",
		Help:      "Token usage reported by the LLM provider.",
	}, []string{"kind"})

	// LLMLatency tracks chat-completion round trips.
	LLMLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "saju",
		Name:      "llm_seconds",
		Help:      "Chat completion latency.",
		Buckets:   []float64{0.5, 1, 2, 4, 8, 15, 30, 60},
	})

	// ThrottleRejections counts spam-gate and quota rejections.
	ThrottleRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "saju",
		Name:      "throttle_rejections_total",
		Help:      "Requests rejected by the spam gate or the daily quota.",
	}, []string{"gate"})

	// PushOutcomes counts daily push deliveries by final status.
	PushOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "saju",
		Name:      "push_outcomes_total",
		Help:      "Daily push delivery outcomes (success, retried, failed).",
	}, []string{"status"})

	// ManseFallbacks counts how often the local pillar calculator took
	// over from the external manse service.
	ManseFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "saju",
		Name:      "manse_fallbacks_total",
		Help:      "Pillar computations served by the local fallback.",
	})
)
