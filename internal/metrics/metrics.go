// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router outcomes.
const (
	OutcomeExempted = "exempted"
	OutcomeInactive = "inactive"
	OutcomeMenu     = "menu"
	OutcomeFallback = "fallback"
	OutcomeLLM      = "llm"
	OutcomeHandoff  = "handoff"
	OutcomeError    = "error"
)

var (
	MessagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_messages_processed_total",
			Help: "Inbound messages handled by the router, by outcome.",
		},
		[]string{"outcome"},
	)

	OutboundSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_outbound_sends_total",
			Help: "Replies sent through the WhatsApp transport, by status.",
		},
		[]string{"status"},
	)

	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_llm_requests_total",
			Help: "Chat completion requests, by status.",
		},
		[]string{"status"},
	)

	SocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "assistant_socket_clients",
			Help: "Operator socket connections currently registered.",
		},
	)

	SocketDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_socket_dropped_total",
			Help: "Operator connections dropped because their send buffer was full.",
		},
	)

	PositionsPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_positions_pruned_total",
			Help: "Idle conversation positions reset to the root menu.",
		},
	)
)

func init() {
	prometheus.MustRegister(MessagesProcessed)
	prometheus.MustRegister(OutboundSends)
	prometheus.MustRegister(LLMRequests)
	prometheus.MustRegister(SocketClients)
	prometheus.MustRegister(SocketDropped)
	prometheus.MustRegister(PositionsPruned)
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
