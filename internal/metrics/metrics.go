// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_transactions_total",
			Help: "Settlement attempts by transaction kind and outcome",
		},
		[]string{"kind", "status"},
	)

	ConfirmDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wallet_tx_confirm_duration_seconds",
			Help:    "Time from broadcast to confirmation",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 60, 90},
		},
		[]string{"kind"},
	)

	ChatEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_total",
			Help: "Inbound chat events by kind",
		},
		[]string{"kind"},
	)

	AgentRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_requests_total",
			Help: "Prompt requests by outcome",
		},
		[]string{"status"},
	)

	AgentRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_request_duration_seconds",
			Help:    "Duration of prompt requests",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"source"},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tool_calls_total",
			Help: "Tool invocations requested by the model",
		},
		[]string{"tool", "status"},
	)

	EventPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transaction_event_publish_errors_total",
			Help: "Total number of transaction event publish errors",
		},
	)
)
