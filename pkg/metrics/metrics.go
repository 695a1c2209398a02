// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LLMCallDuration tracks provider call duration per operation.
	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_call_duration_seconds",
			Help:    "Completion, transcription and speech call duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "operation", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// PipelineRunsTotal tracks chat pipeline runs by outcome.
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_pipeline_runs_total",
			Help: "Chat pipeline runs",
		},
		[]string{"pipeline", "status"},
	)

	// PipelinesInFlight tracks pipelines waiting on a remote call.
	PipelinesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_pipelines_in_flight",
			Help: "Number of chat pipelines currently running",
		},
	)

	// MessagesTotal tracks messages appended to the preview conversation.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages appended",
		},
		[]string{"kind", "sender"},
	)

	// StreamConnectionsActive tracks active SSE and WebSocket connections.
	StreamConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_connections_active",
			Help: "Number of active streaming connections",
		},
		[]string{"transport"},
	)

	// EventsPublishedTotal tracks conversation events sent to NATS.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_events_published_total",
			Help: "Conversation events published to NATS",
		},
		[]string{"type", "status"},
	)

	// ConfigOperationsTotal tracks configuration store operations.
	ConfigOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "config_operations_total",
			Help: "Configuration load and save operations",
		},
		[]string{"operation", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMCall records metrics for one provider call.
func RecordLLMCall(provider, operation, status string, duration float64) {
	LLMCallDuration.WithLabelValues(provider, operation, status).Observe(duration)
}

// RecordTokens records token usage of a completion.
func RecordTokens(model string, tokensIn, tokensOut int) {
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordPipeline records the outcome of a chat pipeline.
func RecordPipeline(pipeline, status string) {
	PipelineRunsTotal.WithLabelValues(pipeline, status).Inc()
}

// RecordMessage counts an appended message.
func RecordMessage(kind, sender string) {
	MessagesTotal.WithLabelValues(kind, sender).Inc()
}

// RecordConfigOperation counts a configuration store operation.
func RecordConfigOperation(operation, status string) {
	ConfigOperationsTotal.WithLabelValues(operation, status).Inc()
}

// IncrementStreamConnections increments the active connection count for a transport.
func IncrementStreamConnections(transport string) {
	StreamConnectionsActive.WithLabelValues(transport).Inc()
}

// DecrementStreamConnections decrements the active connection count for a transport.
func DecrementStreamConnections(transport string) {
	StreamConnectionsActive.WithLabelValues(transport).Dec()
}
