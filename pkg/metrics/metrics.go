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

	// LLMRequestDuration tracks completion latency of the understanding capability.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM completion duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// ExtractionDuration tracks template extraction runs.
	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extraction_duration_seconds",
			Help:    "Template extraction duration",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"analyzer", "outcome"},
	)

	// ExtractedVariables tracks variables discovered per extraction.
	ExtractedVariables = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "extraction_variables",
			Help:    "Variables found per successful extraction",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80},
		},
	)

	// DocumentsUploaded tracks uploads by MIME type.
	DocumentsUploaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_uploaded_total",
			Help: "Total documents uploaded",
		},
		[]string{"mime_type"},
	)

	// TemplatesStored tracks the number of templates in the store.
	TemplatesStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "templates_stored",
			Help: "Number of templates currently stored",
		},
	)

	// TemplateOperations tracks template store operations.
	TemplateOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_operations_total",
			Help: "Template store operations",
		},
		[]string{"operation", "outcome"},
	)

	// ConversationsTotal tracks total conversations created.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
	)

	// ConversationsActive tracks conversations held in memory.
	ConversationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conversations_active",
			Help: "Conversations currently held in memory",
		},
	)

	// MessagesTotal tracks chat replies by type.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total chat replies",
		},
		[]string{"message_type"},
	)

	// SSEConnections tracks open history streams.
	SSEConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Open conversation history streams",
		},
	)

	// DraftsRendered tracks rendered drafts.
	DraftsRendered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drafts_rendered_total",
			Help: "Total drafts rendered",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMCall records metrics for a completion request.
func RecordLLMCall(model, status string, duration float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(model, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordExtraction records the outcome of an extraction run.
func RecordExtraction(analyzer, outcome string, duration float64, variables int) {
	ExtractionDuration.WithLabelValues(analyzer, outcome).Observe(duration)
	if outcome == "success" {
		ExtractedVariables.Observe(float64(variables))
	}
}

// RecordTemplateOperation records a template store operation.
func RecordTemplateOperation(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	TemplateOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordChatReply records one chat reply.
func RecordChatReply(messageType string) {
	MessagesTotal.WithLabelValues(messageType).Inc()
}
