package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter    metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	EventsReceived    metric.Int64Counter
	PipelineRuns      metric.Int64Counter
	PipelineDuration  metric.Float64Histogram
	LLMCalls          metric.Int64Counter
	RetrievalDuration metric.Float64Histogram
	CircuitBreaker    metric.Int64Counter
}

// InitMetrics registers instruments against the global meter provider.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(ServiceName)

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	eventsReceived, err := meter.Int64Counter(
		"events.received.total",
		metric.WithDescription("Webhook events by outcome (accepted, ignored, rejected, dropped)"),
	)
	if err != nil {
		return nil, err
	}

	pipelineRuns, err := meter.Int64Counter(
		"answer.pipeline.runs",
		metric.WithDescription("Answer pipeline runs by outcome"),
	)
	if err != nil {
		return nil, err
	}

	pipelineDuration, err := meter.Float64Histogram(
		"answer.pipeline.duration",
		metric.WithDescription("Answer pipeline duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	llmCalls, err := meter.Int64Counter(
		"llm.calls.total",
		metric.WithDescription("LLM requests by provider, stage and outcome"),
	)
	if err != nil {
		return nil, err
	}

	retrievalDuration, err := meter.Float64Histogram(
		"search.retrieval.duration",
		metric.WithDescription("Hybrid retrieval duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreaker, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:    requestCounter,
		RequestDuration:   requestDuration,
		EventsReceived:    eventsReceived,
		PipelineRuns:      pipelineRuns,
		PipelineDuration:  pipelineDuration,
		LLMCalls:          llmCalls,
		RetrievalDuration: retrievalDuration,
		CircuitBreaker:    circuitBreaker,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	)
	m.RequestCounter.Add(context.Background(), 1, attrs)
	m.RequestDuration.Record(context.Background(), duration, attrs)
}

func (m *Metrics) RecordEvent(outcome string) {
	if m == nil {
		return
	}
	m.EventsReceived.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordPipeline(mode, outcome string, duration float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("pipeline.mode", mode),
		attribute.String("pipeline.outcome", outcome),
	)
	m.PipelineRuns.Add(context.Background(), 1, attrs)
	m.PipelineDuration.Record(context.Background(), duration, attrs)
}

func (m *Metrics) RecordLLMCall(provider, stage string, success bool) {
	if m == nil {
		return
	}
	m.LLMCalls.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.stage", stage),
		attribute.Bool("llm.success", success),
	))
}

func (m *Metrics) RecordRetrieval(duration float64, success bool) {
	if m == nil {
		return
	}
	m.RetrievalDuration.Record(context.Background(), duration, metric.WithAttributes(
		attribute.Bool("search.success", success),
	))
}

func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	m.CircuitBreaker.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("state", state),
	))
}
