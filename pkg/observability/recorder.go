package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

type Metrics interface {
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordNodeTransition(ctx context.Context, node string, duration time.Duration, err error)
	RecordCheckpointSave(ctx context.Context, backend string, duration time.Duration, err error)
	RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration, respSize int)
}

type PrometheusMetrics struct {
	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrorsTotal  metric.Int64Counter

	toolDuration    metric.Float64Histogram
	toolCallsTotal  metric.Int64Counter
	toolErrorsTotal metric.Int64Counter

	nodeDuration    metric.Float64Histogram
	nodeTotal       metric.Int64Counter
	nodeErrorsTotal metric.Int64Counter

	checkpointDuration metric.Float64Histogram
	checkpointErrors   metric.Int64Counter

	httpDuration metric.Float64Histogram
	httpTotal    metric.Int64Counter
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("model", model),
	}

	m.llmDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.llmInputTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(attrs...))
	m.llmOutputTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(attrs...))

	if err != nil && m.llmErrorsTotal != nil {
		m.llmErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool", tool),
	}

	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.toolCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil && m.toolErrorsTotal != nil {
		m.toolErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordNodeTransition(ctx context.Context, node string, duration time.Duration, err error) {
	if m == nil || m.nodeDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("node", node),
	}

	m.nodeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.nodeTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil && m.nodeErrorsTotal != nil {
		m.nodeErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordCheckpointSave(ctx context.Context, backend string, duration time.Duration, err error) {
	if m == nil || m.checkpointDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("backend", backend),
	}

	m.checkpointDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil && m.checkpointErrors != nil {
		m.checkpointErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration, respSize int) {
	if m == nil || m.httpDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", statusCode),
	}

	m.httpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.httpTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
