package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// InitMetrics builds the otel meter backed by the default Prometheus
// registry. The /metrics endpoint is served by promhttp in the server.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	meter := meterProvider.Meter("teamh")

	m := &PrometheusMetrics{}

	if m.llmDuration, err = meter.Float64Histogram(
		"teamh_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}

	if m.llmInputTokens, err = meter.Int64Counter(
		"teamh_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to the LLM"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}

	if m.llmOutputTokens, err = meter.Int64Counter(
		"teamh_llm_tokens_output_total",
		metric.WithDescription("Total output tokens from the LLM"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}

	if m.llmErrorsTotal, err = meter.Int64Counter(
		"teamh_llm_errors_total",
		metric.WithDescription("Total LLM errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	if m.toolDuration, err = meter.Float64Histogram(
		"teamh_tool_execution_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}

	if m.toolCallsTotal, err = meter.Int64Counter(
		"teamh_tool_calls_total",
		metric.WithDescription("Total tool calls"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}

	if m.toolErrorsTotal, err = meter.Int64Counter(
		"teamh_tool_errors_total",
		metric.WithDescription("Total tool errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool errors counter: %w", err)
	}

	if m.nodeDuration, err = meter.Float64Histogram(
		"teamh_node_duration_seconds",
		metric.WithDescription("Graph node execution duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create node duration histogram: %w", err)
	}

	if m.nodeTotal, err = meter.Int64Counter(
		"teamh_node_transitions_total",
		metric.WithDescription("Total graph node transitions"),
	); err != nil {
		return nil, fmt.Errorf("failed to create node transitions counter: %w", err)
	}

	if m.nodeErrorsTotal, err = meter.Int64Counter(
		"teamh_node_errors_total",
		metric.WithDescription("Total graph node errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create node errors counter: %w", err)
	}

	if m.checkpointDuration, err = meter.Float64Histogram(
		"teamh_checkpoint_save_duration_seconds",
		metric.WithDescription("Checkpoint save duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint duration histogram: %w", err)
	}

	if m.checkpointErrors, err = meter.Int64Counter(
		"teamh_checkpoint_errors_total",
		metric.WithDescription("Total checkpoint save errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint errors counter: %w", err)
	}

	if m.httpDuration, err = meter.Float64Histogram(
		"teamh_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	if m.httpTotal, err = meter.Int64Counter(
		"teamh_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	return m, nil
}
