package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"labagent/internal/infra/filestore"
)

// MetricsCollector records per-session counters. A zero or nil collector
// drops every measurement.
type MetricsCollector struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	turns        metric.Int64Counter
	tokensInput  metric.Int64Counter
	tokensOutput metric.Int64Counter
	llmLatency   metric.Float64Histogram
	apiErrors    metric.Int64Counter

	toolCalls    metric.Int64Counter
	toolDuration metric.Float64Histogram

	sessions        metric.Int64Counter
	sessionDuration metric.Float64Histogram

	workspace *WorkspaceMetrics
}

// MetricsConfig configures the metrics collector
type MetricsConfig struct {
	Enabled bool
	// Registry receives every metric; a fresh one is created when nil.
	Registry *prometheus.Registry
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("labagent")

	m := &MetricsCollector{registry: registry, provider: provider}

	if m.turns, err = meter.Int64Counter("labagent.turns",
		metric.WithDescription("Reasoning-service turns taken"),
		metric.WithUnit("{turn}")); err != nil {
		return nil, fmt.Errorf("failed to create turns counter: %w", err)
	}
	if m.tokensInput, err = meter.Int64Counter("labagent.llm.tokens.input",
		metric.WithDescription("Input tokens reported by the reasoning service"),
		metric.WithUnit("{token}")); err != nil {
		return nil, fmt.Errorf("failed to create tokens_input counter: %w", err)
	}
	if m.tokensOutput, err = meter.Int64Counter("labagent.llm.tokens.output",
		metric.WithDescription("Output tokens reported by the reasoning service"),
		metric.WithUnit("{token}")); err != nil {
		return nil, fmt.Errorf("failed to create tokens_output counter: %w", err)
	}
	if m.llmLatency, err = meter.Float64Histogram("labagent.llm.latency",
		metric.WithDescription("Reasoning-service request latency in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create llm_latency histogram: %w", err)
	}
	if m.apiErrors, err = meter.Int64Counter("labagent.llm.errors",
		metric.WithDescription("Reasoning-service failures by kind"),
		metric.WithUnit("{error}")); err != nil {
		return nil, fmt.Errorf("failed to create api_errors counter: %w", err)
	}
	if m.toolCalls, err = meter.Int64Counter("labagent.tool.calls",
		metric.WithDescription("Tool invocations by tool and outcome"),
		metric.WithUnit("{call}")); err != nil {
		return nil, fmt.Errorf("failed to create tool_calls counter: %w", err)
	}
	if m.toolDuration, err = meter.Float64Histogram("labagent.tool.duration",
		metric.WithDescription("Tool execution duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create tool_duration histogram: %w", err)
	}
	if m.sessions, err = meter.Int64Counter("labagent.sessions",
		metric.WithDescription("Finished sessions by termination reason"),
		metric.WithUnit("{session}")); err != nil {
		return nil, fmt.Errorf("failed to create sessions counter: %w", err)
	}
	if m.sessionDuration, err = meter.Float64Histogram("labagent.session.duration",
		metric.WithDescription("Session wall-clock duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create session_duration histogram: %w", err)
	}

	m.workspace = NewWorkspaceMetrics(registry)
	return m, nil
}

// Registry exposes the backing registry, nil when disabled.
func (m *MetricsCollector) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Workspace returns the snapshot/diff gauges (nil-safe).
func (m *MetricsCollector) Workspace() *WorkspaceMetrics {
	if m == nil {
		return nil
	}
	return m.workspace
}

// WriteTextfile writes every metric in the Prometheus text format, for the
// node-exporter textfile collector. It is a no-op when metrics are disabled.
func (m *MetricsCollector) WriteTextfile(path string) error {
	if m == nil || m.registry == nil || path == "" {
		return nil
	}
	if err := filestore.EnsureParentDir(path); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// Shutdown flushes and stops the meter provider.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// RecordTurn records one reasoning-service round trip.
func (m *MetricsCollector) RecordTurn(ctx context.Context, model string, latency time.Duration, inputTokens, outputTokens int) {
	if m == nil || m.turns == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.turns.Add(ctx, 1, attrs)
	m.tokensInput.Add(ctx, int64(inputTokens), attrs)
	m.tokensOutput.Add(ctx, int64(outputTokens), attrs)
	m.llmLatency.Record(ctx, latency.Seconds(), attrs)
}

// RecordAPIError records a failed reasoning-service call.
func (m *MetricsCollector) RecordAPIError(ctx context.Context, kind string) {
	if m == nil || m.apiErrors == nil {
		return
	}
	m.apiErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordToolExecution records a tool execution
func (m *MetricsCollector) RecordToolExecution(ctx context.Context, toolName string, status string, duration time.Duration) {
	if m == nil || m.toolCalls == nil {
		return
	}
	m.toolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool_name", toolName),
		attribute.String("status", status),
	))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("tool_name", toolName)))
}

// RecordSession records a finished session.
func (m *MetricsCollector) RecordSession(ctx context.Context, termination string, duration time.Duration) {
	if m == nil || m.sessions == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("termination", termination))
	m.sessions.Add(ctx, 1, attrs)
	m.sessionDuration.Record(ctx, duration.Seconds(), attrs)
}
