package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	attrStatus     = "status"
	attrOperation  = "operation"
	attrProvider   = "provider"
	attrResult     = "result"
	attrTool       = "tool"
	attrConnection = "connection_id"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// MCP tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// Provider API metrics
	providerOperationsTotal   metric.Int64Counter
	providerOperationDuration metric.Float64Histogram

	// Token refresh metrics
	tokenRefreshTotal metric.Int64Counter

	// Rate limiter metrics
	rateLimitWaitsTotal metric.Int64Counter

	// Busy-period cache metrics
	cacheHitsTotal   metric.Int64Counter
	cacheMissesTotal metric.Int64Counter

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	m.providerOperationsTotal, err = meter.Int64Counter(
		"calendar_provider_operations_total",
		metric.WithDescription("Total number of calendar provider API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_provider_operations_total counter: %w", err)
	}

	m.providerOperationDuration, err = meter.Float64Histogram(
		"calendar_provider_operation_duration_seconds",
		metric.WithDescription("Calendar provider API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_provider_operation_duration_seconds histogram: %w", err)
	}

	m.tokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	m.rateLimitWaitsTotal, err = meter.Int64Counter(
		"rate_limit_waits_total",
		metric.WithDescription("Total number of requests delayed by the per-connection rate limiter"),
		metric.WithUnit("{wait}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit_waits_total counter: %w", err)
	}

	m.cacheHitsTotal, err = meter.Int64Counter(
		"busy_cache_hits_total",
		metric.WithDescription("Total number of busy-period cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create busy_cache_hits_total counter: %w", err)
	}

	m.cacheMissesTotal, err = meter.Int64Counter(
		"busy_cache_misses_total",
		metric.WithDescription("Total number of busy-period cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create busy_cache_misses_total counter: %w", err)
	}

	return m, nil
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
//
// Parameters:
//   - toolName: Name of the MCP tool (e.g., "booking_check_conflict")
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the tool execution
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordProviderOperation records a calendar provider API operation.
//
// Parameters:
//   - provider: Provider family ("google" or "microsoft")
//   - operation: Operation type (get_events, create, update, delete, check)
//   - connectionID: Connection the call was made for (only labeled when
//     detailedLabels is enabled)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordProviderOperation(ctx context.Context, provider, operation, connectionID, status string, duration time.Duration) {
	if m.providerOperationsTotal == nil || m.providerOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrProvider, provider),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && connectionID != "" {
		attrs = append(attrs, attribute.String(attrConnection, connectionID))
	}

	m.providerOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.providerOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordTokenRefresh records an OAuth token refresh attempt with result.
// Result should be one of: "success", "failure", "refused"
func (m *Metrics) RecordTokenRefresh(ctx context.Context, provider, result string) {
	if m.tokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrProvider, provider),
		attribute.String(attrResult, result),
	}

	m.tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitWait records a request that had to wait for the
// per-connection rate limiter.
func (m *Metrics) RecordRateLimitWait(ctx context.Context, provider string) {
	if m.rateLimitWaitsTotal == nil {
		return // Instrumentation not initialized
	}

	m.rateLimitWaitsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrProvider, provider),
	))
}

// RecordCacheHit records a busy-period cache hit.
func (m *Metrics) RecordCacheHit(ctx context.Context) {
	if m.cacheHitsTotal == nil {
		return // Instrumentation not initialized
	}
	m.cacheHitsTotal.Add(ctx, 1)
}

// RecordCacheMiss records a busy-period cache miss.
func (m *Metrics) RecordCacheMiss(ctx context.Context) {
	if m.cacheMissesTotal == nil {
		return // Instrumentation not initialized
	}
	m.cacheMissesTotal.Add(ctx, 1)
}
