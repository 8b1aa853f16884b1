package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T, detailedLabels bool) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"), detailedLabels)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func metricNames(rm metricdata.ResourceMetrics) map[string]bool {
	names := make(map[string]bool)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}
	return names
}

func TestRecordToolInvocation(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	ctx := context.Background()

	m.RecordToolInvocation(ctx, "booking_check_conflict", StatusSuccess, 50*time.Millisecond)
	m.RecordToolInvocation(ctx, "booking_create_event", StatusError, 120*time.Millisecond)

	names := metricNames(collect(t, reader))
	assert.True(t, names["mcp_tool_invocations_total"])
	assert.True(t, names["mcp_tool_duration_seconds"])
}

func TestRecordProviderOperationAndRefresh(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	ctx := context.Background()

	m.RecordProviderOperation(ctx, ProviderGoogle, "get_events", "conn-1", StatusSuccess, 80*time.Millisecond)
	m.RecordTokenRefresh(ctx, ProviderMicrosoft, RefreshResultSuccess)
	m.RecordRateLimitWait(ctx, ProviderGoogle)
	m.RecordCacheHit(ctx)
	m.RecordCacheMiss(ctx)

	names := metricNames(collect(t, reader))
	assert.True(t, names["calendar_provider_operations_total"])
	assert.True(t, names["oauth_token_refresh_total"])
	assert.True(t, names["rate_limit_waits_total"])
	assert.True(t, names["busy_cache_hits_total"])
	assert.True(t, names["busy_cache_misses_total"])
}

func TestZeroValueMetricsAreNoops(t *testing.T) {
	var m Metrics
	ctx := context.Background()

	// Must not panic when instrumentation was never initialized.
	m.RecordToolInvocation(ctx, "booking_find_slots", StatusSuccess, time.Millisecond)
	m.RecordProviderOperation(ctx, ProviderGoogle, "create", "conn-1", StatusSuccess, time.Millisecond)
	m.RecordTokenRefresh(ctx, ProviderGoogle, RefreshResultFailure)
	m.RecordRateLimitWait(ctx, ProviderGoogle)
	m.RecordCacheHit(ctx)
	m.RecordCacheMiss(ctx)
}

func TestDefaultConfigValidates(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())
	assert.Equal(t, ExporterPrometheus, config.MetricsExporter)
	assert.Equal(t, "/metrics", config.PrometheusEndpoint)

	config.MetricsExporter = "graphite"
	assert.Error(t, config.Validate())
}

func TestDisabledProviderIsNoop(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Metrics())
	require.NoError(t, p.Shutdown(context.Background()))
}
