package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
)

type fakeRecorder struct {
	providerOps []string
	refreshes   []string
	rateWaits   int
	cacheHits   int
	cacheMisses int
}

func (r *fakeRecorder) RecordProviderOperation(_ context.Context, _, operation, _, status string, _ time.Duration) {
	r.providerOps = append(r.providerOps, operation+":"+status)
}
func (r *fakeRecorder) RecordTokenRefresh(_ context.Context, _, result string) {
	r.refreshes = append(r.refreshes, result)
}
func (r *fakeRecorder) RecordRateLimitWait(context.Context, string) { r.rateWaits++ }
func (r *fakeRecorder) RecordCacheHit(context.Context)              { r.cacheHits++ }
func (r *fakeRecorder) RecordCacheMiss(context.Context)             { r.cacheMisses++ }

func TestEngineRecordsOperationalMetrics(t *testing.T) {
	env := newTestEnv(t)
	recorder := &fakeRecorder{}
	env.engine.metrics = recorder
	env.engine.detector.metrics = recorder

	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	window := booking.TimeWindow{Start: day.Add(14 * time.Hour), End: day.Add(15 * time.Hour)}

	_, err := env.engine.CheckConflict(context.Background(), clientReq(), window)
	require.NoError(t, err)
	_, err = env.engine.CheckConflict(context.Background(), clientReq(), window)
	require.NoError(t, err)

	assert.Equal(t, 1, recorder.cacheMisses)
	assert.Equal(t, 1, recorder.cacheHits)
	assert.Contains(t, recorder.providerOps, "get_events:success")
}

func TestEngineRecordsRefusedRefresh(t *testing.T) {
	env := newTestEnv(t)
	recorder := &fakeRecorder{}
	env.engine.metrics = recorder

	conn := env.store.connections["conn-1"]
	conn.Credentials.ExpiresAt = env.now.Add(2 * time.Minute)
	env.adapter.refreshed = nil

	_, err := env.engine.CheckConnection(context.Background(), clientReq())
	require.Error(t, err)
	assert.Equal(t, []string{"refused"}, recorder.refreshes)
}
