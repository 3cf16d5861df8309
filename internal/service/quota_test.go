package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmate/shelfmate-server/internal/store/sqlite"
)

func setupTestQuota(t *testing.T, cfg QuotaConfig) (*QuotaService, *sqlite.Store, *time.Time) {
	t.Helper()
	s := newTestStore(t)
	svc := NewQuotaService(s, cfg, testLogger())

	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, s, &now
}

func TestQuotaService_LimitReached(t *testing.T) {
	svc, _, _ := setupTestQuota(t, QuotaConfig{Enabled: true, MaxPerDay: 3})
	ctx := context.Background()

	remaining, err := svc.Remaining(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining, "no counter yet means the full allowance")

	for range 3 {
		ok, err := svc.CanRequest(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, svc.Record(ctx, "user-1"))
	}

	ok, err := svc.CanRequest(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err = svc.Remaining(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	// A fourth record still counts but never goes below zero.
	require.NoError(t, svc.Record(ctx, "user-1"))
	remaining, err = svc.Remaining(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	// Other users are unaffected.
	ok, err = svc.CanRequest(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQuotaService_Disabled(t *testing.T) {
	svc, s, _ := setupTestQuota(t, QuotaConfig{Enabled: false, MaxPerDay: 3})
	ctx := context.Background()

	// Counters written while enforcement was on are ignored.
	for range 5 {
		_, err := s.IncrementQuotaCounter(ctx, "user-1", "2026-10-14", 3)
		require.NoError(t, err)
	}

	ok, err := svc.CanRequest(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)

	remaining, err := svc.Remaining(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, QuotaUnlimited, remaining)

	// Record is a no-op.
	require.NoError(t, svc.Record(ctx, "user-2"))
	_, err = s.GetQuotaCounter(ctx, "user-2", "2026-10-14")
	assert.Error(t, err)

	status, err := svc.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, status.Enforced)
	assert.Equal(t, QuotaUnlimited, status.Remaining)
}

func TestQuotaService_NewDayResets(t *testing.T) {
	svc, _, now := setupTestQuota(t, QuotaConfig{Enabled: true, MaxPerDay: 1})
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, "user-1"))
	ok, err := svc.CanRequest(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	*now = now.Add(24 * time.Hour)

	ok, err = svc.CanRequest(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)

	status, err := svc.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-15", status.Day)
	assert.Equal(t, 1, status.Remaining)
}

func TestQuotaService_ConfiguredLimitWinsMidDay(t *testing.T) {
	svc, s, now := setupTestQuota(t, QuotaConfig{Enabled: true, MaxPerDay: 2})
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, "user-1"))
	require.NoError(t, svc.Record(ctx, "user-1"))

	restart := func(max int) *QuotaService {
		next := NewQuotaService(s, QuotaConfig{Enabled: true, MaxPerDay: max}, testLogger())
		next.now = func() time.Time { return *now }
		return next
	}

	raised := restart(5)
	ok, err := raised.CanRequest(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)
	status, err := raised.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, status.MaxPerDay)
	assert.Equal(t, 3, status.Remaining)

	lowered := restart(1)
	ok, err = lowered.CanRequest(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)
	status, err = lowered.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, status.MaxPerDay)
	assert.Equal(t, 0, status.Remaining)
}

func TestQuotaService_ConcurrentRecord(t *testing.T) {
	svc, s, _ := setupTestQuota(t, QuotaConfig{Enabled: true, MaxPerDay: 100})
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			assert.NoError(t, svc.Record(ctx, "user-1"))
		})
	}
	wg.Wait()

	q, err := s.GetQuotaCounter(ctx, "user-1", "2026-10-14")
	require.NoError(t, err)
	assert.Equal(t, 10, q.Count)
}

func TestQuotaService_Sweep(t *testing.T) {
	svc, s, _ := setupTestQuota(t, QuotaConfig{Enabled: true, MaxPerDay: 3})
	ctx := context.Background()

	for _, day := range []string{"2026-10-01", "2026-10-06", "2026-10-07", "2026-10-14"} {
		_, err := s.IncrementQuotaCounter(ctx, "user-1", day, 3)
		require.NoError(t, err)
	}

	cutoff := time.Date(2026, 10, 7, 15, 30, 0, 0, time.UTC)
	deleted, err := svc.Sweep(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = s.GetQuotaCounter(ctx, "user-1", "2026-10-07")
	assert.NoError(t, err, "the cutoff day itself is kept")
}
