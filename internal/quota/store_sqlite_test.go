package quota

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "counters.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteRecordAndCount(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)
	at := time.Date(2026, 8, 28, 12, 30, 15, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordCall(ctx, "u1", KindDailyNotifications, at))
	}
	require.NoError(t, store.RecordCall(ctx, "u2", KindDailyNotifications, at))
	require.NoError(t, store.RecordCall(ctx, "u1", KindDailyAPICalls, at))

	count, err := store.CountSince(ctx, "u1", KindDailyNotifications, at.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Other users and kinds are separate counters.
	count, err = store.CountSince(ctx, "u2", KindDailyNotifications, at.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Window boundary excludes older buckets.
	count, err = store.CountSince(ctx, "u1", KindDailyNotifications, at.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSQLiteUpsertIsAtomicUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)
	at := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	const workers = 8
	const perWorker = 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				assert.NoError(t, store.RecordCall(ctx, "u1", KindHourlyAPICalls, at))
			}
		}()
	}
	wg.Wait()

	count, err := store.CountSince(ctx, "u1", KindHourlyAPICalls, at.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, workers*perWorker, count)
}

func TestSQLitePrune(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)
	old := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordCall(ctx, "u1", KindDailyAPICalls, old))
	require.NoError(t, store.RecordCall(ctx, "u1", KindDailyAPICalls, recent))
	require.NoError(t, store.Prune(ctx, recent.Add(-time.Hour)))

	count, err := store.CountSince(ctx, "u1", KindDailyAPICalls, old.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
