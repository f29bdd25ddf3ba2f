package stats

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T, dir string, now time.Time) *Storage {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	storage, err := NewStorage(dir, log)
	require.NoError(t, err)
	storage.now = func() time.Time { return now }
	return storage
}

func TestStorage(t *testing.T) {
	tempDir := t.TempDir()
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	storage := newTestStorage(t, tempDir, now)

	t.Run("Record", func(t *testing.T) {
		storage.Record(Delta{RunsStarted: 1, PagesAnalyzed: 4, AICalls: 3, SuggestionCacheHits: 1, SuggestionCacheMiss: 3})
		storage.Record(Delta{RunsCompleted: 1, CreditsUsed: 3, CreditsRefunded: 1})

		stats := storage.GetCurrentStats()
		assert.Equal(t, 1, stats.RunsStarted)
		assert.Equal(t, 1, stats.RunsCompleted)
		assert.Equal(t, 4, stats.PagesAnalyzed)
		assert.Equal(t, 3, stats.CreditsUsed)
		assert.Equal(t, 1, stats.CreditsRefunded)
		assert.Equal(t, 25.0, stats.CacheHitRate())
		assert.Equal(t, now, stats.LastUpdated)
	})

	t.Run("Persistence", func(t *testing.T) {
		require.NoError(t, storage.Flush())

		reloaded := newTestStorage(t, tempDir, now)
		defer reloaded.Close()
		stats := reloaded.GetCurrentStats()
		assert.Equal(t, 4, stats.PagesAnalyzed)
		assert.Equal(t, []string{"2024-05"}, reloaded.GetAllMonths())
	})

	t.Run("Cleanup", func(t *testing.T) {
		storage.mutex.Lock()
		storage.stats["2024-04"] = &MonthlyStats{RunsStarted: 7}
		storage.stats["2024-02"] = &MonthlyStats{RunsStarted: 100}
		storage.stats["2023-11"] = &MonthlyStats{RunsStarted: 100}
		storage.mutex.Unlock()

		assert.Equal(t, 2, storage.Cleanup(2))
		assert.Equal(t, []string{"2024-05", "2024-04"}, storage.GetAllMonths())

		_, ok := storage.GetMonthlyStats("2024-02")
		assert.False(t, ok)
	})

	t.Run("FileSize", func(t *testing.T) {
		require.NoError(t, storage.Flush())
		info, err := os.Stat(filepath.Join(tempDir, "stats.json"))
		require.NoError(t, err)
		assert.Less(t, info.Size(), int64(1024))
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		before := storage.GetCurrentStats().AICalls

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					storage.Record(Delta{AICalls: 1})
					storage.GetCurrentStats()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, before+1000, storage.GetCurrentStats().AICalls)
	})

	t.Run("Close", func(t *testing.T) {
		require.NoError(t, storage.Close())
		require.NoError(t, storage.Close())
	})
}
