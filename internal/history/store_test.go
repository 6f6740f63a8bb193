package history

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diarynlp/internal/domain"
)

func TestRunningMeanInvariant(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	durations := []int{30, 60, 90, 45}
	sum := 0
	for _, d := range durations {
		require.NoError(t, store.RecordAction(ctx, 1, "тренировка", d))
		sum += d
	}

	avg, ok := store.GetAverageTime(ctx, 1, "тренировка")
	require.True(t, ok)
	assert.Equal(t, sum/len(durations), avg)

	stats, err := store.UserStats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalTemplates)
	assert.Equal(t, len(durations), stats.TotalActions)
}

func TestUserIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.RecordAction(ctx, 1, "читал книгу", 120))

	_, ok := store.GetAverageTime(ctx, 2, "читал книгу")
	assert.False(t, ok)
}

func TestGlobalTemplateFallback(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.RecordAction(ctx, domain.GlobalUserID, "приготовил ужин", 40))

	minutes, ok := store.GetAverageTime(ctx, 42, "приготовил ужин")
	require.True(t, ok)
	assert.Equal(t, 40, minutes)
}

func TestUserSpecificRowBeatsGlobal(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.RecordAction(ctx, domain.GlobalUserID, "зарядка", 10))
	require.NoError(t, store.RecordAction(ctx, 7, "зарядка", 25))

	minutes, ok := store.GetAverageTime(ctx, 7, "зарядка")
	require.True(t, ok)
	assert.Equal(t, 25, minutes)
}

func TestConcurrentRecordActionSerializesPerKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = store.RecordAction(ctx, 9, "бег", 60)
		}()
	}
	wg.Wait()

	stats, err := store.UserStats(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, n, stats.TotalActions)

	minutes, ok := store.GetAverageTime(ctx, 9, "бег")
	require.True(t, ok)
	assert.Equal(t, 60, minutes)
}
