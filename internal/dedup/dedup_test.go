package dedup

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinsangjang/internal/models"
)

func TestMarkSeenFirstSightingWins(t *testing.T) {
	s, err := NewSeenStore(time.Hour)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.MarkSeen(models.SourceUpbit, "100"))
	assert.False(t, s.MarkSeen(models.SourceUpbit, "100"))
	assert.True(t, s.Seen(models.SourceUpbit, "100"))
}

func TestMarkSeenScopedBySource(t *testing.T) {
	s, err := NewSeenStore(time.Hour)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.MarkSeen(models.SourceUpbit, "1"))
	assert.True(t, s.MarkSeen(models.SourceBithumb, "1"))
	assert.False(t, s.Seen(models.SourceBinance, "1"))
}

func TestMarkSeenConcurrent(t *testing.T) {
	s, err := NewSeenStore(time.Hour)
	require.NoError(t, err)
	defer s.Close()

	// 같은 ID를 동시에 마킹해도 과잉 방출이 없어야 한다 (최소 1회는 보장)
	var wg sync.WaitGroup
	firsts := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			firsts <- s.MarkSeen(models.SourceUpbit, "race")
		}()
	}
	wg.Wait()
	close(firsts)

	wins := 0
	for first := range firsts {
		if first {
			wins++
		}
	}
	assert.GreaterOrEqual(t, wins, 1)
	assert.False(t, s.MarkSeen(models.SourceUpbit, "race"))
}

func TestDefaultRetentionApplied(t *testing.T) {
	s, err := NewSeenStore(0)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, DefaultRetention, s.retention)
}

func TestStats(t *testing.T) {
	s, err := NewSeenStore(time.Hour)
	require.NoError(t, err)
	defer s.Close()

	s.MarkSeen(models.SourceUpbit, "1")
	stats := s.Stats()
	assert.Contains(t, stats, "keys_added")
	assert.Contains(t, stats, "hits")
}
