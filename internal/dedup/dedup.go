package dedup

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"coinsangjang/internal/models"
)

// DefaultRetention bounds how long a notice id stays marked as seen.
// Announcement boards never resurface notices this old, so entries may be
// pruned afterwards.
const DefaultRetention = 30 * 24 * time.Hour

// SeenStore는 소스별로 이미 처리한 공지 ID를 기억하는 저장소.
// Ristretto 캐시 기반이라 동시 삽입에 안전하고 TTL로 자동 정리된다.
// "seen at least once" 의미만 보장하면 되므로 캐시의 lossy 특성은 허용된다.
type SeenStore struct {
	cache     *ristretto.Cache
	retention time.Duration
}

// NewSeenStore creates the seen-notice store.
func NewSeenStore(retention time.Duration) (*SeenStore, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100000,  // ~10x expected live notice ids
		MaxCost:     1 << 22, // 4MB of keys is far beyond a month of notices
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("seen store cache init failed: %w", err)
	}
	return &SeenStore{cache: cache, retention: retention}, nil
}

func key(source models.Source, noticeID string) string {
	return string(source) + ":" + noticeID
}

// MarkSeen records a notice id for its source. Returns true when the id was
// not seen before (i.e. the caller owns first processing).
func (s *SeenStore) MarkSeen(source models.Source, noticeID string) bool {
	k := key(source, noticeID)
	if _, found := s.cache.Get(k); found {
		return false
	}
	s.cache.SetWithTTL(k, struct{}{}, int64(len(k)), s.retention)
	// Ristretto buffers writes; flush so a concurrent or immediate re-check
	// observes the entry.
	s.cache.Wait()
	return true
}

// Seen reports whether a notice id was already recorded.
func (s *SeenStore) Seen(source models.Source, noticeID string) bool {
	_, found := s.cache.Get(key(source, noticeID))
	return found
}

// Stats exposes cache metrics for the stats endpoint.
func (s *SeenStore) Stats() map[string]interface{} {
	m := s.cache.Metrics
	return map[string]interface{}{
		"keys_added":   m.KeysAdded(),
		"keys_evicted": m.KeysEvicted(),
		"hits":         m.Hits(),
		"misses":       m.Misses(),
	}
}

// Close releases the underlying cache.
func (s *SeenStore) Close() {
	s.cache.Close()
}
