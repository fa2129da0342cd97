package events

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"coinsangjang/internal/logging"
	"coinsangjang/internal/models"
	"coinsangjang/internal/symbol"
)

// enrichTimeout bounds the best-effort markets snapshot lookup.
const enrichTimeout = 15 * time.Second

// EnrichFunc derives a venue availability snapshot for a symbol. Injected by
// the bootstrap wiring (readiness diagnostics); may be nil.
type EnrichFunc func(ctx context.Context, pair string) ([]models.VenueAvailability, error)

// Archive receives a copy of every persisted event for durable storage.
// Optional; a nil archive disables it.
type Archive interface {
	InsertListingEvent(event *models.ListingEvent) error
}

// Store is the append-only listing event log with live fan-out.
// Events are never deleted; only MarketsSnapshot enrichment and the Processed
// flag mutate an existing record.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*models.ListingEvent
	ordered []*models.ListingEvent // insertion order

	broadcaster *Broadcaster
	enrich      EnrichFunc
	archive     Archive
	log         *logging.Logger

	wg sync.WaitGroup
}

// NewStore creates the event store. enrich and archive may be nil.
func NewStore(enrich EnrichFunc, archive Archive, log *logging.Logger) *Store {
	return &Store{
		byID:        make(map[string]*models.ListingEvent),
		ordered:     make([]*models.ListingEvent, 0, 128),
		broadcaster: NewBroadcaster(),
		enrich:      enrich,
		archive:     archive,
		log:         log,
	}
}

// Record persists a listing event and broadcasts it. The symbol is normalized
// when not already canonical. Re-recording an existing id is a no-op returning
// the stored event. Enrichment runs asynchronously and is best-effort: its
// failure leaves the event valid without a snapshot.
func (s *Store) Record(event models.ListingEvent) (*models.ListingEvent, error) {
	if event.ID == "" {
		return nil, fmt.Errorf("listing event requires an id")
	}
	if event.Symbol == "" {
		pair, err := symbol.Normalize(event.BaseSymbol)
		if err != nil {
			return nil, fmt.Errorf("cannot normalize symbol for %s: %w", event.ID, err)
		}
		event.Symbol = pair
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}
	if event.AnnouncedAt.IsZero() {
		event.AnnouncedAt = event.ReceivedAt
	}

	s.mu.Lock()
	if existing, ok := s.byID[event.ID]; ok {
		s.mu.Unlock()
		s.log.Debug("[EVENTS] 중복 이벤트 무시: %s", event.ID)
		return existing, nil
	}
	stored := event
	s.byID[event.ID] = &stored
	s.ordered = append(s.ordered, &stored)
	s.mu.Unlock()

	s.log.Info("[EVENTS] 상장 이벤트 저장: %s (%s → %s)", stored.ID, stored.BaseSymbol, stored.Symbol)

	if s.archive != nil {
		if err := s.archive.InsertListingEvent(&stored); err != nil {
			s.log.Warn("[EVENTS] 아카이브 저장 실패 (%s): %v", stored.ID, err)
		}
	}

	s.broadcaster.Publish(stored)

	if s.enrich != nil {
		s.wg.Add(1)
		go s.enrichAsync(stored.ID, stored.Symbol)
	}

	return &stored, nil
}

// enrichAsync attaches a venue availability snapshot after the write.
func (s *Store) enrichAsync(id, pair string) {
	defer s.wg.Done()
	defer logging.RecoverPanic("events.enrich")

	ctx, cancel := context.WithTimeout(context.Background(), enrichTimeout)
	defer cancel()

	snapshot, err := s.enrich(ctx, pair)
	if err != nil {
		s.log.Warn("[EVENTS] 마켓 스냅샷 조회 실패 (%s): %v", id, err)
		return
	}

	s.mu.Lock()
	if ev, ok := s.byID[id]; ok {
		ev.MarketsSnapshot = snapshot
	}
	s.mu.Unlock()
}

// MarkProcessed flags an event as consumed by the orchestrator.
func (s *Store) MarkProcessed(id string) {
	s.mu.Lock()
	if ev, ok := s.byID[id]; ok {
		ev.Processed = true
	}
	s.mu.Unlock()
}

// Get returns a copy of one event by id.
func (s *Store) Get(id string) (models.ListingEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ev, ok := s.byID[id]; ok {
		return *ev, true
	}
	return models.ListingEvent{}, false
}

// FindRecent returns up to limit events ordered by announcement time, newest
// first.
func (s *Store) FindRecent(limit int) []models.ListingEvent {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	all := make([]models.ListingEvent, 0, len(s.ordered))
	for _, ev := range s.ordered {
		all = append(all, *ev)
	}
	s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].AnnouncedAt.After(all[j].AnnouncedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// Stream subscribes to the live event feed.
func (s *Store) Stream() (<-chan models.ListingEvent, func()) {
	return s.broadcaster.Subscribe()
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ordered)
}

// Close waits for in-flight enrichment and shuts down the broadcaster.
func (s *Store) Close() {
	s.wg.Wait()
	s.broadcaster.Close()
}
