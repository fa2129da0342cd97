package policy

import (
	"fmt"
	"sync"
	"time"

	"coinsangjang/internal/logging"
	"coinsangjang/internal/models"
)

// Store holds the single active trading policy per process. Reads return an
// atomic snapshot copy so a job never observes a half-applied update.
// Intentionally not multi-tenant.
type Store struct {
	mu        sync.RWMutex
	active    *models.TradingPolicy
	updatedAt time.Time
	defaults  models.TradingPolicy
	log       *logging.Logger
}

// NewStore creates a policy store. The defaults become the lazily created
// active policy when no update has arrived yet.
func NewStore(defaults models.TradingPolicy, log *logging.Logger) *Store {
	return &Store{defaults: defaults, log: log}
}

// Active returns a snapshot copy of the current policy, lazily creating the
// default one on first read.
func (s *Store) Active() *models.TradingPolicy {
	s.mu.RLock()
	if s.active != nil {
		p := s.active.Clone()
		s.mu.RUnlock()
		return p
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		def := s.defaults.Clone()
		s.active = def
		s.updatedAt = time.Now()
		s.log.Info("[POLICY] 기본 정책 생성: venues=%v, leverage=%d, autoTrade=%v",
			def.Venues, def.Leverage, def.AutoTrade)
	}
	return s.active.Clone()
}

// Update validates and atomically replaces the active policy wholesale.
func (s *Store) Update(p *models.TradingPolicy) (*models.TradingPolicy, error) {
	if p == nil {
		return nil, fmt.Errorf("policy is required")
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	snapshot := p.Clone()
	s.mu.Lock()
	s.active = snapshot
	s.updatedAt = time.Now()
	s.mu.Unlock()

	s.log.Info("[POLICY] 정책 갱신: venues=%v, leverage=%d, notional=%.2f, mode=%s, autoTrade=%v",
		snapshot.Venues, snapshot.Leverage, snapshot.NotionalUSDT, snapshot.NetworkMode, snapshot.AutoTrade)
	return snapshot.Clone(), nil
}

// UpdatedAt reports when the active policy last changed.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
