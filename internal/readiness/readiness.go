package readiness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coinsangjang/internal/exchange"
	"coinsangjang/internal/logging"
	"coinsangjang/internal/models"
)

// checkTimeout bounds each individual venue catalog lookup.
const checkTimeout = 5 * time.Second

// Report aggregates per-venue availability for one symbol at one instant.
// Ready is true when at least one venue can trade it (OR semantics): a single
// down venue must never block the symbol.
type Report struct {
	Symbol      string                     `json:"symbol"`
	Diagnostics []models.VenueAvailability `json:"diagnostics"`
	Ready       bool                       `json:"ready"`
	UseTestnet  bool                       `json:"use_testnet"`
}

// Checker fans a symbol out to every registered venue adapter. Read-only and
// side-effect-free toward venues: catalog lookups only, no credentials.
type Checker struct {
	registry *exchange.Registry
	log      *logging.Logger
}

// NewChecker creates a readiness checker over the adapter registry.
func NewChecker(registry *exchange.Registry, log *logging.Logger) *Checker {
	return &Checker{registry: registry, log: log}
}

// Check queries all venues in parallel. Within the returned diagnostics the
// venue order is the registry's stable order regardless of completion order.
// A venue error or panic becomes {available:false, error}; it is never
// propagated.
func (c *Checker) Check(ctx context.Context, pair string, useTestnet bool) Report {
	adapters := c.registry.All()
	diagnostics := make([]models.VenueAvailability, len(adapters))

	var wg sync.WaitGroup
	for i, adapter := range adapters {
		wg.Add(1)
		go func(i int, adapter exchange.Adapter) {
			defer wg.Done()
			diagnostics[i] = c.checkOne(ctx, adapter, pair, useTestnet)
		}(i, adapter)
	}
	wg.Wait()

	ready := false
	for _, d := range diagnostics {
		if d.Available {
			ready = true
			break
		}
	}

	c.log.Debug("[READINESS] %s: ready=%v (%d개 거래소 확인, testnet=%v)",
		pair, ready, len(diagnostics), useTestnet)

	return Report{
		Symbol:      pair,
		Diagnostics: diagnostics,
		Ready:       ready,
		UseTestnet:  useTestnet,
	}
}

// checkOne runs a single bounded venue lookup, converting every failure mode
// into an unavailable diagnostic.
func (c *Checker) checkOne(ctx context.Context, adapter exchange.Adapter, pair string, useTestnet bool) (result models.VenueAvailability) {
	result = models.VenueAvailability{
		Venue:     adapter.Venue(),
		CheckedAt: time.Now(),
	}
	defer func() {
		if r := recover(); r != nil {
			result.Available = false
			result.Error = fmt.Sprintf("panic: %v", r)
			c.log.Error("[READINESS] %s 어댑터 패닉 (%s): %v", adapter.Venue(), pair, r)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	found, err := adapter.FindSymbol(callCtx, pair, useTestnet)
	if err != nil {
		result.Error = err.Error()
		c.log.Debug("[READINESS] %s 조회 실패 (%s): %v", adapter.Venue(), pair, err)
		return result
	}
	result.Available = found
	return result
}

// Snapshot adapts Check for the event store's enrichment hook.
func (c *Checker) Snapshot(useTestnet bool) func(ctx context.Context, pair string) ([]models.VenueAvailability, error) {
	return func(ctx context.Context, pair string) ([]models.VenueAvailability, error) {
		return c.Check(ctx, pair, useTestnet).Diagnostics, nil
	}
}
