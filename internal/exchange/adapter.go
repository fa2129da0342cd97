package exchange

import (
	"context"
	"fmt"
	"sort"

	"coinsangjang/internal/models"
)

// Credentials are decrypted venue API credentials, held in memory only for
// the duration of a signed call.
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string // OKX / Bitget
}

// OrderRequest describes one market entry with risk parameters.
type OrderRequest struct {
	Symbol        string  // canonical pair, e.g. "APTUSDT"
	Quantity      float64 // base asset quantity, already rounded
	Leverage      int
	TakeProfitPct float64
	StopLossPct   float64
}

// OrderResult is the venue's acknowledgement of a placed order.
type OrderResult struct {
	OrderID string
}

// Adapter is the per-venue capability contract. Each implementation owns its
// request-signing scheme and mainnet/testnet endpoint selection.
//
// FindSymbol is an unauthenticated catalog lookup: a legitimate "symbol not
// found" answer returns (false, nil); only transport or protocol failure
// returns an error, and callers still convert that into unavailability.
type Adapter interface {
	Venue() models.Venue
	FindSymbol(ctx context.Context, pair string, useTestnet bool) (bool, error)
	EnsureLeverage(ctx context.Context, creds Credentials, pair string, leverage int, useTestnet bool) error
	PlaceMarketOrder(ctx context.Context, creds Credentials, req OrderRequest, useTestnet bool) (*OrderResult, error)
	// MaxLeverage is the venue-wide leverage cap applied before sizing.
	MaxLeverage() int
}

// Registry holds the closed set of venue adapters, keyed by venue.
type Registry struct {
	adapters map[models.Venue]Adapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.Venue]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Venue()] = a
	}
	return r
}

// Get looks an adapter up by venue.
func (r *Registry) Get(v models.Venue) (Adapter, error) {
	a, ok := r.adapters[v]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for venue %s", v)
	}
	return a, nil
}

// All returns every registered adapter in stable venue order.
func (r *Registry) All() []Adapter {
	venues := make([]string, 0, len(r.adapters))
	for v := range r.adapters {
		venues = append(venues, string(v))
	}
	sort.Strings(venues)

	out := make([]Adapter, 0, len(venues))
	for _, v := range venues {
		out = append(out, r.adapters[models.Venue(v)])
	}
	return out
}

// Venues returns the registered venue keys in stable order.
func (r *Registry) Venues() []models.Venue {
	out := make([]models.Venue, 0, len(r.adapters))
	for _, a := range r.All() {
		out = append(out, a.Venue())
	}
	return out
}
