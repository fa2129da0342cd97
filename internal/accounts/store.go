package accounts

import (
	"sync"

	"coinsangjang/internal/config"
	"coinsangjang/internal/models"
)

// Store is the read-only view of exchange accounts consumed by the
// orchestrator. Account administration happens elsewhere; this store only
// answers "which active accounts trade venue V in mode M".
type Store struct {
	mu       sync.RWMutex
	accounts []models.ExchangeAccount
}

// NewStore creates an empty account store.
func NewStore() *Store {
	return &Store{}
}

// FromConfig builds a store from the static account configuration.
func FromConfig(cfgs []config.AccountConfig) *Store {
	s := NewStore()
	accts := make([]models.ExchangeAccount, 0, len(cfgs))
	for _, c := range cfgs {
		venue, err := models.ParseVenue(c.Venue)
		if err != nil {
			continue // unknown venue, already rejected by config validation
		}
		mode, err := models.ParseNetworkMode(c.NetworkMode)
		if err != nil {
			mode = models.ModeTestnet // never route an ambiguous account to mainnet
		}
		accts = append(accts, models.ExchangeAccount{
			ID:                  c.ID,
			OwnerID:             c.OwnerID,
			Venue:               venue,
			NetworkMode:         mode,
			EncryptedAPIKey:     c.EncryptedAPIKey,
			EncryptedAPISecret:  c.EncryptedAPISecret,
			EncryptedPassphrase: c.EncryptedPassphrase,
			DefaultLeverage:     c.DefaultLeverage,
			IsActive:            c.IsActive,
		})
	}
	s.Replace(accts)
	return s
}

// Replace swaps the full account set.
func (s *Store) Replace(accounts []models.ExchangeAccount) {
	cp := append([]models.ExchangeAccount(nil), accounts...)
	s.mu.Lock()
	s.accounts = cp
	s.mu.Unlock()
}

// ActiveFor returns active accounts for one venue and network mode.
func (s *Store) ActiveFor(venue models.Venue, mode models.NetworkMode) []models.ExchangeAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ExchangeAccount
	for _, a := range s.accounts {
		if a.IsActive && a.Venue == venue && a.NetworkMode == mode {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the total number of accounts, active or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}
