package models

import "fmt"

// Leverage bounds accepted by every supported venue.
const (
	MinLeverage = 1
	MaxLeverage = 125
)

// TradingPolicy is the single active configuration governing automated
// entries. It is replaced wholesale on update; the orchestrator reads a fresh
// snapshot at job-processing time.
type TradingPolicy struct {
	Venues        []Venue     `json:"venues"`
	Leverage      int         `json:"leverage"`
	NotionalUSDT  float64     `json:"notional_usdt"`
	TakeProfitPct float64     `json:"take_profit_pct"`
	StopLossPct   float64     `json:"stop_loss_pct"`
	NetworkMode   NetworkMode `json:"network_mode"`
	AutoTrade     bool        `json:"auto_trade"`
	EntryType     EntryType   `json:"entry_type"`
}

// Validate checks the policy ranges before it may replace the active one.
func (p *TradingPolicy) Validate() error {
	if len(p.Venues) == 0 {
		return fmt.Errorf("policy requires at least one venue")
	}
	for _, v := range p.Venues {
		if _, err := ParseVenue(string(v)); err != nil {
			return err
		}
	}
	if p.Leverage < MinLeverage || p.Leverage > MaxLeverage {
		return fmt.Errorf("leverage %d out of range [%d..%d]", p.Leverage, MinLeverage, MaxLeverage)
	}
	if p.NotionalUSDT <= 0 {
		return fmt.Errorf("notional must be positive, got %.4f", p.NotionalUSDT)
	}
	if p.TakeProfitPct <= 0 {
		return fmt.Errorf("take-profit percentage must be positive, got %.4f", p.TakeProfitPct)
	}
	if p.StopLossPct <= 0 {
		return fmt.Errorf("stop-loss percentage must be positive, got %.4f", p.StopLossPct)
	}
	if p.NetworkMode != ModeMainnet && p.NetworkMode != ModeTestnet {
		return fmt.Errorf("unknown network mode: %q", p.NetworkMode)
	}
	if p.EntryType != EntryMarket && p.EntryType != EntryLimit {
		return fmt.Errorf("unknown entry type: %q", p.EntryType)
	}
	return nil
}

// HasVenue reports whether the policy selects the given venue.
func (p *TradingPolicy) HasVenue(v Venue) bool {
	for _, pv := range p.Venues {
		if pv == v {
			return true
		}
	}
	return false
}

// Clone returns an independent copy so callers cannot mutate the stored policy.
func (p *TradingPolicy) Clone() *TradingPolicy {
	cp := *p
	cp.Venues = append([]Venue(nil), p.Venues...)
	return &cp
}
