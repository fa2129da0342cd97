package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validPolicy() TradingPolicy {
	return TradingPolicy{
		Venues:        []Venue{VenueBinance, VenueBybit},
		Leverage:      10,
		NotionalUSDT:  100,
		TakeProfitPct: 10,
		StopLossPct:   5,
		NetworkMode:   ModeTestnet,
		AutoTrade:     true,
		EntryType:     EntryMarket,
	}
}

func TestTradingPolicyValidate(t *testing.T) {
	p := validPolicy()
	assert.NoError(t, p.Validate())

	cases := []struct {
		name   string
		mutate func(*TradingPolicy)
	}{
		{"no venues", func(p *TradingPolicy) { p.Venues = nil }},
		{"unknown venue", func(p *TradingPolicy) { p.Venues = []Venue{"KRAKEN"} }},
		{"leverage below min", func(p *TradingPolicy) { p.Leverage = 0 }},
		{"leverage above max", func(p *TradingPolicy) { p.Leverage = 126 }},
		{"zero notional", func(p *TradingPolicy) { p.NotionalUSDT = 0 }},
		{"negative notional", func(p *TradingPolicy) { p.NotionalUSDT = -5 }},
		{"zero take profit", func(p *TradingPolicy) { p.TakeProfitPct = 0 }},
		{"zero stop loss", func(p *TradingPolicy) { p.StopLossPct = 0 }},
		{"unknown mode", func(p *TradingPolicy) { p.NetworkMode = "STAGING" }},
		{"unknown entry type", func(p *TradingPolicy) { p.EntryType = "TWAP" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPolicy()
			tc.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestTradingPolicyLeverageBounds(t *testing.T) {
	p := validPolicy()

	p.Leverage = MinLeverage
	assert.NoError(t, p.Validate())

	p.Leverage = MaxLeverage
	assert.NoError(t, p.Validate())
}

func TestTradingPolicyHasVenue(t *testing.T) {
	p := validPolicy()

	assert.True(t, p.HasVenue(VenueBinance))
	assert.False(t, p.HasVenue(VenueOKX))
}

func TestTradingPolicyClone(t *testing.T) {
	p := validPolicy()
	clone := p.Clone()

	clone.Venues[0] = VenueGateio
	clone.Leverage = 99

	assert.Equal(t, VenueBinance, p.Venues[0])
	assert.Equal(t, 10, p.Leverage)
}

func TestParseVenue(t *testing.T) {
	v, err := ParseVenue("binance")
	assert.NoError(t, err)
	assert.Equal(t, VenueBinance, v)

	v, err = ParseVenue(" OKX ")
	assert.NoError(t, err)
	assert.Equal(t, VenueOKX, v)

	_, err = ParseVenue("coinbase")
	assert.Error(t, err)
}

func TestParseNetworkMode(t *testing.T) {
	m, err := ParseNetworkMode("testnet")
	assert.NoError(t, err)
	assert.True(t, m.IsTestnet())

	m, err = ParseNetworkMode("MAINNET")
	assert.NoError(t, err)
	assert.False(t, m.IsTestnet())

	_, err = ParseNetworkMode("prod")
	assert.Error(t, err)
}
