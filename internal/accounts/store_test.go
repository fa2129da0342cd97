package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinsangjang/internal/config"
	"coinsangjang/internal/models"
)

func TestFromConfig(t *testing.T) {
	s := FromConfig([]config.AccountConfig{
		{ID: "a1", Venue: "BINANCE", NetworkMode: "TESTNET", IsActive: true, DefaultLeverage: 5},
		{ID: "a2", Venue: "bybit", NetworkMode: "MAINNET", IsActive: true},
		{ID: "a3", Venue: "BINANCE", NetworkMode: "TESTNET", IsActive: false},
		{ID: "a4", Venue: "NOSUCH", NetworkMode: "TESTNET", IsActive: true},
	})

	assert.Equal(t, 3, s.Len()) // 알 수 없는 거래소 계정은 버려진다

	active := s.ActiveFor(models.VenueBinance, models.ModeTestnet)
	require.Len(t, active, 1)
	assert.Equal(t, "a1", active[0].ID)
	assert.Equal(t, 5, active[0].DefaultLeverage)

	// 거래소 이름은 대소문자 무관하게 파싱된다
	active = s.ActiveFor(models.VenueBybit, models.ModeMainnet)
	require.Len(t, active, 1)
	assert.Equal(t, "a2", active[0].ID)
}

func TestFromConfigBadModeDefaultsToTestnet(t *testing.T) {
	s := FromConfig([]config.AccountConfig{
		{ID: "a1", Venue: "OKX", NetworkMode: "production???", IsActive: true},
	})

	assert.Empty(t, s.ActiveFor(models.VenueOKX, models.ModeMainnet))
	require.Len(t, s.ActiveFor(models.VenueOKX, models.ModeTestnet), 1)
}

func TestReplaceAndInactiveFiltered(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.ActiveFor(models.VenueGateio, models.ModeTestnet))

	s.Replace([]models.ExchangeAccount{
		{ID: "g1", Venue: models.VenueGateio, NetworkMode: models.ModeTestnet, IsActive: true},
		{ID: "g2", Venue: models.VenueGateio, NetworkMode: models.ModeTestnet, IsActive: true},
	})
	assert.Len(t, s.ActiveFor(models.VenueGateio, models.ModeTestnet), 2)

	s.Replace(nil)
	assert.Equal(t, 0, s.Len())
}
