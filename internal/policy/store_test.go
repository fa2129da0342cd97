package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinsangjang/internal/logging"
	"coinsangjang/internal/models"
)

func testDefaults() models.TradingPolicy {
	return models.TradingPolicy{
		Venues:        []models.Venue{models.VenueBinance},
		Leverage:      5,
		NotionalUSDT:  100,
		TakeProfitPct: 10,
		StopLossPct:   5,
		NetworkMode:   models.ModeTestnet,
		AutoTrade:     false,
		EntryType:     models.EntryMarket,
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log, err := logging.NewLogger("test", logging.ERROR, "")
	require.NoError(t, err)
	return NewStore(testDefaults(), log)
}

func TestActiveLazilyCreatesDefaults(t *testing.T) {
	s := newTestStore(t)

	p := s.Active()
	require.NotNil(t, p)
	assert.Equal(t, 5, p.Leverage)
	assert.False(t, p.AutoTrade)
	assert.False(t, s.UpdatedAt().IsZero())
}

func TestActiveReturnsSnapshot(t *testing.T) {
	s := newTestStore(t)

	p := s.Active()
	p.Leverage = 99
	p.Venues[0] = models.VenueOKX

	fresh := s.Active()
	assert.Equal(t, 5, fresh.Leverage)
	assert.Equal(t, models.VenueBinance, fresh.Venues[0])
}

func TestUpdateReplacesWholesale(t *testing.T) {
	s := newTestStore(t)

	next := testDefaults()
	next.Venues = []models.Venue{models.VenueBybit, models.VenueOKX}
	next.Leverage = 20
	next.AutoTrade = true

	updated, err := s.Update(&next)
	require.NoError(t, err)
	assert.Equal(t, 20, updated.Leverage)

	active := s.Active()
	assert.Equal(t, []models.Venue{models.VenueBybit, models.VenueOKX}, active.Venues)
	assert.True(t, active.AutoTrade)
}

func TestUpdateRejectsInvalid(t *testing.T) {
	s := newTestStore(t)

	bad := testDefaults()
	bad.Leverage = 0
	_, err := s.Update(&bad)
	assert.Error(t, err)

	// 거부된 갱신은 기존 정책을 건드리지 않는다
	assert.Equal(t, 5, s.Active().Leverage)

	_, err = s.Update(nil)
	assert.Error(t, err)
}

func TestUpdateDetachedFromCaller(t *testing.T) {
	s := newTestStore(t)

	next := testDefaults()
	_, err := s.Update(&next)
	require.NoError(t, err)

	// 호출자가 이후에 원본을 바꿔도 저장된 정책은 영향이 없다
	next.Leverage = 77
	assert.Equal(t, 5, s.Active().Leverage)
}
