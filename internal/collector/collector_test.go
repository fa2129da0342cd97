package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinsangjang/internal/dedup"
	"coinsangjang/internal/logging"
	"coinsangjang/internal/models"
)

func newTestCollector(t *testing.T, handler ListingHandler) *Collector {
	t.Helper()

	seen, err := dedup.NewSeenStore(time.Hour)
	require.NoError(t, err)
	t.Cleanup(seen.Close)

	log, err := logging.NewLogger("test", logging.ERROR, "")
	require.NoError(t, err)

	return New(nil, seen, log, handler)
}

func TestHandleNoticeEmitsListing(t *testing.T) {
	var got []models.ListingEvent
	c := newTestCollector(t, func(e models.ListingEvent) { got = append(got, e) })

	c.HandleNotice(models.SourceUpbit, models.RawNotice{
		ID:          "4321",
		Title:       "셀레스티아(TIA) 신규 거래지원 안내 (KRW 마켓)",
		PublishedAt: time.Date(2026, 8, 30, 14, 0, 5, 0, time.UTC),
	})

	require.Len(t, got, 1)
	assert.Equal(t, "UPBIT:4321", got[0].ID)
	assert.Equal(t, models.SourceUpbit, got[0].Source)
	assert.Equal(t, "TIA", got[0].BaseSymbol)
	assert.Equal(t, 2026, got[0].AnnouncedAt.Year())
	assert.False(t, got[0].ReceivedAt.IsZero())
}

func TestHandleNoticeDuplicateIgnored(t *testing.T) {
	count := 0
	c := newTestCollector(t, func(models.ListingEvent) { count++ })

	notice := models.RawNotice{ID: "77", Title: "수이(SUI) 신규 상장"}
	c.HandleNotice(models.SourceBithumb, notice)
	c.HandleNotice(models.SourceBithumb, notice)
	c.HandleNotice(models.SourceBithumb, notice)

	assert.Equal(t, 1, count)
}

func TestHandleNoticeNonListingMarkedSeen(t *testing.T) {
	count := 0
	c := newTestCollector(t, func(models.ListingEvent) { count++ })

	// 점검 공지: 분류 탈락해도 seen 처리되어 재평가되지 않는다
	c.HandleNotice(models.SourceUpbit, models.RawNotice{ID: "5", Title: "서버 점검 안내"})
	assert.Equal(t, 0, count)
	assert.True(t, c.seen.Seen(models.SourceUpbit, "5"))
}

func TestHandleNoticeDelistingRejected(t *testing.T) {
	count := 0
	c := newTestCollector(t, func(models.ListingEvent) { count++ })

	c.HandleNotice(models.SourceUpbit, models.RawNotice{
		ID:    "6",
		Title: "에이다(ADA) 거래지원 종료 안내",
	})

	assert.Equal(t, 0, count)
}

func TestHandleNoticeSameIDDifferentSources(t *testing.T) {
	count := 0
	c := newTestCollector(t, func(models.ListingEvent) { count++ })

	notice := models.RawNotice{ID: "1", Title: "앱토스(APT) 신규 상장"}
	c.HandleNotice(models.SourceUpbit, notice)
	c.HandleNotice(models.SourceBithumb, notice)

	assert.Equal(t, 2, count)
}

func TestHandleNoticeMissingID(t *testing.T) {
	count := 0
	c := newTestCollector(t, func(models.ListingEvent) { count++ })

	c.HandleNotice(models.SourceUpbit, models.RawNotice{Title: "앱토스(APT) 신규 상장"})
	assert.Equal(t, 0, count)
}

func TestHandleNoticeSymbolFromBody(t *testing.T) {
	var got []models.ListingEvent
	c := newTestCollector(t, func(e models.ListingEvent) { got = append(got, e) })

	c.HandleNotice(models.SourceUpbit, models.RawNotice{
		ID:    "8",
		Title: "신규 거래지원 안내",
		Body:  "월드코인(WLD) KRW 마켓이 추가됩니다.",
	})

	require.Len(t, got, 1)
	assert.Equal(t, "WLD", got[0].BaseSymbol)
}
