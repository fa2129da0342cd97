package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinsangjang/internal/collector"
	"coinsangjang/internal/config"
	"coinsangjang/internal/dedup"
	"coinsangjang/internal/events"
	"coinsangjang/internal/exchange"
	"coinsangjang/internal/logging"
	"coinsangjang/internal/models"
	"coinsangjang/internal/policy"
	"coinsangjang/internal/readiness"
)

func testPolicy() models.TradingPolicy {
	return models.TradingPolicy{
		Venues:        []models.Venue{models.VenueBinance},
		Leverage:      10,
		NotionalUSDT:  100,
		TakeProfitPct: 10,
		StopLossPct:   5,
		NetworkMode:   models.ModeTestnet,
		EntryType:     models.EntryMarket,
	}
}

func newTestServer(t *testing.T) (*Server, *events.Store) {
	t.Helper()
	log, err := logging.NewLogger("test", logging.ERROR, "")
	require.NoError(t, err)

	store := events.NewStore(nil, nil, log)
	t.Cleanup(store.Close)

	seen, err := dedup.NewSeenStore(time.Hour)
	require.NoError(t, err)
	t.Cleanup(seen.Close)

	col := collector.New(nil, seen, log, func(candidate models.ListingEvent) {
		_, _ = store.Record(candidate)
	})
	checker := readiness.NewChecker(exchange.NewRegistry(), log)
	policies := policy.NewStore(testPolicy(), log)

	return NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 8080},
		store, policies, checker, col, log), store
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestPushListing(t *testing.T) {
	s, store := newTestServer(t)

	body := `{"source":"UPBIT","notice_id":"7788","title":"셀레스티아(TIA) KRW 마켓 디지털 자산 추가"}`
	rec := httptest.NewRecorder()
	s.handleListings(rec, httptest.NewRequest(http.MethodPost, "/api/listings", strings.NewReader(body)))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	recent := store.FindRecent(10)
	require.Len(t, recent, 1)
	assert.Equal(t, "TIAUSDT", recent[0].Symbol)
	assert.Equal(t, "UPBIT:7788", recent[0].ID)

	// 같은 공지를 다시 밀어넣어도 이벤트는 늘지 않는다
	rec = httptest.NewRecorder()
	s.handleListings(rec, httptest.NewRequest(http.MethodPost, "/api/listings", strings.NewReader(body)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, store.FindRecent(10), 1)
}

func TestPushListingWithSymbol(t *testing.T) {
	s, store := newTestServer(t)

	// symbol이 있으면 제목에 상장 키워드가 없어도 바로 기록된다
	body := `{"source":"BINANCE","symbol":"SEI","notice_id":"m-1","announced_at":"2026-08-30T12:00:00Z"}`
	rec := httptest.NewRecorder()
	s.handleListings(rec, httptest.NewRequest(http.MethodPost, "/api/listings", strings.NewReader(body)))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	recent := store.FindRecent(10)
	require.Len(t, recent, 1)
	assert.Equal(t, "SEIUSDT", recent[0].Symbol)
	assert.Equal(t, "BINANCE:m-1", recent[0].ID)
	assert.Equal(t, 2026, recent[0].AnnouncedAt.Year())

	// 같은 메시지 ID 재전송은 멱등
	rec = httptest.NewRecorder()
	s.handleListings(rec, httptest.NewRequest(http.MethodPost, "/api/listings", strings.NewReader(body)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, store.FindRecent(10), 1)

	// 메시지 ID가 없어도 기록은 된다
	rec = httptest.NewRecorder()
	s.handleListings(rec, httptest.NewRequest(http.MethodPost, "/api/listings",
		strings.NewReader(`{"source":"UPBIT","symbol":"WLD"}`)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, store.FindRecent(10), 2)

	// 정규화 불가능한 심볼은 거부
	rec = httptest.NewRecorder()
	s.handleListings(rec, httptest.NewRequest(http.MethodPost, "/api/listings",
		strings.NewReader(`{"source":"UPBIT","symbol":"###"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_symbol", decodeError(t, rec).Code)
}

func TestPushListingValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handleListings(rec, httptest.NewRequest(http.MethodPost, "/api/listings", strings.NewReader("{broken")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_payload", decodeError(t, rec).Code)

	rec = httptest.NewRecorder()
	s.handleListings(rec, httptest.NewRequest(http.MethodPost, "/api/listings", strings.NewReader(`{"source":"UPBIT"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_field", decodeError(t, rec).Code)

	rec = httptest.NewRecorder()
	s.handleListings(rec, httptest.NewRequest(http.MethodGet, "/api/listings", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRecentLimit(t *testing.T) {
	s, store := newTestServer(t)
	for _, id := range []string{"1", "2", "3"} {
		_, err := store.Record(models.ListingEvent{
			ID: "UPBIT:" + id, Source: models.SourceUpbit, BaseSymbol: "APT",
		})
		require.NoError(t, err)
	}

	rec := httptest.NewRecorder()
	s.handleRecent(rec, httptest.NewRequest(http.MethodGet, "/api/listings/recent?limit=2", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var got []models.ListingEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)

	// 상한을 넘는 limit은 잘라낸다
	rec = httptest.NewRecorder()
	s.handleRecent(rec, httptest.NewRequest(http.MethodGet, "/api/listings/recent?limit=999999", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 3)
}

func TestPolicyEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handlePolicy(rec, httptest.NewRequest(http.MethodGet, "/api/policy", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var got models.TradingPolicy
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 10, got.Leverage)

	// 전체 교체: 유효한 정책
	updated := testPolicy()
	updated.Leverage = 20
	updated.AutoTrade = true
	body, _ := json.Marshal(updated)
	rec = httptest.NewRecorder()
	s.handlePolicy(rec, httptest.NewRequest(http.MethodPut, "/api/policy", strings.NewReader(string(body))))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.handlePolicy(rec, httptest.NewRequest(http.MethodGet, "/api/policy", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 20, got.Leverage)
	assert.True(t, got.AutoTrade)

	// 유효하지 않은 정책은 422, 기존 정책은 유지
	bad := testPolicy()
	bad.Leverage = 0
	body, _ = json.Marshal(bad)
	rec = httptest.NewRecorder()
	s.handlePolicy(rec, httptest.NewRequest(http.MethodPut, "/api/policy", strings.NewReader(string(body))))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_policy", decodeError(t, rec).Code)

	rec = httptest.NewRecorder()
	s.handlePolicy(rec, httptest.NewRequest(http.MethodGet, "/api/policy", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 20, got.Leverage)
}

func TestAvailabilityValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handleAvailability(rec, httptest.NewRequest(http.MethodGet, "/api/markets/availability", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_symbol", decodeError(t, rec).Code)

	rec = httptest.NewRecorder()
	s.handleAvailability(rec, httptest.NewRequest(http.MethodGet, "/api/markets/availability?symbol=%23%23%23", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_symbol", decodeError(t, rec).Code)

	rec = httptest.NewRecorder()
	s.handleAvailability(rec, httptest.NewRequest(http.MethodGet, "/api/markets/availability?symbol=apt&mode=nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_mode", decodeError(t, rec).Code)
}

func TestAvailabilityNormalizesSymbol(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handleAvailability(rec, httptest.NewRequest(http.MethodGet, "/api/markets/availability?symbol=apt&mode=MAINNET", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report readiness.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "APTUSDT", report.Symbol)
	assert.False(t, report.UseTestnet)
	assert.False(t, report.Ready) // 등록된 거래소가 없으면 준비 상태가 아니다
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	handler := s.withCommon(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("OPTIONS 요청이 핸들러까지 전달되면 안 된다")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/policy", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthAndStats(t *testing.T) {
	s, store := newTestServer(t)
	_, err := store.Record(models.ListingEvent{ID: "UPBIT:1", Source: models.SourceUpbit, BaseSymbol: "APT"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = httptest.NewRecorder()
	s.handleStats(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats["events_stored"])
}
