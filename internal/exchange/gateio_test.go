package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractName(t *testing.T) {
	assert.Equal(t, "APT_USDT", contractName("APTUSDT"))
	assert.Equal(t, "1INCH_USDT", contractName("1INCHUSDT"))
}

func TestGateioFindSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v4/futures/usdt/contracts/APT_USDT":
			w.Write([]byte(`{"name":"APT_USDT","type":"direct"}`))
		case "/api/v4/futures/usdt/contracts/NEW_USDT":
			w.WriteHeader(404)
			w.Write([]byte(`{"label":"CONTRACT_NOT_FOUND"}`))
		default:
			w.WriteHeader(500)
		}
	}))
	defer srv.Close()

	g := NewGateio(srv.URL, srv.URL)

	found, err := g.FindSymbol(context.Background(), "APTUSDT", false)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = g.FindSymbol(context.Background(), "NEWUSDT", false)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = g.FindSymbol(context.Background(), "BOOMUSDT", false)
	assert.Error(t, err)
}

func TestGateioSignedHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/futures/usdt/positions/APT_USDT/leverage", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("KEY"))

		body, _ := io.ReadAll(r.Body)
		timestamp := r.Header.Get("Timestamp")
		require.NotEmpty(t, timestamp)

		// 서명 검증: HMAC-SHA512(method\npath\nquery\nhexsha512(body)\nts)
		bodyHash := sha512.Sum512(body)
		signString := strings.Join([]string{
			"POST", r.URL.Path, r.URL.RawQuery, hex.EncodeToString(bodyHash[:]), timestamp,
		}, "\n")
		mac := hmac.New(sha512.New, []byte("test-secret"))
		mac.Write([]byte(signString))
		assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), r.Header.Get("SIGN"))

		w.Write([]byte(`{"leverage":"10"}`))
	}))
	defer srv.Close()

	g := NewGateio(srv.URL, srv.URL)
	err := g.EnsureLeverage(context.Background(), testCreds(), "APTUSDT", 10, false)
	assert.NoError(t, err)
}

func TestGateioPlaceMarketOrderIntegerContracts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/futures/usdt/orders", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "APT_USDT", payload["contract"])
		// 2.3 계약 → 3 계약으로 올림
		assert.Equal(t, float64(3), payload["size"])
		assert.Equal(t, "0", payload["price"])
		assert.Equal(t, "ioc", payload["tif"])

		w.Write([]byte(`{"id":987654}`))
	}))
	defer srv.Close()

	g := NewGateio(srv.URL, srv.URL)
	result, err := g.PlaceMarketOrder(context.Background(), testCreds(), OrderRequest{
		Symbol: "APTUSDT", Quantity: 2.3,
	}, false)

	require.NoError(t, err)
	assert.Equal(t, "987654", result.OrderID)
}

func TestGateioMinimumOneContract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, float64(1), payload["size"])
		w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	g := NewGateio(srv.URL, srv.URL)
	_, err := g.PlaceMarketOrder(context.Background(), testCreds(), OrderRequest{
		Symbol: "APTUSDT", Quantity: 0.001,
	}, false)
	assert.NoError(t, err)
}

func TestGateioPlaceMarketOrderWithTriggers(t *testing.T) {
	type trigger struct {
		price string
		rule  float64
	}
	var triggers []trigger

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v4/futures/usdt/orders":
			w.Write([]byte(`{"id":987654,"fill_price":"8.00"}`))
		case "/api/v4/futures/usdt/price_orders":
			body, _ := io.ReadAll(r.Body)
			var payload struct {
				Initial struct {
					Contract string  `json:"contract"`
					Size     float64 `json:"size"`
					AutoSize string  `json:"auto_size"`
				} `json:"initial"`
				Trigger struct {
					Price string  `json:"price"`
					Rule  float64 `json:"rule"`
				} `json:"trigger"`
			}
			require.NoError(t, json.Unmarshal(body, &payload))
			assert.Equal(t, "APT_USDT", payload.Initial.Contract)
			assert.Equal(t, float64(0), payload.Initial.Size)
			assert.Equal(t, "close_long", payload.Initial.AutoSize)
			triggers = append(triggers, trigger{payload.Trigger.Price, payload.Trigger.Rule})
			w.Write([]byte(`{"id":111}`))
		default:
			w.WriteHeader(500)
		}
	}))
	defer srv.Close()

	g := NewGateio(srv.URL, srv.URL)
	result, err := g.PlaceMarketOrder(context.Background(), testCreds(), OrderRequest{
		Symbol: "APTUSDT", Quantity: 2.3, TakeProfitPct: 10, StopLossPct: 5,
	}, false)

	require.NoError(t, err)
	assert.Equal(t, "987654", result.OrderID)
	// 체결가 8.00 기준: TP는 가격 상향 돌파(rule 1), SL은 하향 돌파(rule 2)
	assert.Equal(t, []trigger{{"8.8", 1}, {"7.6", 2}}, triggers)
}

func TestGateioTriggerFailureDoesNotFailEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v4/futures/usdt/orders":
			w.Write([]byte(`{"id":42,"fill_price":"8.00"}`))
		default:
			w.WriteHeader(400)
			w.Write([]byte(`{"label":"AUTO_ORDER_LIMIT","message":"too many price orders"}`))
		}
	}))
	defer srv.Close()

	g := NewGateio(srv.URL, srv.URL)
	result, err := g.PlaceMarketOrder(context.Background(), testCreds(), OrderRequest{
		Symbol: "APTUSDT", Quantity: 2.3, TakeProfitPct: 10, StopLossPct: 5,
	}, false)

	require.NoError(t, err)
	assert.Equal(t, "42", result.OrderID)
}

func TestGateioAPIErrorLabelSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		w.Write([]byte(`{"label":"INSUFFICIENT_AVAILABLE","message":"not enough balance"}`))
	}))
	defer srv.Close()

	g := NewGateio(srv.URL, srv.URL)
	err := g.EnsureLeverage(context.Background(), testCreds(), "APTUSDT", 10, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INSUFFICIENT_AVAILABLE")
}
