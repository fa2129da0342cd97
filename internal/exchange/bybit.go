package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"coinsangjang/internal/logging"
	"coinsangjang/internal/models"
)

const bybitRecvWindow = "5000"

// Bybit V5 linear perpetual adapter.
//
// Signing: hex(HMAC-SHA256(timestamp + apiKey + recvWindow + payload)) where
// payload is the query string for GET and the JSON body for POST, sent in the
// X-BAPI-* headers.
type Bybit struct {
	mainnetURL string
	testnetURL string
}

// NewBybit creates the Bybit adapter.
func NewBybit(mainnetURL, testnetURL string) *Bybit {
	return &Bybit{mainnetURL: mainnetURL, testnetURL: testnetURL}
}

// Venue implements Adapter.
func (b *Bybit) Venue() models.Venue { return models.VenueBybit }

// MaxLeverage implements Adapter.
func (b *Bybit) MaxLeverage() int { return 100 }

func (b *Bybit) baseURL(useTestnet bool) string {
	if useTestnet {
		return b.testnetURL
	}
	return b.mainnetURL
}

type bybitEnvelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// FindSymbol queries the public linear instrument catalog.
func (b *Bybit) FindSymbol(ctx context.Context, pair string, useTestnet bool) (bool, error) {
	u := fmt.Sprintf("%s/v5/market/instruments-info?category=linear&symbol=%s",
		b.baseURL(useTestnet), url.QueryEscape(pair))

	resp, err := doRequest(ctx, "GET", u, nil, nil)
	if err != nil {
		return false, errors.Wrap(err, "bybit symbol lookup")
	}

	var env bybitEnvelope
	if err := decodeJSON(resp, &env); err != nil {
		return false, errors.Wrap(err, "bybit symbol lookup")
	}
	if env.RetCode != 0 {
		return false, errors.Errorf("bybit api error %d: %s", env.RetCode, env.RetMsg)
	}

	var result struct {
		List []json.RawMessage `json:"list"`
	}
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return false, errors.Wrap(err, "bybit symbol lookup")
	}
	return len(result.List) > 0, nil
}

// EnsureLeverage sets both-side leverage on the linear contract. Bybit
// answers 110043 when leverage is already at the requested value; that is
// success for this capability.
func (b *Bybit) EnsureLeverage(ctx context.Context, creds Credentials, pair string, leverage int, useTestnet bool) error {
	lev := strconv.Itoa(leverage)
	body := map[string]string{
		"category":     "linear",
		"symbol":       pair,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}

	err := b.signedPost(ctx, creds, "/v5/position/set-leverage", body, useTestnet)
	if err != nil && !isBybitCode(err, 110043) {
		return errors.Wrap(err, "bybit set leverage")
	}
	return nil
}

// PlaceMarketOrder opens a long with absolute TP/SL prices derived from the
// last traded price. A ticker fetch failure drops the TP/SL fields only.
func (b *Bybit) PlaceMarketOrder(ctx context.Context, creds Credentials, req OrderRequest, useTestnet bool) (*OrderResult, error) {
	body := map[string]string{
		"category":  "linear",
		"symbol":    req.Symbol,
		"side":      "Buy",
		"orderType": "Market",
		"qty":       trimFloat(req.Quantity),
	}

	if last, err := b.lastPrice(ctx, req.Symbol, useTestnet); err != nil {
		logging.Warn("[BYBIT] 시세 조회 실패, TP/SL 생략 (%s): %v", req.Symbol, err)
	} else {
		if req.TakeProfitPct > 0 {
			body["takeProfit"] = trimFloat(last * (1 + req.TakeProfitPct/100))
		}
		if req.StopLossPct > 0 {
			body["stopLoss"] = trimFloat(last * (1 - req.StopLossPct/100))
		}
	}

	payload, _ := json.Marshal(body)
	resp, err := b.signedRequest(ctx, creds, "POST", "/v5/order/create", payload, useTestnet)
	if err != nil {
		return nil, errors.Wrap(err, "bybit place order")
	}

	var result struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, errors.Wrap(err, "bybit place order")
	}
	return &OrderResult{OrderID: result.OrderID}, nil
}

func (b *Bybit) lastPrice(ctx context.Context, pair string, useTestnet bool) (float64, error) {
	u := fmt.Sprintf("%s/v5/market/tickers?category=linear&symbol=%s",
		b.baseURL(useTestnet), url.QueryEscape(pair))

	resp, err := doRequest(ctx, "GET", u, nil, nil)
	if err != nil {
		return 0, err
	}
	var env bybitEnvelope
	if err := decodeJSON(resp, &env); err != nil {
		return 0, err
	}
	if env.RetCode != 0 {
		return 0, errors.Errorf("bybit api error %d: %s", env.RetCode, env.RetMsg)
	}
	var result struct {
		List []struct {
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}
	if err := json.Unmarshal(env.Result, &result); err != nil || len(result.List) == 0 {
		return 0, errors.New("empty ticker payload")
	}
	return strconv.ParseFloat(result.List[0].LastPrice, 64)
}

func (b *Bybit) signedPost(ctx context.Context, creds Credentials, path string, body map[string]string, useTestnet bool) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode body")
	}
	_, err = b.signedRequest(ctx, creds, "POST", path, payload, useTestnet)
	return err
}

// signedRequest performs one authenticated call and returns the result field.
func (b *Bybit) signedRequest(ctx context.Context, creds Credentials, method, path string, payload []byte, useTestnet bool) (json.RawMessage, error) {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	mac := hmac.New(sha256.New, []byte(creds.APISecret))
	mac.Write([]byte(timestamp + creds.APIKey + bybitRecvWindow + string(payload)))
	signature := hex.EncodeToString(mac.Sum(nil))

	headers := map[string]string{
		"X-BAPI-API-KEY":     creds.APIKey,
		"X-BAPI-TIMESTAMP":   timestamp,
		"X-BAPI-SIGN":        signature,
		"X-BAPI-RECV-WINDOW": bybitRecvWindow,
		"Content-Type":       "application/json",
	}

	resp, err := doRequest(ctx, method, b.baseURL(useTestnet)+path, headers, payload)
	if err != nil {
		return nil, err
	}

	var env bybitEnvelope
	if err := decodeJSON(resp, &env); err != nil {
		return nil, err
	}
	if env.RetCode != 0 {
		return nil, &bybitError{code: env.RetCode, msg: env.RetMsg}
	}
	return env.Result, nil
}

type bybitError struct {
	code int
	msg  string
}

func (e *bybitError) Error() string {
	return fmt.Sprintf("bybit api error %d: %s", e.code, e.msg)
}

func isBybitCode(err error, code int) bool {
	var be *bybitError
	return errors.As(err, &be) && be.code == code
}
