package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"coinsangjang/internal/logging"
	"coinsangjang/internal/models"
)

// Bitget USDT-FUTURES (V2 API) adapter.
//
// Signing: base64(HMAC-SHA256(timestamp + method + requestPath + query + body))
// with ACCESS-KEY / ACCESS-SIGN / ACCESS-TIMESTAMP / ACCESS-PASSPHRASE headers.
type Bitget struct {
	mainnetURL string
	testnetURL string
}

// NewBitget creates the Bitget futures adapter.
func NewBitget(mainnetURL, testnetURL string) *Bitget {
	return &Bitget{mainnetURL: mainnetURL, testnetURL: testnetURL}
}

// Venue implements Adapter.
func (b *Bitget) Venue() models.Venue { return models.VenueBitget }

// MaxLeverage implements Adapter.
func (b *Bitget) MaxLeverage() int { return 125 }

func (b *Bitget) baseURL(useTestnet bool) string {
	if useTestnet {
		return b.testnetURL
	}
	return b.mainnetURL
}

type bitgetEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// FindSymbol queries the public contract catalog. Code 00000 with an empty
// data array means "not listed", not an error.
func (b *Bitget) FindSymbol(ctx context.Context, pair string, useTestnet bool) (bool, error) {
	u := fmt.Sprintf("%s/api/v2/mix/market/contracts?productType=USDT-FUTURES&symbol=%s",
		b.baseURL(useTestnet), url.QueryEscape(pair))

	resp, err := doRequest(ctx, "GET", u, nil, nil)
	if err != nil {
		return false, errors.Wrap(err, "bitget symbol lookup")
	}
	if resp.StatusCode == 404 {
		return false, nil
	}

	var env bitgetEnvelope
	if err := decodeJSON(resp, &env); err != nil {
		return false, errors.Wrap(err, "bitget symbol lookup")
	}
	if env.Code != "00000" {
		// 40034: parameter does not exist — Bitget's unknown-symbol answer
		if env.Code == "40034" {
			return false, nil
		}
		return false, errors.Errorf("bitget api error %s: %s", env.Code, env.Msg)
	}

	var contracts []json.RawMessage
	if err := json.Unmarshal(env.Data, &contracts); err != nil {
		return false, errors.Wrap(err, "bitget symbol lookup")
	}
	return len(contracts) > 0, nil
}

// EnsureLeverage sets isolated leverage on the USDT-margined contract.
func (b *Bitget) EnsureLeverage(ctx context.Context, creds Credentials, pair string, leverage int, useTestnet bool) error {
	body := map[string]string{
		"symbol":      pair,
		"productType": "USDT-FUTURES",
		"marginCoin":  "USDT",
		"leverage":    strconv.Itoa(leverage),
	}
	if err := b.signedCall(ctx, creds, "POST", "/api/v2/mix/account/set-leverage", body, useTestnet, nil); err != nil {
		return errors.Wrap(err, "bitget set leverage")
	}
	return nil
}

// PlaceMarketOrder opens a long with preset TP/SL prices derived from the
// current mark price. A mark price fetch failure drops the presets only.
func (b *Bitget) PlaceMarketOrder(ctx context.Context, creds Credentials, req OrderRequest, useTestnet bool) (*OrderResult, error) {
	body := map[string]string{
		"symbol":      req.Symbol,
		"productType": "USDT-FUTURES",
		"marginMode":  "isolated",
		"marginCoin":  "USDT",
		"size":        trimFloat(req.Quantity),
		"side":        "buy",
		"tradeSide":   "open",
		"orderType":   "market",
	}

	if mark, err := b.markPrice(ctx, req.Symbol, useTestnet); err != nil {
		logging.Warn("[BITGET] 마크가격 조회 실패, TP/SL 프리셋 생략 (%s): %v", req.Symbol, err)
	} else {
		if req.TakeProfitPct > 0 {
			body["presetStopSurplusPrice"] = trimFloat(mark * (1 + req.TakeProfitPct/100))
		}
		if req.StopLossPct > 0 {
			body["presetStopLossPrice"] = trimFloat(mark * (1 - req.StopLossPct/100))
		}
	}

	var ack struct {
		OrderID string `json:"orderId"`
	}
	if err := b.signedCall(ctx, creds, "POST", "/api/v2/mix/order/place-order", body, useTestnet, &ack); err != nil {
		return nil, errors.Wrap(err, "bitget place order")
	}
	return &OrderResult{OrderID: ack.OrderID}, nil
}

func (b *Bitget) markPrice(ctx context.Context, pair string, useTestnet bool) (float64, error) {
	u := fmt.Sprintf("%s/api/v2/mix/market/symbol-price?productType=USDT-FUTURES&symbol=%s",
		b.baseURL(useTestnet), url.QueryEscape(pair))

	resp, err := doRequest(ctx, "GET", u, nil, nil)
	if err != nil {
		return 0, err
	}
	var env bitgetEnvelope
	if err := decodeJSON(resp, &env); err != nil {
		return 0, err
	}
	if env.Code != "00000" {
		return 0, errors.Errorf("bitget api error %s: %s", env.Code, env.Msg)
	}
	var data []struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || len(data) == 0 {
		return 0, errors.New("empty price payload")
	}
	return strconv.ParseFloat(data[0].Price, 64)
}

// signedCall signs a JSON-body request per Bitget V2 and decodes the data
// field into out when non-nil.
func (b *Bitget) signedCall(ctx context.Context, creds Credentials, method, path string, body map[string]string, useTestnet bool, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode body")
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	preSign := timestamp + method + path + string(payload)

	mac := hmac.New(sha256.New, []byte(creds.APISecret))
	mac.Write([]byte(preSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	headers := map[string]string{
		"ACCESS-KEY":        creds.APIKey,
		"ACCESS-SIGN":       signature,
		"ACCESS-TIMESTAMP":  timestamp,
		"ACCESS-PASSPHRASE": creds.Passphrase,
		"Content-Type":      "application/json",
		"locale":            "en-US",
	}

	resp, err := doRequest(ctx, method, b.baseURL(useTestnet)+path, headers, payload)
	if err != nil {
		return err
	}

	var env bitgetEnvelope
	if err := decodeJSON(resp, &env); err != nil {
		return err
	}
	if env.Code != "00000" {
		return errors.Errorf("bitget api error %s: %s", env.Code, env.Msg)
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}
