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
	"strings"
	"time"

	"github.com/pkg/errors"

	"coinsangjang/internal/models"
)

// OKX USDT-margined perpetual swap adapter.
//
// Signing: base64(HMAC-SHA256(isoTimestamp + method + requestPath + body))
// with OK-ACCESS-* headers. Demo trading shares the production host and is
// selected via the x-simulated-trading header.
type OKX struct {
	mainnetURL string
	testnetURL string
}

// NewOKX creates the OKX adapter.
func NewOKX(mainnetURL, testnetURL string) *OKX {
	return &OKX{mainnetURL: mainnetURL, testnetURL: testnetURL}
}

// Venue implements Adapter.
func (o *OKX) Venue() models.Venue { return models.VenueOKX }

// MaxLeverage implements Adapter.
func (o *OKX) MaxLeverage() int { return 100 }

func (o *OKX) baseURL(useTestnet bool) string {
	if useTestnet {
		return o.testnetURL
	}
	return o.mainnetURL
}

// instID maps a canonical pair to OKX instrument notation:
// "APTUSDT" -> "APT-USDT-SWAP".
func instID(pair string) string {
	base := strings.TrimSuffix(pair, "USDT")
	return base + "-USDT-SWAP"
}

type okxEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// FindSymbol queries the public instrument catalog. Code 51001 (instrument
// does not exist) is a legitimate "not listed".
func (o *OKX) FindSymbol(ctx context.Context, pair string, useTestnet bool) (bool, error) {
	u := fmt.Sprintf("%s/api/v5/public/instruments?instType=SWAP&instId=%s",
		o.baseURL(useTestnet), url.QueryEscape(instID(pair)))

	resp, err := doRequest(ctx, "GET", u, nil, nil)
	if err != nil {
		return false, errors.Wrap(err, "okx symbol lookup")
	}

	var env okxEnvelope
	if err := decodeJSON(resp, &env); err != nil {
		return false, errors.Wrap(err, "okx symbol lookup")
	}
	if env.Code == "51001" {
		return false, nil
	}
	if env.Code != "0" {
		return false, errors.Errorf("okx api error %s: %s", env.Code, env.Msg)
	}

	var instruments []json.RawMessage
	if err := json.Unmarshal(env.Data, &instruments); err != nil {
		return false, errors.Wrap(err, "okx symbol lookup")
	}
	return len(instruments) > 0, nil
}

// EnsureLeverage sets isolated leverage on the swap instrument.
func (o *OKX) EnsureLeverage(ctx context.Context, creds Credentials, pair string, leverage int, useTestnet bool) error {
	body := map[string]string{
		"instId":  instID(pair),
		"lever":   strconv.Itoa(leverage),
		"mgnMode": "isolated",
	}
	if _, err := o.signedCall(ctx, creds, "POST", "/api/v5/account/set-leverage", body, useTestnet); err != nil {
		return errors.Wrap(err, "okx set leverage")
	}
	return nil
}

// PlaceMarketOrder opens a long via a market order with attached TP/SL
// trigger prices expressed relative to the last traded price.
func (o *OKX) PlaceMarketOrder(ctx context.Context, creds Credentials, req OrderRequest, useTestnet bool) (*OrderResult, error) {
	body := map[string]interface{}{
		"instId":  instID(req.Symbol),
		"tdMode":  "isolated",
		"side":    "buy",
		"ordType": "market",
		"sz":      trimFloat(req.Quantity),
	}

	if last, err := o.lastPrice(ctx, req.Symbol, useTestnet); err == nil && last > 0 {
		attach := map[string]string{}
		if req.TakeProfitPct > 0 {
			attach["tpTriggerPx"] = trimFloat(last * (1 + req.TakeProfitPct/100))
			attach["tpOrdPx"] = "-1" // market take-profit
		}
		if req.StopLossPct > 0 {
			attach["slTriggerPx"] = trimFloat(last * (1 - req.StopLossPct/100))
			attach["slOrdPx"] = "-1" // market stop-loss
		}
		if len(attach) > 0 {
			body["attachAlgoOrds"] = []map[string]string{attach}
		}
	}

	data, err := o.signedCall(ctx, creds, "POST", "/api/v5/trade/order", body, useTestnet)
	if err != nil {
		return nil, errors.Wrap(err, "okx place order")
	}

	var acks []struct {
		OrdID string `json:"ordId"`
		SCode string `json:"sCode"`
		SMsg  string `json:"sMsg"`
	}
	if err := json.Unmarshal(data, &acks); err != nil || len(acks) == 0 {
		return nil, errors.New("okx place order: empty ack")
	}
	if acks[0].SCode != "0" {
		return nil, errors.Errorf("okx order rejected %s: %s", acks[0].SCode, acks[0].SMsg)
	}
	return &OrderResult{OrderID: acks[0].OrdID}, nil
}

func (o *OKX) lastPrice(ctx context.Context, pair string, useTestnet bool) (float64, error) {
	u := fmt.Sprintf("%s/api/v5/market/ticker?instId=%s",
		o.baseURL(useTestnet), url.QueryEscape(instID(pair)))

	resp, err := doRequest(ctx, "GET", u, nil, nil)
	if err != nil {
		return 0, err
	}
	var env okxEnvelope
	if err := decodeJSON(resp, &env); err != nil {
		return 0, err
	}
	var data []struct {
		Last string `json:"last"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || len(data) == 0 {
		return 0, errors.New("empty ticker payload")
	}
	return strconv.ParseFloat(data[0].Last, 64)
}

// signedCall performs one authenticated OKX call and returns the data field.
func (o *OKX) signedCall(ctx context.Context, creds Credentials, method, path string, body interface{}, useTestnet bool) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encode body")
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	mac := hmac.New(sha256.New, []byte(creds.APISecret))
	mac.Write([]byte(timestamp + method + path + string(payload)))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	headers := map[string]string{
		"OK-ACCESS-KEY":        creds.APIKey,
		"OK-ACCESS-SIGN":       signature,
		"OK-ACCESS-TIMESTAMP":  timestamp,
		"OK-ACCESS-PASSPHRASE": creds.Passphrase,
		"Content-Type":         "application/json",
	}
	if useTestnet {
		headers["x-simulated-trading"] = "1"
	}

	resp, err := doRequest(ctx, method, o.baseURL(useTestnet)+path, headers, payload)
	if err != nil {
		return nil, err
	}

	var env okxEnvelope
	if err := decodeJSON(resp, &env); err != nil {
		return nil, err
	}
	if env.Code != "0" {
		return nil, errors.Errorf("okx api error %s: %s", env.Code, env.Msg)
	}
	return env.Data, nil
}
