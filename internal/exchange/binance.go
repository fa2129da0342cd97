package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"coinsangjang/internal/logging"
	"coinsangjang/internal/models"
)

// Binance USDT-M futures adapter. This is the reference implementation of the
// capability contract: every request parameter set matches the official
// Binance Futures REST documentation.
//
// Signing: HMAC-SHA256 over the canonical query string (hex), appended as
// the `signature` parameter, API key in the X-MBX-APIKEY header.
type Binance struct {
	mainnetURL string
	testnetURL string
}

// NewBinance creates the Binance futures adapter.
func NewBinance(mainnetURL, testnetURL string) *Binance {
	return &Binance{mainnetURL: mainnetURL, testnetURL: testnetURL}
}

// Venue implements Adapter.
func (b *Binance) Venue() models.Venue { return models.VenueBinance }

// MaxLeverage implements Adapter.
func (b *Binance) MaxLeverage() int { return 125 }

func (b *Binance) baseURL(useTestnet bool) string {
	if useTestnet {
		return b.testnetURL
	}
	return b.mainnetURL
}

// FindSymbol checks the futures symbol catalog. Binance answers an unknown
// symbol with HTTP 400 code -1121, which is a legitimate "not listed" and
// never an error here.
func (b *Binance) FindSymbol(ctx context.Context, pair string, useTestnet bool) (bool, error) {
	u := fmt.Sprintf("%s/fapi/v1/premiumIndex?symbol=%s", b.baseURL(useTestnet), url.QueryEscape(pair))

	resp, err := doRequest(ctx, "GET", u, nil, nil)
	if err != nil {
		return false, errors.Wrap(err, "binance symbol lookup")
	}
	if is2xx(resp.StatusCode) {
		return true, nil
	}
	if resp.StatusCode == 400 || resp.StatusCode == 404 {
		return false, nil
	}
	return false, errors.Errorf("binance symbol lookup: unexpected status %d", resp.StatusCode)
}

// EnsureLeverage sets the initial leverage for the symbol.
func (b *Binance) EnsureLeverage(ctx context.Context, creds Credentials, pair string, leverage int, useTestnet bool) error {
	params := url.Values{}
	params.Set("symbol", pair)
	params.Set("leverage", strconv.Itoa(leverage))

	var ack struct {
		Leverage int    `json:"leverage"`
		Symbol   string `json:"symbol"`
	}
	if err := b.signedCall(ctx, creds, "POST", "/fapi/v1/leverage", params, useTestnet, &ack); err != nil {
		return errors.Wrap(err, "binance set leverage")
	}
	return nil
}

// PlaceMarketOrder opens a long market position and then attaches best-effort
// take-profit / stop-loss close orders priced off the fill price. A TP/SL
// placement failure is logged and does not fail the entry.
func (b *Binance) PlaceMarketOrder(ctx context.Context, creds Credentials, req OrderRequest, useTestnet bool) (*OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", "BUY")
	params.Set("type", "MARKET")
	params.Set("quantity", trimFloat(req.Quantity))
	params.Set("newOrderRespType", "RESULT")

	var ack struct {
		OrderID  int64  `json:"orderId"`
		Status   string `json:"status"`
		AvgPrice string `json:"avgPrice"`
	}
	if err := b.signedCall(ctx, creds, "POST", "/fapi/v1/order", params, useTestnet, &ack); err != nil {
		return nil, errors.Wrap(err, "binance place order")
	}

	result := &OrderResult{OrderID: strconv.FormatInt(ack.OrderID, 10)}

	fill, err := strconv.ParseFloat(ack.AvgPrice, 64)
	if err != nil || fill <= 0 {
		logging.Warn("[BINANCE] 체결가 파싱 실패, TP/SL 주문 생략 (orderId=%s)", result.OrderID)
		return result, nil
	}

	if req.TakeProfitPct > 0 {
		tp := fill * (1 + req.TakeProfitPct/100)
		if err := b.placeClose(ctx, creds, req.Symbol, "TAKE_PROFIT_MARKET", tp, useTestnet); err != nil {
			logging.Warn("[BINANCE] TP 주문 실패 (%s): %v", req.Symbol, err)
		}
	}
	if req.StopLossPct > 0 {
		sl := fill * (1 - req.StopLossPct/100)
		if err := b.placeClose(ctx, creds, req.Symbol, "STOP_MARKET", sl, useTestnet); err != nil {
			logging.Warn("[BINANCE] SL 주문 실패 (%s): %v", req.Symbol, err)
		}
	}

	return result, nil
}

// placeClose places one closePosition trigger order.
func (b *Binance) placeClose(ctx context.Context, creds Credentials, pair, orderType string, stopPrice float64, useTestnet bool) error {
	params := url.Values{}
	params.Set("symbol", pair)
	params.Set("side", "SELL")
	params.Set("type", orderType)
	params.Set("stopPrice", trimFloat(stopPrice))
	params.Set("closePosition", "true")

	var ack struct {
		OrderID int64 `json:"orderId"`
	}
	return b.signedCall(ctx, creds, "POST", "/fapi/v1/order", params, useTestnet, &ack)
}

// signedCall signs params with timestamp + HMAC and decodes the JSON reply.
func (b *Binance) signedCall(ctx context.Context, creds Credentials, method, path string, params url.Values, useTestnet bool, out interface{}) error {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", "5000")

	query := params.Encode()
	mac := hmac.New(sha256.New, []byte(creds.APISecret))
	mac.Write([]byte(query))
	query += "&signature=" + hex.EncodeToString(mac.Sum(nil))

	u := b.baseURL(useTestnet) + path + "?" + query
	headers := map[string]string{
		"X-MBX-APIKEY": creds.APIKey,
	}

	resp, err := doRequest(ctx, method, u, headers, nil)
	if err != nil {
		return err
	}
	if !is2xx(resp.StatusCode) {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if decodeJSON(resp, &apiErr) == nil && apiErr.Msg != "" {
			return errors.Errorf("binance api error %d: %s", apiErr.Code, apiErr.Msg)
		}
		return errors.Errorf("binance api status %d", resp.StatusCode)
	}
	return decodeJSON(resp, out)
}

// trimFloat renders a float without trailing zeros, venue-friendly.
func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
