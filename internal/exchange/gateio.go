package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"coinsangjang/internal/logging"
	"coinsangjang/internal/models"
)

// Gate.io USDT futures adapter.
//
// Signing: SIGN = hex(HMAC-SHA512(method\npath\nquery\nhexsha512(body)\nts))
// with KEY / Timestamp / SIGN headers.
type Gateio struct {
	mainnetURL string
	testnetURL string
}

// NewGateio creates the Gate.io futures adapter.
func NewGateio(mainnetURL, testnetURL string) *Gateio {
	return &Gateio{mainnetURL: mainnetURL, testnetURL: testnetURL}
}

// Venue implements Adapter.
func (g *Gateio) Venue() models.Venue { return models.VenueGateio }

// MaxLeverage implements Adapter.
func (g *Gateio) MaxLeverage() int { return 100 }

func (g *Gateio) baseURL(useTestnet bool) string {
	if useTestnet {
		return g.testnetURL
	}
	return g.mainnetURL
}

// contractName maps a canonical pair to Gate notation: "APTUSDT" -> "APT_USDT".
func contractName(pair string) string {
	base := strings.TrimSuffix(pair, "USDT")
	return base + "_USDT"
}

// FindSymbol fetches the single contract record; 404 means not listed.
func (g *Gateio) FindSymbol(ctx context.Context, pair string, useTestnet bool) (bool, error) {
	u := fmt.Sprintf("%s/api/v4/futures/usdt/contracts/%s",
		g.baseURL(useTestnet), url.PathEscape(contractName(pair)))

	resp, err := doRequest(ctx, "GET", u, nil, nil)
	if err != nil {
		return false, errors.Wrap(err, "gateio symbol lookup")
	}
	if resp.StatusCode == 404 {
		return false, nil
	}
	if !is2xx(resp.StatusCode) {
		return false, errors.Errorf("gateio symbol lookup: unexpected status %d", resp.StatusCode)
	}
	return true, nil
}

// EnsureLeverage updates position leverage for the contract.
func (g *Gateio) EnsureLeverage(ctx context.Context, creds Credentials, pair string, leverage int, useTestnet bool) error {
	path := fmt.Sprintf("/api/v4/futures/usdt/positions/%s/leverage", contractName(pair))
	query := "leverage=" + strconv.Itoa(leverage)

	if _, err := g.signedCall(ctx, creds, "POST", path, query, nil, useTestnet); err != nil {
		return errors.Wrap(err, "gateio set leverage")
	}
	return nil
}

// PlaceMarketOrder opens a long IOC order at market and then attaches
// best-effort price-triggered close orders for TP/SL. Gate sizes futures
// orders in integer contracts, so the quantity is rounded up to at least one
// contract; TP/SL live on the separate price_orders surface and their
// failure never fails the entry.
func (g *Gateio) PlaceMarketOrder(ctx context.Context, creds Credentials, req OrderRequest, useTestnet bool) (*OrderResult, error) {
	size := int64(math.Ceil(req.Quantity))
	if size < 1 {
		size = 1
	}

	body, err := json.Marshal(map[string]interface{}{
		"contract": contractName(req.Symbol),
		"size":     size,
		"price":    "0", // market
		"tif":      "ioc",
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode body")
	}

	data, err := g.signedCall(ctx, creds, "POST", "/api/v4/futures/usdt/orders", "", body, useTestnet)
	if err != nil {
		return nil, errors.Wrap(err, "gateio place order")
	}

	var ack struct {
		ID        int64  `json:"id"`
		FillPrice string `json:"fill_price"`
	}
	if err := json.Unmarshal(data, &ack); err != nil {
		return nil, errors.Wrap(err, "gateio place order")
	}
	result := &OrderResult{OrderID: strconv.FormatInt(ack.ID, 10)}

	fill, err := strconv.ParseFloat(ack.FillPrice, 64)
	if err != nil || fill <= 0 {
		logging.Warn("[GATEIO] 체결가 파싱 실패, TP/SL 트리거 생략 (orderId=%s)", result.OrderID)
		return result, nil
	}

	if req.TakeProfitPct > 0 {
		tp := fill * (1 + req.TakeProfitPct/100)
		if err := g.placeTrigger(ctx, creds, req.Symbol, tp, 1, useTestnet); err != nil {
			logging.Warn("[GATEIO] TP 트리거 주문 실패 (%s): %v", req.Symbol, err)
		}
	}
	if req.StopLossPct > 0 {
		sl := fill * (1 - req.StopLossPct/100)
		if err := g.placeTrigger(ctx, creds, req.Symbol, sl, 2, useTestnet); err != nil {
			logging.Warn("[GATEIO] SL 트리거 주문 실패 (%s): %v", req.Symbol, err)
		}
	}

	return result, nil
}

// placeTrigger places one price-triggered full close of the long position.
// rule 1 triggers at price >= trigger (take profit), rule 2 at <= (stop loss).
func (g *Gateio) placeTrigger(ctx context.Context, creds Credentials, pair string, triggerPrice float64, rule int, useTestnet bool) error {
	body, err := json.Marshal(map[string]interface{}{
		"initial": map[string]interface{}{
			"contract":  contractName(pair),
			"size":      0,
			"price":     "0",
			"tif":       "ioc",
			"auto_size": "close_long",
		},
		"trigger": map[string]interface{}{
			"strategy_type": 0,
			"price_type":    0,
			"price":         trimFloat(triggerPrice),
			"rule":          rule,
		},
	})
	if err != nil {
		return errors.Wrap(err, "encode body")
	}

	_, err = g.signedCall(ctx, creds, "POST", "/api/v4/futures/usdt/price_orders", "", body, useTestnet)
	return err
}

// signedCall performs one authenticated Gate.io call.
func (g *Gateio) signedCall(ctx context.Context, creds Credentials, method, path, query string, body []byte, useTestnet bool) ([]byte, error) {
	bodyHash := sha512.Sum512(body)
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	signString := strings.Join([]string{
		method, path, query, hex.EncodeToString(bodyHash[:]), timestamp,
	}, "\n")
	mac := hmac.New(sha512.New, []byte(creds.APISecret))
	mac.Write([]byte(signString))

	headers := map[string]string{
		"KEY":          creds.APIKey,
		"Timestamp":    timestamp,
		"SIGN":         hex.EncodeToString(mac.Sum(nil)),
		"Content-Type": "application/json",
	}

	u := g.baseURL(useTestnet) + path
	if query != "" {
		u += "?" + query
	}

	resp, err := doRequest(ctx, method, u, headers, body)
	if err != nil {
		return nil, err
	}
	if !is2xx(resp.StatusCode) {
		var apiErr struct {
			Label   string `json:"label"`
			Message string `json:"message"`
		}
		if decodeJSON(resp, &apiErr) == nil && apiErr.Label != "" {
			return nil, errors.Errorf("gateio api error %s: %s", apiErr.Label, apiErr.Message)
		}
		return nil, errors.Errorf("gateio api status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
