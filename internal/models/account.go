package models

import "time"

// ExchangeAccount holds one venue API credential set. Credentials are stored
// encrypted (vault ciphertext) and decrypted immediately before signing.
// Account administration is out of scope; the pipeline consumes these read-only.
type ExchangeAccount struct {
	ID                  string            `json:"id"`
	OwnerID             string            `json:"owner_id"`
	Venue               Venue             `json:"venue"`
	NetworkMode         NetworkMode       `json:"network_mode"`
	EncryptedAPIKey     string            `json:"encrypted_api_key"`
	EncryptedAPISecret  string            `json:"encrypted_api_secret"`
	EncryptedPassphrase string            `json:"encrypted_passphrase,omitempty"` // OKX/Bitget only
	DefaultLeverage     int               `json:"default_leverage"`
	IsActive            bool              `json:"is_active"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// TradeOutcome is the terminal state of one per-account order attempt.
type TradeOutcome string

const (
	TradeSuccess TradeOutcome = "SUCCESS"
	TradeFailed  TradeOutcome = "FAILED"
)

// TradeAttempt records one (account, job) order attempt. Failures are recorded
// and never roll back sibling attempts.
type TradeAttempt struct {
	AccountID string       `json:"account_id"`
	Symbol    string       `json:"symbol"`
	Venue     Venue        `json:"venue"`
	Quantity  float64      `json:"quantity"`
	Outcome   TradeOutcome `json:"outcome"`
	OrderID   string       `json:"order_id,omitempty"`
	Error     string       `json:"error,omitempty"`
	At        time.Time    `json:"at"`
}
