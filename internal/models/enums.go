package models

import (
	"fmt"
	"strings"
)

// Source identifies a listing announcement origin.
type Source string

const (
	SourceUpbit   Source = "UPBIT"
	SourceBithumb Source = "BITHUMB"
	SourceBinance Source = "BINANCE"
)

// Venue identifies a derivatives exchange where entries are placed.
type Venue string

const (
	VenueBinance Venue = "BINANCE"
	VenueBybit   Venue = "BYBIT"
	VenueOKX     Venue = "OKX"
	VenueGateio  Venue = "GATEIO"
	VenueBitget  Venue = "BITGET"
)

// AllVenues returns the closed set of supported venues in declaration order.
func AllVenues() []Venue {
	return []Venue{VenueBinance, VenueBybit, VenueOKX, VenueGateio, VenueBitget}
}

// ParseVenue resolves a case-insensitive venue name.
func ParseVenue(s string) (Venue, error) {
	v := Venue(strings.ToUpper(strings.TrimSpace(s)))
	switch v {
	case VenueBinance, VenueBybit, VenueOKX, VenueGateio, VenueBitget:
		return v, nil
	}
	return "", fmt.Errorf("unknown venue: %q", s)
}

// NetworkMode selects mainnet or testnet endpoints for an account or policy.
type NetworkMode string

const (
	ModeMainnet NetworkMode = "MAINNET"
	ModeTestnet NetworkMode = "TESTNET"
)

// ParseNetworkMode resolves a case-insensitive network mode name.
func ParseNetworkMode(s string) (NetworkMode, error) {
	m := NetworkMode(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case ModeMainnet, ModeTestnet:
		return m, nil
	}
	return "", fmt.Errorf("unknown network mode: %q", s)
}

// IsTestnet reports whether the mode targets testnet endpoints.
func (m NetworkMode) IsTestnet() bool {
	return m == ModeTestnet
}

// EntryType is how the automated entry order is placed. Only market entries
// are executed today; limit support is reserved in the policy schema.
type EntryType string

const (
	EntryMarket EntryType = "MARKET"
	EntryLimit  EntryType = "LIMIT"
)
