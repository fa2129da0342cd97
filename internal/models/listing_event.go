package models

import "time"

// RawNotice is one announcement item as fetched from a notice board.
// Only the ID and derived fields outlive the poll cycle.
type RawNotice struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Body        string            `json:"body,omitempty"`
	PublishedAt time.Time         `json:"published_at"`
	Fields      map[string]string `json:"fields,omitempty"` // source-specific extras (category, tags, url)
}

// VenueAvailability is a point-in-time diagnostic of whether a symbol is
// tradable on one venue. It is always re-derived; CheckedAt bounds its validity.
type VenueAvailability struct {
	Venue     Venue     `json:"venue"`
	Available bool      `json:"available"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

// ListingEvent is a normalized, deduplicated record of a newly detected
// listing announcement. Append-only: after creation only MarketsSnapshot
// enrichment and the Processed flag may change.
type ListingEvent struct {
	ID              string              `json:"id"` // "<source>:<notice-id>"
	Source          Source              `json:"source"`
	Symbol          string              `json:"symbol"`      // canonical pair, e.g. "APTUSDT"
	BaseSymbol      string              `json:"base_symbol"` // raw ticker, e.g. "APT"
	Title           string              `json:"title,omitempty"`
	AnnouncedAt     time.Time           `json:"announced_at"`
	ReceivedAt      time.Time           `json:"received_at"`
	MarketsSnapshot []VenueAvailability `json:"markets_snapshot,omitempty"`
	Processed       bool                `json:"processed"`
}

// EventID builds the dedup identity of a listing event.
func EventID(source Source, noticeID string) string {
	return string(source) + ":" + noticeID
}
