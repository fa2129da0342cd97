package symbol

import (
	"regexp"
	"strings"
)

// Extractor pulls a candidate ticker out of announcement text using an
// ordered rule cascade. The first rule producing a valid 2-10 character
// alphanumeric token wins.
type Extractor struct {
	patternParen    *regexp.Regexp // Rule 1: 셀레스티아(TIA), "Aptos (APT)"
	patternMarket   *regexp.Regexp // Rule 2: KRW-APT, BTC-APT, USDT-APT
	patternBracket  *regexp.Regexp // Rule 3: [APT], 【APT】
	patternHashtag  *regexp.Regexp // Rule 4: #APT
	patternBare     *regexp.Regexp // Rule 5: bare uppercase token
	validSymbol     *regexp.Regexp
	listingKeywords []string
}

// NewExtractor compiles the rule patterns.
func NewExtractor() *Extractor {
	return &Extractor{
		patternParen:   regexp.MustCompile(`\(([A-Z0-9]{2,10})\)`),
		patternMarket:  regexp.MustCompile(`(?:KRW|BTC|USDT)-([A-Z0-9]{2,10})`),
		patternBracket: regexp.MustCompile(`[\[【]([A-Z0-9]{2,10})[\]】]`),
		patternHashtag: regexp.MustCompile(`#([A-Za-z0-9]{2,10})\b`),
		patternBare:    regexp.MustCompile(`\b([A-Z0-9]{2,10})\b`),
		validSymbol:    regexp.MustCompile(`^[A-Z0-9]{2,10}$`),
		// bare tokens only count when the text also carries a listing keyword
		listingKeywords: []string{
			"상장", "신규 거래지원", "거래지원", "마켓 추가", "디지털 자산 추가",
			"listing", "will list", "new listing", "lists",
		},
	}
}

// Extract applies the rule cascade to the given text and returns the first
// valid ticker candidate, or "" when no rule matches. Each rule scans every
// match it produces and skips stopword tokens; a rule that yields only
// stopwords falls through to the next rule ("APT(KRW) ..." must extract APT,
// never the quote currency).
func (e *Extractor) Extract(text string) string {
	for _, pattern := range []*regexp.Regexp{e.patternParen, e.patternMarket, e.patternBracket} {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			if tok := m[1]; !isStopword(tok) {
				return tok
			}
		}
	}
	for _, m := range e.patternHashtag.FindAllStringSubmatch(text, -1) {
		if tok := strings.ToUpper(m[1]); e.validSymbol.MatchString(tok) && !isStopword(tok) {
			return tok
		}
	}
	// Rule 5: a bare ticker token is only trusted next to a listing keyword.
	if e.hasListingKeyword(text) {
		for _, m := range e.patternBare.FindAllStringSubmatch(text, -1) {
			if tok := m[1]; !isStopword(tok) {
				return tok
			}
		}
	}
	return ""
}

// Valid reports whether a token has the accepted ticker shape.
func (e *Extractor) Valid(token string) bool {
	return e.validSymbol.MatchString(token)
}

func (e *Extractor) hasListingKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range e.listingKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// stopwords are uppercase tokens that show up in notice titles but are never
// the listed asset itself.
var stopwords = map[string]bool{
	"KRW": true, "BTC": true, "ETH": true, "USDT": true, "USDC": true,
	"API": true, "IEO": true, "NFT": true, "FAQ": true, "NEW": true,
	"EVENT": true, "UPDATE": true, "NOTICE": true, "MARKET": true,
}

func isStopword(token string) bool {
	return stopwords[token]
}
