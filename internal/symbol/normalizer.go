package symbol

import (
	"fmt"
	"regexp"
	"strings"
)

// QuoteSuffix is the quote currency every canonical pair ends with.
const QuoteSuffix = "USDT"

// maxBaseLen is the longest sanitized token we accept as a ticker.
const maxBaseLen = 10

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

// Normalize turns raw ticker text into a canonical trading pair.
// It strips every non-alphanumeric character, uppercases, and appends the
// quote suffix unless already present. Pure function; safe for property tests.
//
//	Normalize("apt")     -> "APTUSDT"
//	Normalize("AptUsdt") -> "APTUSDT"
//	Normalize("###")     -> error
func Normalize(raw string) (string, error) {
	s := strings.ToUpper(nonAlnum.ReplaceAllString(raw, ""))
	if s == "" {
		return "", fmt.Errorf("no alphanumeric content in %q", raw)
	}
	if strings.HasSuffix(s, QuoteSuffix) {
		return s, nil
	}
	if len(s) > maxBaseLen {
		return "", fmt.Errorf("ticker %q too long to normalize", s)
	}
	return s + QuoteSuffix, nil
}
