package collector

import "strings"

// Classifier는 공지가 신규 상장 공지인지 판별한다.
// 부정 패턴(상장폐지/유의 등)이 긍정 패턴보다 우선한다: 둘 다 매치되면 거부.
type Classifier struct {
	positive []string
	negative []string
}

// NewClassifier builds the default keyword classifier.
func NewClassifier() *Classifier {
	return &Classifier{
		positive: []string{
			// 한국 거래소 상장 공지 키워드
			"신규 거래지원", "거래지원", "디지털 자산 추가", "마켓 추가", "신규 상장", "상장",
			// 영문 공지 키워드
			"will list", "new listing", "lists", "listing", "launchpool", "added to",
		},
		negative: []string{
			// 상장의 반대 또는 경고성 공지
			"거래지원 종료", "상장폐지", "상장 폐지", "유의 종목", "투자유의", "거래 유의",
			"입출금 중단", "거래 중단",
			"delist", "delisting", "removal", "will remove", "suspension", "warning",
		},
	}
}

// IsListing checks every provided text field (title, body, tags...) against
// the keyword sets. Returns true only when some field matches a positive
// keyword and no field matches a negative one.
func (c *Classifier) IsListing(fields ...string) bool {
	matched := false
	for _, field := range fields {
		lower := strings.ToLower(field)
		for _, neg := range c.negative {
			if strings.Contains(lower, strings.ToLower(neg)) {
				return false
			}
		}
		if !matched {
			for _, pos := range c.positive {
				if strings.Contains(lower, strings.ToLower(pos)) {
					matched = true
					break
				}
			}
		}
	}
	return matched
}
