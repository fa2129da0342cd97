package collector

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"coinsangjang/internal/models"
)

// noticeTimeLayouts covers the announcement timestamp formats seen across
// the supported boards.
var noticeTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05+09:00",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseNoticeTime(s string) time.Time {
	for _, layout := range noticeTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	// epoch millis (Binance CMS)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 1_000_000_000_000 {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}

// upbitEnvelope matches the Upbit announcement board API.
type upbitEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		Notices []upbitNotice `json:"notices"`
		List    []upbitNotice `json:"list"` // newer API revision
	} `json:"data"`
}

type upbitNotice struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Category      string `json:"category"`
	ListedAt      string `json:"listed_at"`
	FirstListedAt string `json:"first_listed_at"`
}

func parseUpbitNotices(body []byte) ([]models.RawNotice, error) {
	var env upbitEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("업비트 응답 파싱 실패: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("업비트 API 응답 실패")
	}

	raw := env.Data.Notices
	if len(raw) == 0 {
		raw = env.Data.List
	}

	notices := make([]models.RawNotice, 0, len(raw))
	for _, n := range raw {
		listedAt := n.FirstListedAt
		if listedAt == "" {
			listedAt = n.ListedAt
		}
		notices = append(notices, models.RawNotice{
			ID:          strconv.FormatInt(n.ID, 10),
			Title:       n.Title,
			PublishedAt: parseNoticeTime(listedAt),
			Fields:      map[string]string{"category": n.Category},
		})
	}
	return notices, nil
}

// bithumbEnvelope matches the Bithumb notice API (both the bare-array and
// wrapped form).
type bithumbNotice struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Categories  string `json:"categories"`
	PublishedAt string `json:"published_at"`
}

func parseBithumbNotices(body []byte) ([]models.RawNotice, error) {
	var raw []bithumbNotice
	if err := json.Unmarshal(body, &raw); err != nil {
		var wrapped struct {
			Data []bithumbNotice `json:"data"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil {
			return nil, fmt.Errorf("빗썸 응답 파싱 실패: %w", err)
		}
		raw = wrapped.Data
	}

	notices := make([]models.RawNotice, 0, len(raw))
	for _, n := range raw {
		notices = append(notices, models.RawNotice{
			ID:          strconv.FormatInt(n.ID, 10),
			Title:       n.Title,
			PublishedAt: parseNoticeTime(n.PublishedAt),
			Fields:      map[string]string{"category": n.Categories},
		})
	}
	return notices, nil
}

// binanceEnvelope matches the Binance CMS announcement catalog API.
type binanceEnvelope struct {
	Data struct {
		Catalogs []struct {
			Articles []struct {
				ID          int64  `json:"id"`
				Code        string `json:"code"`
				Title       string `json:"title"`
				ReleaseDate int64  `json:"releaseDate"`
			} `json:"articles"`
		} `json:"catalogs"`
	} `json:"data"`
}

func parseBinanceNotices(body []byte) ([]models.RawNotice, error) {
	var env binanceEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("바이낸스 응답 파싱 실패: %w", err)
	}

	var notices []models.RawNotice
	for _, catalog := range env.Data.Catalogs {
		for _, a := range catalog.Articles {
			id := a.Code
			if id == "" {
				id = strconv.FormatInt(a.ID, 10)
			}
			notices = append(notices, models.RawNotice{
				ID:          id,
				Title:       a.Title,
				PublishedAt: time.UnixMilli(a.ReleaseDate),
			})
		}
	}
	return notices, nil
}

// parserFor returns the payload parser for a source.
func parserFor(source models.Source) (func([]byte) ([]models.RawNotice, error), error) {
	switch source {
	case models.SourceUpbit:
		return parseUpbitNotices, nil
	case models.SourceBithumb:
		return parseBithumbNotices, nil
	case models.SourceBinance:
		return parseBinanceNotices, nil
	default:
		return nil, fmt.Errorf("지원하지 않는 소스: %s", source)
	}
}
