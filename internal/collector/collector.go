package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"coinsangjang/internal/config"
	"coinsangjang/internal/dedup"
	"coinsangjang/internal/logging"
	"coinsangjang/internal/models"
	"coinsangjang/internal/symbol"
)

// fetchTimeout bounds one notice board HTTP call.
const fetchTimeout = 10 * time.Second

// ListingHandler receives a pre-normalization listing event candidate.
type ListingHandler func(candidate models.ListingEvent)

// Collector는 설정된 공지 소스들을 각자의 주기로 폴링하여
// 신규 상장 공지를 후보 이벤트로 변환한다.
type Collector struct {
	sources    []config.SourceConfig
	seen       *dedup.SeenStore
	classifier *Classifier
	extractor  *symbol.Extractor
	client     *http.Client
	log        *logging.Logger

	onListing ListingHandler

	wg sync.WaitGroup
}

// New creates a collector. The handler is invoked once per newly seen,
// classified-positive notice per extracted symbol.
func New(sources []config.SourceConfig, seen *dedup.SeenStore, log *logging.Logger, handler ListingHandler) *Collector {
	return &Collector{
		sources:    sources,
		seen:       seen,
		classifier: NewClassifier(),
		extractor:  symbol.NewExtractor(),
		client:     &http.Client{Timeout: fetchTimeout},
		log:        log,
		onListing:  handler,
	}
}

// Start launches one poll loop per enabled source. Blocking calls stop when
// ctx is cancelled; Wait() joins the loops.
func (c *Collector) Start(ctx context.Context) {
	for _, src := range c.sources {
		if !src.Enabled {
			c.log.Info("[COLLECTOR] 소스 비활성화: %s", src.Name)
			continue
		}
		c.wg.Add(1)
		go c.pollLoop(ctx, src)
	}
}

// Wait blocks until all poll loops have stopped.
func (c *Collector) Wait() {
	c.wg.Wait()
}

// pollLoop runs the fixed-interval poll cycle for one source.
func (c *Collector) pollLoop(ctx context.Context, src config.SourceConfig) {
	defer c.wg.Done()
	defer logging.RecoverPanic(fmt.Sprintf("collector.%s", src.Name))

	c.log.Info("[COLLECTOR] %s 폴링 시작 (간격 %v, 엔드포인트 %d개)",
		src.Name, src.PollInterval(), len(src.Endpoints))

	ticker := time.NewTicker(src.PollInterval())
	defer ticker.Stop()

	// 초기 1회 수집
	c.pollOnce(ctx, src)

	for {
		select {
		case <-ctx.Done():
			c.log.Info("[COLLECTOR] %s 폴링 종료", src.Name)
			return
		case <-ticker.C:
			c.pollOnce(ctx, src)
		}
	}
}

// pollOnce fetches the notice board once, trying endpoints in order until one
// answers. A full endpoint failure skips this cycle only; the next tick
// retries naturally.
func (c *Collector) pollOnce(ctx context.Context, src config.SourceConfig) {
	notices, err := c.fetchNotices(ctx, src)
	if err != nil {
		c.log.Warn("[COLLECTOR] %s 수집 실패 (이번 주기 건너뜀): %v", src.Name, err)
		return
	}

	// stable input order within one poll
	for _, notice := range notices {
		c.HandleNotice(src.Name, notice)
	}
}

// fetchNotices tries each configured endpoint for the source in order.
func (c *Collector) fetchNotices(ctx context.Context, src config.SourceConfig) ([]models.RawNotice, error) {
	parse, err := parserFor(src.Name)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for i, endpoint := range src.Endpoints {
		body, err := c.fetch(ctx, endpoint)
		if err != nil {
			lastErr = err
			c.log.Debug("[COLLECTOR] %s 엔드포인트 %d/%d 실패: %v", src.Name, i+1, len(src.Endpoints), err)
			continue
		}
		notices, err := parse(body)
		if err != nil {
			lastErr = err
			continue
		}
		return notices, nil
	}
	return nil, fmt.Errorf("모든 엔드포인트 실패: %w", lastErr)
}

func (c *Collector) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("요청 생성 실패: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:139.0) Gecko/20100101 Firefox/139.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP 요청 실패: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limit (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP 응답 오류: %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

// HandleNotice processes one raw notice for a source. The notice id is marked
// seen regardless of classification outcome so it is never re-evaluated; a
// second call with the same id emits nothing. Exported for the inbound push
// path and tests.
func (c *Collector) HandleNotice(source models.Source, notice models.RawNotice) {
	if notice.ID == "" {
		c.log.Debug("[COLLECTOR] %s ID 없는 공지 건너뜀: %q", source, notice.Title)
		return
	}
	if !c.seen.MarkSeen(source, notice.ID) {
		return
	}

	fields := []string{notice.Title, notice.Body}
	for _, extra := range notice.Fields {
		fields = append(fields, extra)
	}
	if !c.classifier.IsListing(fields...) {
		return
	}

	ticker := c.extractor.Extract(notice.Title)
	if ticker == "" && notice.Body != "" {
		ticker = c.extractor.Extract(notice.Body)
	}
	if ticker == "" {
		c.log.Debug("[COLLECTOR] %s 상장 공지에서 심볼 추출 실패: %q", source, notice.Title)
		return
	}

	announcedAt := notice.PublishedAt
	if announcedAt.IsZero() {
		announcedAt = time.Now()
	}

	c.log.Info("🚨 [COLLECTOR] %s 신규 상장 감지: %s (%q)", source, ticker, notice.Title)

	if c.onListing != nil {
		c.onListing(models.ListingEvent{
			ID:          models.EventID(source, notice.ID),
			Source:      source,
			BaseSymbol:  ticker,
			Title:       notice.Title,
			AnnouncedAt: announcedAt,
			ReceivedAt:  time.Now(),
		})
	}
}
