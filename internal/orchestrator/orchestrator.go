package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"coinsangjang/internal/accounts"
	"coinsangjang/internal/events"
	"coinsangjang/internal/exchange"
	"coinsangjang/internal/logging"
	"coinsangjang/internal/models"
	"coinsangjang/internal/policy"
	"coinsangjang/internal/readiness"
	"coinsangjang/internal/vault"
)

// minQuantity is the floor applied after sizing, matching the smallest
// futures order step shared by the supported venues.
var minQuantity = decimal.NewFromFloat(0.001)

// JobStatus is the terminal state of one listing job.
type JobStatus string

const (
	StatusSkipped    JobStatus = "SKIPPED"   // auto-trade disabled at read time
	StatusNoVenue    JobStatus = "NO_VENUE"  // no selected venue had the symbol
	StatusExecuted   JobStatus = "EXECUTED"  // at least one attempt ran
	StatusDuplicated JobStatus = "DUPLICATE" // listing id already dispatched
)

// JobResult summarizes one listing job after all venue fan-out completes.
type JobResult struct {
	ListingID string                `json:"listing_id"`
	Status    JobStatus             `json:"status"`
	Attempts  []models.TradeAttempt `json:"attempts,omitempty"`
}

// AttemptArchive persists completed trade attempts. Optional.
type AttemptArchive interface {
	InsertTradeAttempt(listingID string, attempt *models.TradeAttempt) error
}

// Notifier receives trade execution alerts. Optional.
type Notifier interface {
	TradeExecuted(event models.ListingEvent, attempt models.TradeAttempt)
}

// Orchestrator는 상장 이벤트 스트림을 구독하여 거래소별/계정별
// 자동 진입을 실행한다. 상장 ID 기준으로 정확히 한 번만 처리한다.
type Orchestrator struct {
	events    *events.Store
	policies  *policy.Store
	accounts  *accounts.Store
	registry  *exchange.Registry
	readiness *readiness.Checker
	vault     *vault.Vault
	archive   AttemptArchive
	notifier  Notifier
	log       *logging.Logger

	mu         sync.Mutex
	dispatched map[string]bool

	wg sync.WaitGroup
}

// New wires the orchestrator. archive and notifier may be nil.
func New(
	store *events.Store,
	policies *policy.Store,
	accts *accounts.Store,
	registry *exchange.Registry,
	checker *readiness.Checker,
	v *vault.Vault,
	archive AttemptArchive,
	notifier Notifier,
	log *logging.Logger,
) *Orchestrator {
	return &Orchestrator{
		events:     store,
		policies:   policies,
		accounts:   accts,
		registry:   registry,
		readiness:  checker,
		vault:      v,
		archive:    archive,
		notifier:   notifier,
		log:        log,
		dispatched: make(map[string]bool),
	}
}

// Run subscribes to the listing stream and dispatches one job per event
// until ctx is cancelled. Each job runs in its own goroutine so a slow
// venue never delays the next listing.
func (o *Orchestrator) Run(ctx context.Context) {
	stream, cancel := o.events.Stream()
	defer cancel()

	o.log.Info("[ORCHESTRATOR] 상장 이벤트 스트림 구독 시작")

	for {
		select {
		case <-ctx.Done():
			o.log.Info("[ORCHESTRATOR] 종료 대기중 (진행중 작업 완료까지)")
			o.wg.Wait()
			return
		case event, ok := <-stream:
			if !ok {
				o.wg.Wait()
				return
			}
			o.wg.Add(1)
			go func(ev models.ListingEvent) {
				defer o.wg.Done()
				defer logging.RecoverPanic("orchestrator.job")
				o.ProcessListing(ctx, ev)
			}(event)
		}
	}
}

// ProcessListing runs one listing job end to end. Calling it twice with the
// same listing id is a no-op on the second call.
func (o *Orchestrator) ProcessListing(ctx context.Context, event models.ListingEvent) JobResult {
	if !o.claim(event.ID) {
		o.log.Debug("[ORCHESTRATOR] 이미 처리된 상장: %s", event.ID)
		return JobResult{ListingID: event.ID, Status: StatusDuplicated}
	}
	defer o.events.MarkProcessed(event.ID)

	// 정책은 작업 시작 시점의 스냅샷을 사용한다
	active := o.policies.Active()

	if !active.AutoTrade {
		o.log.Info("[ORCHESTRATOR] 자동매매 비활성 상태, 건너뜀: %s (%s)", event.Symbol, event.ID)
		return JobResult{ListingID: event.ID, Status: StatusSkipped}
	}

	useTestnet := active.NetworkMode.IsTestnet()
	report := o.readiness.Check(ctx, event.Symbol, useTestnet)

	venues := o.tradableVenues(active, report)
	if len(venues) == 0 {
		o.log.Warn("[ORCHESTRATOR] 진입 가능한 거래소 없음: %s (정책 %d개 거래소)",
			event.Symbol, len(active.Venues))
		return JobResult{ListingID: event.ID, Status: StatusNoVenue}
	}

	o.log.Info("🚀 [ORCHESTRATOR] 진입 시작: %s → %v (레버리지 %dx, %.0f USDT)",
		event.Symbol, venues, active.Leverage, active.NotionalUSDT)

	var (
		mu       sync.Mutex
		attempts []models.TradeAttempt
		wg       sync.WaitGroup
	)
	for _, venue := range venues {
		wg.Add(1)
		go func(venue models.Venue) {
			defer wg.Done()
			defer logging.RecoverPanic(fmt.Sprintf("orchestrator.%s", venue))

			venueAttempts := o.executeVenue(ctx, event, active, venue)
			mu.Lock()
			attempts = append(attempts, venueAttempts...)
			mu.Unlock()
		}(venue)
	}
	wg.Wait()

	succeeded := 0
	for _, a := range attempts {
		if a.Outcome == models.TradeSuccess {
			succeeded++
		}
	}
	o.log.Info("[ORCHESTRATOR] 진입 완료: %s (%d/%d 계정 성공)",
		event.Symbol, succeeded, len(attempts))

	return JobResult{ListingID: event.ID, Status: StatusExecuted, Attempts: attempts}
}

// claim marks a listing id dispatched, returning false when already claimed.
func (o *Orchestrator) claim(listingID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dispatched[listingID] {
		return false
	}
	o.dispatched[listingID] = true
	return true
}

// tradableVenues intersects the policy's venue selection with the venues that
// reported the symbol available, in stable report order.
func (o *Orchestrator) tradableVenues(p *models.TradingPolicy, report readiness.Report) []models.Venue {
	var venues []models.Venue
	for _, d := range report.Diagnostics {
		if d.Available && p.HasVenue(d.Venue) {
			venues = append(venues, d.Venue)
		}
	}
	return venues
}

// executeVenue runs every active account for one venue sequentially. One
// account failing never stops the others.
func (o *Orchestrator) executeVenue(ctx context.Context, event models.ListingEvent, p *models.TradingPolicy, venue models.Venue) []models.TradeAttempt {
	adapter, err := o.registry.Get(venue)
	if err != nil {
		o.log.Error("[ORCHESTRATOR] %s 어댑터 조회 실패: %v", venue, err)
		return nil
	}

	accts := o.accounts.ActiveFor(venue, p.NetworkMode)
	if len(accts) == 0 {
		o.log.Warn("[ORCHESTRATOR] %s 활성 계정 없음 (%s), 건너뜀", venue, p.NetworkMode)
		return nil
	}

	attempts := make([]models.TradeAttempt, 0, len(accts))
	for _, acct := range accts {
		attempt := o.executeAccount(ctx, event, p, adapter, acct)
		attempts = append(attempts, attempt)
		o.record(event, attempt)
	}
	return attempts
}

// executeAccount places one entry for one account: decrypt, size, set
// leverage, order. Every failure path returns a FAILED attempt.
func (o *Orchestrator) executeAccount(ctx context.Context, event models.ListingEvent, p *models.TradingPolicy, adapter exchange.Adapter, acct models.ExchangeAccount) (attempt models.TradeAttempt) {
	attempt = models.TradeAttempt{
		AccountID: acct.ID,
		Symbol:    event.Symbol,
		Venue:     acct.Venue,
		Outcome:   models.TradeFailed,
		At:        time.Now(),
	}
	defer func() {
		if r := recover(); r != nil {
			attempt.Error = fmt.Sprintf("panic: %v", r)
			o.log.Error("🚨 [ORCHESTRATOR] 계정 %s 처리 중 패닉: %v", acct.ID, r)
		}
	}()

	creds, err := o.decryptCredentials(acct)
	if err != nil {
		attempt.Error = fmt.Sprintf("credential decryption failed: %v", err)
		o.log.Error("[ORCHESTRATOR] 계정 %s 자격증명 복호화 실패", acct.ID)
		return attempt
	}

	leverage := EffectiveLeverage(p.Leverage, acct.DefaultLeverage, adapter.MaxLeverage())
	quantity := SizeQuantity(p.NotionalUSDT, leverage)
	attempt.Quantity = quantity

	useTestnet := p.NetworkMode.IsTestnet()

	if err := adapter.EnsureLeverage(ctx, creds, event.Symbol, leverage, useTestnet); err != nil {
		attempt.Error = fmt.Sprintf("leverage setup failed: %v", err)
		o.log.Warn("[ORCHESTRATOR] %s 계정 %s 레버리지 설정 실패: %v", acct.Venue, acct.ID, err)
		return attempt
	}

	result, err := adapter.PlaceMarketOrder(ctx, creds, exchange.OrderRequest{
		Symbol:        event.Symbol,
		Quantity:      quantity,
		Leverage:      leverage,
		TakeProfitPct: p.TakeProfitPct,
		StopLossPct:   p.StopLossPct,
	}, useTestnet)
	if err != nil {
		attempt.Error = fmt.Sprintf("order failed: %v", err)
		o.log.Error("[ORCHESTRATOR] %s 계정 %s 주문 실패: %v", acct.Venue, acct.ID, err)
		return attempt
	}

	attempt.Outcome = models.TradeSuccess
	attempt.OrderID = result.OrderID
	o.log.Info("✅ [ORCHESTRATOR] %s 계정 %s 진입 성공: %s x%.3f (주문 %s)",
		acct.Venue, acct.ID, event.Symbol, quantity, result.OrderID)
	return attempt
}

// decryptCredentials resolves an account's vault ciphertext just before use.
func (o *Orchestrator) decryptCredentials(acct models.ExchangeAccount) (exchange.Credentials, error) {
	apiKey, err := o.vault.Decrypt(acct.EncryptedAPIKey)
	if err != nil {
		return exchange.Credentials{}, fmt.Errorf("api key: %w", err)
	}
	secret, err := o.vault.Decrypt(acct.EncryptedAPISecret)
	if err != nil {
		return exchange.Credentials{}, fmt.Errorf("api secret: %w", err)
	}
	creds := exchange.Credentials{APIKey: apiKey, APISecret: secret}
	if acct.EncryptedPassphrase != "" {
		pass, err := o.vault.Decrypt(acct.EncryptedPassphrase)
		if err != nil {
			return exchange.Credentials{}, fmt.Errorf("passphrase: %w", err)
		}
		creds.Passphrase = pass
	}
	return creds, nil
}

// record persists and broadcasts one finished attempt, best effort.
func (o *Orchestrator) record(event models.ListingEvent, attempt models.TradeAttempt) {
	if o.archive != nil {
		if err := o.archive.InsertTradeAttempt(event.ID, &attempt); err != nil {
			o.log.Warn("[ORCHESTRATOR] 거래 기록 저장 실패: %v", err)
		}
	}
	if o.notifier != nil {
		o.notifier.TradeExecuted(event, attempt)
	}
}

// EffectiveLeverage clamps the policy leverage to the venue cap and, when the
// account carries its own lower default, to that as well.
func EffectiveLeverage(policyLev, accountLev, venueMax int) int {
	lev := policyLev
	if accountLev > 0 && accountLev < lev {
		lev = accountLev
	}
	if venueMax > 0 && venueMax < lev {
		lev = venueMax
	}
	if lev < 1 {
		lev = 1
	}
	return lev
}

// SizeQuantity converts the policy notional into a base quantity: the margin
// spent is notional divided by effective leverage, floored at the minimum
// order step and rounded to three decimals.
func SizeQuantity(notionalUSDT float64, leverage int) float64 {
	if leverage < 1 {
		leverage = 1
	}
	qty := decimal.NewFromFloat(notionalUSDT).
		Div(decimal.NewFromInt(int64(leverage))).
		Round(3)
	if qty.LessThan(minQuantity) {
		qty = minQuantity
	}
	f, _ := qty.Float64()
	return f
}
