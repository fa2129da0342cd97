package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"coinsangjang/internal/accounts"
	"coinsangjang/internal/collector"
	"coinsangjang/internal/config"
	"coinsangjang/internal/database"
	"coinsangjang/internal/dedup"
	"coinsangjang/internal/events"
	"coinsangjang/internal/exchange"
	"coinsangjang/internal/logging"
	"coinsangjang/internal/models"
	"coinsangjang/internal/notification"
	"coinsangjang/internal/orchestrator"
	"coinsangjang/internal/policy"
	"coinsangjang/internal/readiness"
	"coinsangjang/internal/server"
	"coinsangjang/internal/vault"
)

// Application 애플리케이션 메인 구조체
type Application struct {
	config       *config.Config
	logger       *logging.Logger
	seenStore    *dedup.SeenStore
	credVault    *vault.Vault
	registry     *exchange.Registry
	checker      *readiness.Checker
	archive      *database.EventArchive
	eventStore   *events.Store
	policyStore  *policy.Store
	accountStore *accounts.Store
	notifier     *notification.Manager
	collector    *collector.Collector
	orchestrator *orchestrator.Orchestrator
	server       *server.Server

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApplication 애플리케이션 생성
func NewApplication(cfg *config.Config, logger *logging.Logger) *Application {
	ctx, cancel := context.WithCancel(context.Background())
	return &Application{
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Initialize 애플리케이션 초기화: 의존 순서대로 구성 요소를 조립한다.
func (app *Application) Initialize() error {
	cfg := app.config

	// 공지 중복제거 저장소
	seenStore, err := dedup.NewSeenStore(cfg.Dedup.Retention())
	if err != nil {
		return fmt.Errorf("중복제거 저장소 생성 실패: %w", err)
	}
	app.seenStore = seenStore
	app.logger.Info("✅ 중복제거 저장소 생성 완료 (보관 %d일)", cfg.Dedup.RetentionDays)

	// 자격증명 볼트
	app.credVault = vault.New(cfg.Security.MasterKey)
	if !app.credVault.Configured() {
		app.logger.Warn("⚠️ 마스터 키 미설정: 자동매매 비활성 (조회 전용 모드)")
	}

	// 거래소 어댑터 레지스트리
	app.registry = exchange.NewRegistry(
		exchange.NewBinance(cfg.Venues.Binance.Mainnet, cfg.Venues.Binance.Testnet),
		exchange.NewBybit(cfg.Venues.Bybit.Mainnet, cfg.Venues.Bybit.Testnet),
		exchange.NewOKX(cfg.Venues.OKX.Mainnet, cfg.Venues.OKX.Testnet),
		exchange.NewGateio(cfg.Venues.Gateio.Mainnet, cfg.Venues.Gateio.Testnet),
		exchange.NewBitget(cfg.Venues.Bitget.Mainnet, cfg.Venues.Bitget.Testnet),
	)
	app.checker = readiness.NewChecker(app.registry, app.logger.Component("readiness"))
	app.logger.Info("✅ 거래소 어댑터 %d개 등록 완료", len(app.registry.Venues()))

	// 이벤트 아카이브 (선택적)
	var archive events.Archive
	if cfg.Database.Enabled {
		db, err := database.NewEventArchive(cfg.Database)
		if err != nil {
			app.logger.Warn("⚠️ 이벤트 아카이브 연결 실패 (계속 진행): %v", err)
		} else {
			app.archive = db
			archive = db
			app.logger.Info("✅ 이벤트 아카이브 연결 완료 (%s:%d)", cfg.Database.Host, cfg.Database.Port)
		}
	}

	// 거래 정책 저장소
	defaultPolicy, err := cfg.Policy.ToPolicy()
	if err != nil {
		return fmt.Errorf("기본 정책 구성 실패: %w", err)
	}
	app.policyStore = policy.NewStore(defaultPolicy, app.logger.Component("policy"))

	// 계정 저장소
	app.accountStore = accounts.FromConfig(cfg.Accounts)
	app.logger.Info("✅ 거래소 계정 %d개 로드 완료", app.accountStore.Len())

	// 알림 관리자
	app.notifier = notification.NewManager(cfg.Notification, app.logger.Component("notify"))

	// 상장 이벤트 저장소. 가용성 스냅샷의 네트워크 모드는 정책 교체를
	// 따라가도록 호출 시점에 읽는다.
	enrich := func(ctx context.Context, pair string) ([]models.VenueAvailability, error) {
		useTestnet := app.policyStore.Active().NetworkMode.IsTestnet()
		return app.checker.Snapshot(useTestnet)(ctx, pair)
	}
	app.eventStore = events.NewStore(enrich, archive, app.logger.Component("events"))

	// 공지 수집기: 감지된 상장을 이벤트 저장소로 전달
	app.collector = collector.New(cfg.Sources, app.seenStore, app.logger.Component("collector"),
		func(candidate models.ListingEvent) {
			stored, err := app.eventStore.Record(candidate)
			if err != nil {
				app.logger.Error("상장 이벤트 기록 실패 (%s): %v", candidate.ID, err)
				return
			}
			app.notifier.ListingDetected(*stored)
		})

	// 주문 오케스트레이터
	var attemptArchive orchestrator.AttemptArchive
	if app.archive != nil {
		attemptArchive = app.archive
	}
	app.orchestrator = orchestrator.New(
		app.eventStore,
		app.policyStore,
		app.accountStore,
		app.registry,
		app.checker,
		app.credVault,
		attemptArchive,
		app.notifier,
		app.logger.Component("orchestrator"),
	)

	// HTTP 서버
	app.server = server.NewServer(cfg.Server, app.eventStore, app.policyStore,
		app.checker, app.collector, app.logger.Component("server"))

	return nil
}

// Start 백그라운드 루프 가동
func (app *Application) Start() {
	go app.orchestrator.Run(app.ctx)
	app.collector.Start(app.ctx)

	go func() {
		if err := app.server.Start(); err != nil {
			app.logger.Error("HTTP 서버 오류: %v", err)
			app.cancel()
		}
	}()
}

// Stop 정상 종료: 수집 중단 → 서버 종료 → 진행중 작업 대기 → 리소스 정리
func (app *Application) Stop() {
	app.logger.Info("⏹️ 애플리케이션 종료 시작")
	app.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Warn("HTTP 서버 종료 실패: %v", err)
	}

	app.collector.Wait()
	app.eventStore.Close()
	app.seenStore.Close()
	if app.archive != nil {
		app.archive.Close()
	}
	app.logger.Info("✅ 애플리케이션 종료 완료")
}

func main() {
	// .env 파일은 있으면 로드 (없어도 무방)
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("SANGJANG_CONFIG"))
	if err != nil {
		log.Fatalf("❌ 설정 로드 실패: %v", err)
	}

	appLogger, err := logging.NewLogger("app", logging.ParseLogLevel(cfg.Logging.Level), cfg.Logging.LogDir)
	if err != nil {
		log.Fatalf("❌ 로거 초기화 실패: %v", err)
	}
	defer appLogger.Close()

	appLogger.Info("🚀 코인상장 자동매매 시스템 시작")

	app := NewApplication(cfg, appLogger)
	if err := app.Initialize(); err != nil {
		appLogger.Fatal("애플리케이션 초기화 실패: %v", err)
	}
	app.Start()

	appLogger.Info("✅ 시스템 준비 완료! (Ctrl+C로 종료)")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		appLogger.Info("종료 신호 수신")
	case <-app.ctx.Done():
		appLogger.Info("내부 종료 요청")
	}

	app.Stop()
}
