package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"coinsangjang/internal/models"
)

// Config 전체 설정 구조체.
// YAML 파일 로드 후 환경 변수로 민감 값을 덮어쓴다.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Sources      []SourceConfig     `yaml:"sources"`
	Venues       VenuesConfig       `yaml:"venues"`
	Dedup        DedupConfig        `yaml:"dedup"`
	Security     SecurityConfig     `yaml:"security"`
	Policy       PolicyConfig       `yaml:"policy"`
	Accounts     []AccountConfig    `yaml:"accounts"`
	Database     DatabaseConfig     `yaml:"database"`
	Notification NotificationConfig `yaml:"notification"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig HTTP 서버 설정
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// SourceConfig 공지 수집 소스 설정. Endpoints는 장애시 순서대로 폴백한다.
type SourceConfig struct {
	Name            models.Source `yaml:"name"`
	Enabled         bool          `yaml:"enabled"`
	PollIntervalSec int           `yaml:"poll_interval_sec"`
	Endpoints       []string      `yaml:"endpoints"`
}

// PollInterval returns the per-source poll interval.
func (s SourceConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSec) * time.Second
}

// VenueEndpoints 거래소별 REST 베이스 URL (메인넷/테스트넷)
type VenueEndpoints struct {
	Mainnet string `yaml:"mainnet"`
	Testnet string `yaml:"testnet"`
}

// VenuesConfig 거래소 엔드포인트 설정
type VenuesConfig struct {
	Binance VenueEndpoints `yaml:"binance"`
	Bybit   VenueEndpoints `yaml:"bybit"`
	OKX     VenueEndpoints `yaml:"okx"`
	Gateio  VenueEndpoints `yaml:"gateio"`
	Bitget  VenueEndpoints `yaml:"bitget"`
}

// DedupConfig 공지 중복제거 설정
type DedupConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// Retention returns the seen-notice retention window.
func (d DedupConfig) Retention() time.Duration {
	return time.Duration(d.RetentionDays) * 24 * time.Hour
}

// SecurityConfig 보안 설정. MasterKey는 환경 변수로만 주입하는 것을 권장.
type SecurityConfig struct {
	MasterKey string `yaml:"master_key"`
}

// PolicyConfig 트레이딩 정책 기본값
type PolicyConfig struct {
	Venues        []string `yaml:"venues"`
	Leverage      int      `yaml:"leverage"`
	NotionalUSDT  float64  `yaml:"notional_usdt"`
	TakeProfitPct float64  `yaml:"take_profit_pct"`
	StopLossPct   float64  `yaml:"stop_loss_pct"`
	NetworkMode   string   `yaml:"network_mode"`
	AutoTrade     bool     `yaml:"auto_trade"`
	EntryType     string   `yaml:"entry_type"`
}

// ToPolicy converts the configured defaults into a validated trading policy.
func (p PolicyConfig) ToPolicy() (models.TradingPolicy, error) {
	policy := models.TradingPolicy{
		Leverage:      p.Leverage,
		NotionalUSDT:  p.NotionalUSDT,
		TakeProfitPct: p.TakeProfitPct,
		StopLossPct:   p.StopLossPct,
		AutoTrade:     p.AutoTrade,
	}
	for _, name := range p.Venues {
		v, err := models.ParseVenue(name)
		if err != nil {
			return models.TradingPolicy{}, err
		}
		policy.Venues = append(policy.Venues, v)
	}
	mode, err := models.ParseNetworkMode(p.NetworkMode)
	if err != nil {
		return models.TradingPolicy{}, err
	}
	policy.NetworkMode = mode
	policy.EntryType = models.EntryMarket
	if p.EntryType != "" {
		policy.EntryType = models.EntryType(p.EntryType)
	}
	if err := policy.Validate(); err != nil {
		return models.TradingPolicy{}, err
	}
	return policy, nil
}

// AccountConfig 거래소 계정 설정 (자격증명은 vault 암호문)
type AccountConfig struct {
	ID                  string `yaml:"id"`
	OwnerID             string `yaml:"owner_id"`
	Venue               string `yaml:"venue"`
	NetworkMode         string `yaml:"network_mode"`
	EncryptedAPIKey     string `yaml:"encrypted_api_key"`
	EncryptedAPISecret  string `yaml:"encrypted_api_secret"`
	EncryptedPassphrase string `yaml:"encrypted_passphrase"`
	DefaultLeverage     int    `yaml:"default_leverage"`
	IsActive            bool   `yaml:"is_active"`
}

// DatabaseConfig 이벤트 아카이브 DB 설정 (선택적)
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// NotificationConfig 알림 설정
type NotificationConfig struct {
	SlackWebhook   string `yaml:"slack_webhook"`
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id"`
	EnableAlerts   bool   `yaml:"enable_alerts"`
}

// LoggingConfig 로깅 설정
type LoggingConfig struct {
	Level  string `yaml:"level"`
	LogDir string `yaml:"log_dir"`
}

// Default returns the baseline configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Sources: []SourceConfig{
			{
				Name:            models.SourceUpbit,
				Enabled:         true,
				PollIntervalSec: 5,
				Endpoints: []string{
					"https://api-manager.upbit.com/api/v1/announcements?os=web&page=1&per_page=20&category=trade",
				},
			},
			{
				Name:            models.SourceBithumb,
				Enabled:         true,
				PollIntervalSec: 7,
				Endpoints: []string{
					"https://api.bithumb.com/v1/notices?count=20",
				},
			},
			{
				Name:            models.SourceBinance,
				Enabled:         false,
				PollIntervalSec: 10,
				Endpoints: []string{
					"https://www.binance.com/bapi/apex/v1/public/apex/cms/article/list/query?type=1&catalogId=48&pageNo=1&pageSize=20",
				},
			},
		},
		Venues: VenuesConfig{
			Binance: VenueEndpoints{
				Mainnet: "https://fapi.binance.com",
				Testnet: "https://testnet.binancefuture.com",
			},
			Bybit: VenueEndpoints{
				Mainnet: "https://api.bybit.com",
				Testnet: "https://api-testnet.bybit.com",
			},
			OKX: VenueEndpoints{
				Mainnet: "https://www.okx.com",
				Testnet: "https://www.okx.com", // OKX 데모 트레이딩은 헤더로 구분
			},
			Gateio: VenueEndpoints{
				Mainnet: "https://api.gateio.ws",
				Testnet: "https://fx-api-testnet.gateio.ws",
			},
			Bitget: VenueEndpoints{
				Mainnet: "https://api.bitget.com",
				Testnet: "https://api.bitget.com", // 테스트넷은 데모 키로 구분
			},
		},
		Dedup: DedupConfig{
			RetentionDays: 30,
		},
		Policy: PolicyConfig{
			Venues:        []string{"BINANCE"},
			Leverage:      5,
			NotionalUSDT:  100,
			TakeProfitPct: 10,
			StopLossPct:   5,
			NetworkMode:   "TESTNET",
			AutoTrade:     false,
			EntryType:     "MARKET",
		},
		Database: DatabaseConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     8812,
			Database: "qdb",
			User:     "admin",
			Password: "quest",
		},
		Notification: NotificationConfig{
			EnableAlerts: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			LogDir: "logs",
		},
	}
}

// LoadConfig 설정 파일 로드. 파일이 없으면 기본값을 사용한다.
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		configPath = "config.yaml"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("설정 파일 파싱 실패: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("설정 파일 읽기 실패: %w", err)
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어쓴다.
// 민감 값은 파일보다 환경 변수를 우선한다.
func overrideWithEnv(cfg *Config) {
	if cfg.Security.MasterKey != "" {
		fmt.Println("⚠️  SECURITY WARNING: master key found in config file.")
		fmt.Println("   Recommendation: set SANGJANG_MASTER_KEY instead.")
	}

	if key := os.Getenv("SANGJANG_MASTER_KEY"); key != "" {
		cfg.Security.MasterKey = key
	}
	if hook := os.Getenv("SANGJANG_SLACK_WEBHOOK"); hook != "" {
		cfg.Notification.SlackWebhook = hook
	}
	if token := os.Getenv("SANGJANG_TELEGRAM_TOKEN"); token != "" {
		cfg.Notification.TelegramToken = token
	}
	if chat := os.Getenv("SANGJANG_TELEGRAM_CHAT_ID"); chat != "" {
		cfg.Notification.TelegramChatID = chat
	}
	if pass := os.Getenv("SANGJANG_DB_PASSWORD"); pass != "" {
		cfg.Database.Password = pass
	}
}

// Endpoints returns the REST base URLs for a venue.
func (c *Config) Endpoints(v models.Venue) VenueEndpoints {
	switch v {
	case models.VenueBinance:
		return c.Venues.Binance
	case models.VenueBybit:
		return c.Venues.Bybit
	case models.VenueOKX:
		return c.Venues.OKX
	case models.VenueGateio:
		return c.Venues.Gateio
	case models.VenueBitget:
		return c.Venues.Bitget
	default:
		return VenueEndpoints{}
	}
}

// Validate 설정 유효성 검사
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("서버 포트가 유효하지 않습니다: %d", c.Server.Port)
	}
	enabled := 0
	for _, src := range c.Sources {
		if !src.Enabled {
			continue
		}
		enabled++
		if src.PollIntervalSec <= 0 {
			return fmt.Errorf("소스 %s 폴링 간격은 0보다 커야 합니다", src.Name)
		}
		if len(src.Endpoints) == 0 {
			return fmt.Errorf("소스 %s 엔드포인트가 비어있습니다", src.Name)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("활성화된 공지 소스가 없습니다")
	}
	if c.Dedup.RetentionDays <= 0 {
		return fmt.Errorf("중복제거 보관 기간은 0보다 커야 합니다")
	}
	for _, acct := range c.Accounts {
		if _, err := models.ParseVenue(acct.Venue); err != nil {
			return fmt.Errorf("계정 %s: %w", acct.ID, err)
		}
	}
	return nil
}
