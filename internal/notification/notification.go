package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"coinsangjang/internal/config"
	"coinsangjang/internal/logging"
	"coinsangjang/internal/models"
)

// Manager 알림 관리자. 슬랙 웹훅과 텔레그램 봇으로 상장 감지 및
// 주문 체결 알림을 전송한다.
type Manager struct {
	mu               sync.RWMutex
	slackWebhook     string
	telegramToken    string
	telegramChatID   string
	enabled          bool
	rateLimit        time.Duration
	lastNotification time.Time
	client           *http.Client
	log              *logging.Logger
}

// Notification 알림 메시지
type Notification struct {
	Level     string                 `json:"level"` // INFO/WARNING/CRITICAL
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewManager 알림 관리자 생성
func NewManager(cfg config.NotificationConfig, log *logging.Logger) *Manager {
	return &Manager{
		slackWebhook:     cfg.SlackWebhook,
		telegramToken:    cfg.TelegramToken,
		telegramChatID:   cfg.TelegramChatID,
		enabled:          cfg.EnableAlerts,
		rateLimit:        10 * time.Second,
		lastNotification: time.Now().Add(-time.Minute),
		client:           &http.Client{Timeout: 10 * time.Second},
		log:              log,
	}
}

// ListingDetected 신규 상장 감지 알림. 상장 알림은 레이트 리밋을
// 우회한다 (놓치면 안 되는 핵심 이벤트).
func (nm *Manager) ListingDetected(event models.ListingEvent) {
	err := nm.send(&Notification{
		Level: "WARNING",
		Title: "🚨 신규 상장 감지!",
		Message: fmt.Sprintf("소스: %s\n심볼: %s\n공지: %s",
			event.Source, event.Symbol, event.Title),
		Timestamp: event.ReceivedAt,
		Data: map[string]interface{}{
			"공지 시각":  event.AnnouncedAt.Format("2006-01-02 15:04:05"),
			"이벤트 ID": event.ID,
		},
	}, false)
	if err != nil {
		nm.log.Warn("[NOTIFY] 상장 알림 전송 실패: %v", err)
	}
}

// TradeExecuted 계정별 주문 시도 결과 알림
func (nm *Manager) TradeExecuted(event models.ListingEvent, attempt models.TradeAttempt) {
	level := "INFO"
	title := "✅ 진입 주문 체결"
	if attempt.Outcome == models.TradeFailed {
		level = "CRITICAL"
		title = "❌ 진입 주문 실패"
	}

	data := map[string]interface{}{
		"거래소": string(attempt.Venue),
		"계정":  attempt.AccountID,
		"수량":  fmt.Sprintf("%.3f", attempt.Quantity),
	}
	if attempt.OrderID != "" {
		data["주문 ID"] = attempt.OrderID
	}
	if attempt.Error != "" {
		data["오류"] = attempt.Error
	}

	err := nm.send(&Notification{
		Level:     level,
		Title:     title,
		Message:   fmt.Sprintf("심볼: %s (%s 상장)", attempt.Symbol, event.Source),
		Timestamp: attempt.At,
		Data:      data,
	}, false)
	if err != nil {
		nm.log.Warn("[NOTIFY] 거래 알림 전송 실패: %v", err)
	}
}

// SendSystemAlert 시스템 알림 (레이트 리밋 적용)
func (nm *Manager) SendSystemAlert(level, title, message string, data map[string]interface{}) error {
	return nm.send(&Notification{
		Level:     level,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
		Data:      data,
	}, true)
}

// send 알림 전송. rateLimited가 true면 최소 간격을 강제한다.
func (nm *Manager) send(notification *Notification, rateLimited bool) error {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	if !nm.enabled {
		return nil
	}

	if rateLimited && time.Since(nm.lastNotification) < nm.rateLimit {
		return fmt.Errorf("레이트 리밋: %v", nm.rateLimit)
	}

	if nm.slackWebhook != "" {
		if err := nm.sendSlack(notification); err != nil {
			nm.log.Warn("❌ [NOTIFY] 슬랙 알림 실패: %v", err)
		}
	}

	if nm.telegramToken != "" && nm.telegramChatID != "" {
		if err := nm.sendTelegram(notification); err != nil {
			nm.log.Warn("❌ [NOTIFY] 텔레그램 알림 실패: %v", err)
		}
	}

	nm.lastNotification = time.Now()
	return nil
}

// sendSlack 슬랙 웹훅 전송
func (nm *Manager) sendSlack(notification *Notification) error {
	slackMessage := map[string]interface{}{
		"text": notification.Title,
		"attachments": []map[string]interface{}{
			{
				"color":     nm.colorByLevel(notification.Level),
				"title":     notification.Title,
				"text":      notification.Message,
				"fields":    nm.formatSlackFields(notification.Data),
				"timestamp": notification.Timestamp.Unix(),
			},
		},
	}

	jsonData, err := json.Marshal(slackMessage)
	if err != nil {
		return err
	}

	resp, err := nm.client.Post(nm.slackWebhook, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("슬랙 API 오류: %d", resp.StatusCode)
	}

	nm.log.Debug("📤 [NOTIFY] 슬랙 알림 전송: %s", notification.Title)
	return nil
}

// sendTelegram 텔레그램 봇 전송
func (nm *Manager) sendTelegram(notification *Notification) error {
	message := fmt.Sprintf("*%s*\n%s\n\n%s",
		notification.Title,
		notification.Message,
		nm.formatTelegramData(notification.Data))

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", nm.telegramToken)

	telegramMessage := map[string]interface{}{
		"chat_id":    nm.telegramChatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(telegramMessage)
	if err != nil {
		return err
	}

	resp, err := nm.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("텔레그램 API 오류: %d", resp.StatusCode)
	}

	nm.log.Debug("📤 [NOTIFY] 텔레그램 알림 전송: %s", notification.Title)
	return nil
}

// colorByLevel 레벨별 색상 반환
func (nm *Manager) colorByLevel(level string) string {
	switch level {
	case "INFO":
		return "#36a64f" // 녹색
	case "WARNING":
		return "#ff9500" // 주황색
	case "CRITICAL":
		return "#ff0000" // 빨간색
	default:
		return "#0000ff" // 파란색
	}
}

// formatSlackFields 슬랙 필드 포맷
func (nm *Manager) formatSlackFields(data map[string]interface{}) []map[string]interface{} {
	fields := make([]map[string]interface{}, 0)

	for key, value := range data {
		fields = append(fields, map[string]interface{}{
			"title": key,
			"value": fmt.Sprintf("%v", value),
			"short": true,
		})
	}

	return fields
}

// formatTelegramData 텔레그램 데이터 포맷
func (nm *Manager) formatTelegramData(data map[string]interface{}) string {
	if len(data) == 0 {
		return ""
	}

	result := "*상세 정보:*\n"
	for key, value := range data {
		result += fmt.Sprintf("• %s: %v\n", key, value)
	}

	return result
}

// IsEnabled 활성화 상태 조회
func (nm *Manager) IsEnabled() bool {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	return nm.enabled
}
