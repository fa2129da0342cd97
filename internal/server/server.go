package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"coinsangjang/internal/collector"
	"coinsangjang/internal/config"
	"coinsangjang/internal/events"
	"coinsangjang/internal/logging"
	"coinsangjang/internal/models"
	"coinsangjang/internal/policy"
	"coinsangjang/internal/readiness"
	"coinsangjang/internal/symbol"
)

// Server HTTP API 서버. 상장 이벤트 조회/구독, 거래소 가용성 진단,
// 거래 정책 관리 엔드포인트를 제공한다.
type Server struct {
	cfg       config.ServerConfig
	store     *events.Store
	policies  *policy.Store
	checker   *readiness.Checker
	collector *collector.Collector
	log       *logging.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader

	mu              sync.RWMutex
	startTime       time.Time
	requestCount    int
	lastRequestTime time.Time
}

// maxRecentLimit bounds the ?limit= parameter of the recent-listings query.
const maxRecentLimit = 200

// apiError 기계 판독 가능한 오류 응답
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

// NewServer HTTP 서버 생성
func NewServer(cfg config.ServerConfig, store *events.Store, policies *policy.Store,
	checker *readiness.Checker, col *collector.Collector, log *logging.Logger) *Server {
	return &Server{
		cfg:       cfg,
		store:     store,
		policies:  policies,
		checker:   checker,
		collector: col,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		startTime:       time.Now(),
		lastRequestTime: time.Now(),
	}
}

// Start 서버 시작 (블로킹)
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/listings", s.handleListings)
	mux.HandleFunc("/api/listings/recent", s.handleRecent)
	mux.HandleFunc("/api/listings/stream", s.handleStream)
	mux.HandleFunc("/ws/listings", s.handleWebSocket)
	mux.HandleFunc("/api/markets/availability", s.handleAvailability)
	mux.HandleFunc("/api/policy", s.handlePolicy)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/stats", s.handleStats)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.withCommon(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.Info("🌐 [SERVER] HTTP 서버 시작: http://%s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 서버 정상 종료
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// withCommon 공통 미들웨어: 요청 기록 + CORS
func (s *Server) withCommon(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.recordRequest()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// pushNotice 외부 게이트웨이가 밀어넣는 상장 알림 페이로드.
// symbol이 있으면 이벤트 저장소에 바로 기록하고, 없으면 공지 원문으로
// 취급하여 폴링과 동일한 분류/중복제거 경로를 거친다.
type pushNotice struct {
	Source      string            `json:"source"`
	Symbol      string            `json:"symbol,omitempty"`
	NoticeID    string            `json:"notice_id,omitempty"`
	Title       string            `json:"title,omitempty"`
	Body        string            `json:"body,omitempty"`
	AnnouncedAt time.Time         `json:"announced_at,omitempty"`
	PublishedAt time.Time         `json:"published_at,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// handleListings POST: 상장 알림 푸시 수신
func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST만 지원합니다")
		return
	}

	var payload pushNotice
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_payload", "JSON 본문을 파싱할 수 없습니다")
		return
	}
	if payload.Source == "" {
		s.writeError(w, http.StatusBadRequest, "missing_field", "source는 필수입니다")
		return
	}

	announcedAt := payload.AnnouncedAt
	if announcedAt.IsZero() {
		announcedAt = payload.PublishedAt
	}

	if payload.Symbol != "" {
		source := models.Source(payload.Source)
		noticeID := payload.NoticeID
		if noticeID == "" {
			// 업스트림 메시지 ID가 없으면 멱등성 보장도 없다.
			// 공지 시각이 있으면 재전송 정도는 걸러지도록 ID를 유도한다.
			if !announcedAt.IsZero() {
				noticeID = fmt.Sprintf("push-%s-%d", payload.Symbol, announcedAt.Unix())
			} else {
				noticeID = fmt.Sprintf("push-%s-%d", payload.Symbol, time.Now().UnixMilli())
			}
		}
		if _, err := s.store.Record(models.ListingEvent{
			ID:          models.EventID(source, noticeID),
			Source:      source,
			BaseSymbol:  payload.Symbol,
			Title:       payload.Title,
			AnnouncedAt: announcedAt,
		}); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_symbol", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if payload.NoticeID == "" || payload.Title == "" {
		s.writeError(w, http.StatusBadRequest, "missing_field", "symbol 또는 notice_id+title이 필요합니다")
		return
	}

	s.collector.HandleNotice(models.Source(payload.Source), models.RawNotice{
		ID:          payload.NoticeID,
		Title:       payload.Title,
		Body:        payload.Body,
		PublishedAt: payload.PublishedAt,
		Fields:      payload.Fields,
	})

	w.WriteHeader(http.StatusNoContent)
}

// handleRecent GET: 최근 상장 이벤트 목록
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET만 지원합니다")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	s.writeJSON(w, http.StatusOK, s.store.FindRecent(limit))
}

// handleStream GET: SSE 실시간 이벤트 스트림
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET만 지원합니다")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming_unsupported", "스트리밍을 지원하지 않는 연결입니다")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream, cancel := s.store.Stream()
	defer cancel()

	s.log.Debug("[SERVER] SSE 구독 시작: %s", r.RemoteAddr)

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case event, ok := <-stream:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: listing\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// handleWebSocket GET: 웹소켓 실시간 이벤트 스트림
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("[SERVER] 웹소켓 업그레이드 실패: %v", err)
		return
	}
	defer conn.Close()

	stream, cancel := s.store.Stream()
	defer cancel()

	s.log.Debug("[SERVER] 웹소켓 구독 시작: %s", r.RemoteAddr)

	// 클라이언트 종료 감지용 read pump
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event, ok := <-stream:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

// handleAvailability GET: 심볼의 거래소별 가용성 진단.
// 일부 거래소 실패도 200으로 응답한다 (진단 목록에 오류 포함).
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET만 지원합니다")
		return
	}

	raw := r.URL.Query().Get("symbol")
	if raw == "" {
		s.writeError(w, http.StatusBadRequest, "missing_symbol", "symbol 파라미터가 필요합니다")
		return
	}
	pair, err := symbol.Normalize(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_symbol", err.Error())
		return
	}

	useTestnet := s.policies.Active().NetworkMode.IsTestnet()
	if modeStr := r.URL.Query().Get("mode"); modeStr != "" {
		mode, err := models.ParseNetworkMode(modeStr)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_mode", err.Error())
			return
		}
		useTestnet = mode.IsTestnet()
	}

	report := s.checker.Check(r.Context(), pair, useTestnet)
	s.writeJSON(w, http.StatusOK, report)
}

// handlePolicy GET: 현재 정책 조회 / PUT: 정책 전체 교체
func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, s.policies.Active())
	case http.MethodPut:
		var p models.TradingPolicy
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&p); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_payload", "JSON 본문을 파싱할 수 없습니다")
			return
		}
		updated, err := s.policies.Update(&p)
		if err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, "invalid_policy", err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, updated)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET, PUT만 지원합니다")
	}
}

// handleHealth GET: 헬스체크
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	uptime := time.Since(s.startTime)
	s.mu.RUnlock()

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": uptime.String(),
		"time":   time.Now(),
	})
}

// handleStats GET: 운영 통계
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	serverStats := map[string]interface{}{
		"uptime":        time.Since(s.startTime).String(),
		"request_count": s.requestCount,
		"last_request":  s.lastRequestTime,
		"port":          s.cfg.Port,
	}
	s.mu.RUnlock()

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"server":         serverStats,
		"events_stored":  s.store.Len(),
		"policy_updated": s.policies.UpdatedAt(),
	})
}

// recordRequest 요청 기록
func (s *Server) recordRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requestCount++
	s.lastRequestTime = time.Now()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn("[SERVER] 응답 직렬화 실패: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: message}})
}
