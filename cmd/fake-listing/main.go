package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

// 가짜 상장공지 주입 도구. 실제 공지 없이 감지→주문 전체 경로를
// 검증할 때 사용한다. 테스트넷 정책에서만 돌릴 것.
func main() {
	server := flag.String("server", "http://localhost:8080", "API 서버 주소")
	source := flag.String("source", "UPBIT", "공지 소스 (UPBIT/BITHUMB/BINANCE)")
	symbol := flag.String("symbol", "LA", "기초 심볼")
	flag.Parse()

	noticeID := fmt.Sprintf("fake-%d", time.Now().UnixMilli())
	payload := map[string]interface{}{
		"source":       *source,
		"notice_id":    noticeID,
		"title":        fmt.Sprintf("가짜상장(%s) KRW 마켓 디지털 자산 추가", *symbol),
		"published_at": time.Now().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ 페이로드 직렬화 실패: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("🚀 가짜 상장공지 주입: %s (%s, notice_id=%s)\n", *symbol, *source, noticeID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(*server+"/api/listings", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ 전송 실패: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		fmt.Fprintf(os.Stderr, "❌ 서버 응답 오류: %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("✅ 주입 완료. /api/listings/recent 에서 이벤트를 확인하세요.")
}
