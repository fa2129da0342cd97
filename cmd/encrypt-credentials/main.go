package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"coinsangjang/internal/vault"
)

// 거래소 API 자격증명 암호화 도구. 평문 자격증명을 설정 파일에 넣을
// 암호문으로 변환한다. 마스터 키는 SANGJANG_MASTER_KEY로만 받고,
// 평문은 stdin으로만 받아 셸 히스토리에 남기지 않는다.
func main() {
	_ = godotenv.Load()

	masterKey := os.Getenv("SANGJANG_MASTER_KEY")
	if masterKey == "" {
		fmt.Fprintln(os.Stderr, "❌ SANGJANG_MASTER_KEY 환경 변수가 필요합니다")
		os.Exit(1)
	}

	v := vault.New(masterKey)

	fmt.Println("한 줄에 하나씩 자격증명을 입력하세요 (빈 줄 또는 EOF로 종료):")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		plain := strings.TrimSpace(scanner.Text())
		if plain == "" {
			break
		}
		encrypted, err := v.Encrypt(plain)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ 암호화 실패: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(encrypted)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ 입력 읽기 실패: %v\n", err)
		os.Exit(1)
	}
}
