package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	e := NewExtractor()

	cases := []struct {
		name string
		text string
		want string
	}{
		{
			name: "korean paren style",
			text: "셀레스티아(TIA) 신규 거래지원 안내 (KRW, BTC 마켓)",
			want: "TIA",
		},
		{
			name: "english paren style",
			text: "Aptos (APT) 디지털 자산 추가",
			want: "APT",
		},
		{
			name: "market prefix style",
			text: "KRW-SUI 마켓 추가 안내",
			want: "SUI",
		},
		{
			name: "bracket style",
			text: "[WLD] 원화 마켓 신규 상장",
			want: "WLD",
		},
		{
			name: "hashtag style",
			text: "#ARB 거래지원 개시",
			want: "ARB",
		},
		{
			name: "bare token with listing keyword",
			text: "Binance Will List SEI",
			want: "SEI",
		},
		{
			name: "quote currency in parens skipped",
			text: "APT(KRW) 신규 상장",
			want: "APT",
		},
		{
			name: "stopword paren then real paren",
			text: "(KRW) 마켓 수이(SUI) 디지털 자산 추가",
			want: "SUI",
		},
		{
			name: "bare token without listing keyword ignored",
			text: "ABC 점검 안내",
			want: "",
		},
		{
			name: "stopword never extracted bare",
			text: "KRW 마켓 신규 상장 일정 안내",
			want: "",
		},
		{
			name: "no candidate",
			text: "서버 점검 안내",
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, e.Extract(tc.text))
		})
	}
}

func TestExtractRuleOrder(t *testing.T) {
	e := NewExtractor()

	// paren rule outranks the market prefix when both are present
	got := e.Extract("수이(SUI) KRW-XRP 마켓 신규 상장")
	assert.Equal(t, "SUI", got)
}

func TestValid(t *testing.T) {
	e := NewExtractor()

	assert.True(t, e.Valid("APT"))
	assert.True(t, e.Valid("1INCH"))
	assert.False(t, e.Valid("a"))
	assert.False(t, e.Valid("TOOLONGTOKEN1"))
	assert.False(t, e.Valid("apt"))
}
