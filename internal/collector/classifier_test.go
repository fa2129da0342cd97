package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifierIsListing(t *testing.T) {
	c := NewClassifier()

	cases := []struct {
		name   string
		fields []string
		want   bool
	}{
		{
			name:   "korean new listing",
			fields: []string{"셀레스티아(TIA) 신규 거래지원 안내"},
			want:   true,
		},
		{
			name:   "korean market add",
			fields: []string{"[거래] 수이(SUI) KRW 마켓 추가"},
			want:   true,
		},
		{
			name:   "english will list",
			fields: []string{"Binance Will List Sei (SEI)"},
			want:   true,
		},
		{
			name:   "delisting rejected",
			fields: []string{"에이다(ADA) 거래지원 종료 안내"},
			want:   false,
		},
		{
			name:   "warning label rejected",
			fields: []string{"유의 종목 지정 안내 (상장 관련)"},
			want:   false,
		},
		{
			name:   "english delist rejected",
			fields: []string{"Notice on Delisting of ABC"},
			want:   false,
		},
		{
			name:   "negative in any field wins",
			fields: []string{"신규 상장 안내", "본 자산은 거래지원 종료 예정입니다"},
			want:   false,
		},
		{
			name:   "positive in second field",
			fields: []string{"공지사항", "위믹스(WEMIX) 신규 거래지원"},
			want:   true,
		},
		{
			name:   "maintenance notice ignored",
			fields: []string{"서버 점검 안내"},
			want:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.IsListing(tc.fields...))
		})
	}
}
