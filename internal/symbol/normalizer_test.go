package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "lowercase base", raw: "apt", want: "APTUSDT"},
		{name: "already canonical", raw: "APTUSDT", want: "APTUSDT"},
		{name: "mixed case pair", raw: "AptUsdt", want: "APTUSDT"},
		{name: "whitespace and punctuation", raw: " ap-t. ", want: "APTUSDT"},
		{name: "korean mixed in", raw: "에이피티APT", wantErr: false, want: "APTUSDT"},
		{name: "digits kept", raw: "1inch", want: "1INCHUSDT"},
		{name: "no alphanumeric content", raw: "###", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "too long to be a ticker", raw: "THISISWAYTOOLONG", wantErr: true},
		{name: "long but ends with quote", raw: "SOMELONGBASEUSDT", want: "SOMELONGBASEUSDT"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.raw)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	once, err := Normalize("tia")
	assert.NoError(t, err)

	twice, err := Normalize(once)
	assert.NoError(t, err)
	assert.Equal(t, once, twice)
}
