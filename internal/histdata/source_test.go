package histdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSource(t *testing.T) {
	cases := []struct {
		symbol string
		source string
		want   string
	}{
		{"EUR_USD", "", SourceOanda},
		{"EUR_USD", "auto", SourceOanda},
		{"GBP_USD", "AUTO", SourceOanda},
		{"BTCUSDT", "", SourceBitunix},
		{"BTCUSDT", "auto", SourceBitunix},
		{"BTCUSDT", "oanda", SourceOanda},
		{"EUR_USD", "bitunix", SourceBitunix},
		{"EUR_USD", " Oanda ", SourceOanda},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ResolveSource(tc.symbol, tc.source), "%s/%s", tc.symbol, tc.source)
	}
}

func TestBrokerLimits(t *testing.T) {
	limits := BrokerLimits()
	assert.Equal(t, 5000, limits[SourceOanda])
	assert.Equal(t, 200, limits[SourceBitunix])
}

func TestAvailableIntervals(t *testing.T) {
	avail := AvailableIntervals()
	for _, name := range []string{SourceOanda, SourceBitunix} {
		assert.Equal(t, []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d"}, avail[name])
	}
}
