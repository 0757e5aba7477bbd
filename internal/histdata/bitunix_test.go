package histdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerd/internal/market"
)

func TestNewBitunixSourceRequiresCredentials(t *testing.T) {
	_, err := NewBitunixSource(BitunixConfig{})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestBitunixFetchCoercesTimeField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/futures/market/kline", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		assert.Equal(t, "200", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		// "time" arrives as a number on some deployments and a string on
		// others; both must parse.
		_, _ = w.Write([]byte(`{"code":0,"data":[
			{"time":1704067200000,"open":"42000.5","high":"42100","low":"41900","close":"42050","baseVol":"12.5"},
			{"time":"1704067260000","open":42050,"high":42120,"low":42000,"close":42100,"baseVol":8.25},
			{"time":0,"open":"1","high":"1","low":"1","close":"1","baseVol":"0"}
		]}`))
	}))
	defer server.Close()

	src, err := NewBitunixSource(BitunixConfig{APIKey: "k", SecretKey: "s", BaseURL: server.URL})
	require.NoError(t, err)

	candles, err := src.Fetch(context.Background(), FetchRequest{
		Symbol:   "BTCUSDT",
		Interval: market.Interval1m,
		Start:    1_704_067_200_000,
		End:      1_704_067_320_000,
	})
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1_704_067_200_000), candles[0].Timestamp)
	assert.Equal(t, 42000.5, candles[0].Open)
	assert.Equal(t, 12.5, candles[0].Volume)
	assert.Equal(t, SourceBitunix, candles[0].Source)
	assert.Equal(t, int64(1_704_067_260_000), candles[1].Timestamp)
	assert.Equal(t, 42100.0, candles[1].Close)
}

func TestBitunixFetchAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":10001,"msg":"rate limit exceeded"}`))
	}))
	defer server.Close()

	src, err := NewBitunixSource(BitunixConfig{APIKey: "k", SecretKey: "s", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), FetchRequest{Symbol: "BTCUSDT", Interval: market.Interval1m})
	assert.ErrorContains(t, err, "code 10001")
	assert.ErrorContains(t, err, "rate limit exceeded")
}
