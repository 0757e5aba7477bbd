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

func TestNewOandaSourceRequiresCredentials(t *testing.T) {
	_, err := NewOandaSource(OandaConfig{})
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	_, err = NewOandaSource(OandaConfig{APIKey: "k"})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestNewOandaSourceEnvironmentHosts(t *testing.T) {
	src, err := NewOandaSource(OandaConfig{APIKey: "k", AccountID: "a", Environment: "practice"})
	require.NoError(t, err)
	assert.Equal(t, "https://api-fxpractice.oanda.com/v3", src.cfg.BaseURL)

	src, err = NewOandaSource(OandaConfig{APIKey: "k", AccountID: "a", Environment: "live"})
	require.NoError(t, err)
	assert.Equal(t, "https://api-fxtrade.oanda.com/v3", src.cfg.BaseURL)
}

func TestOandaFetchFiltersIncompleteBars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/instruments/EUR_USD/candles", r.URL.Path)
		assert.Equal(t, "H1", r.URL.Query().Get("granularity"))
		assert.Equal(t, "M", r.URL.Query().Get("price"))
		assert.NotEmpty(t, r.URL.Query().Get("from"))
		assert.NotEmpty(t, r.URL.Query().Get("to"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candles":[
			{"complete":true,"time":"2024-01-01T00:00:00.000000000Z","volume":10,"mid":{"o":"1.1000","h":"1.1010","l":"1.0990","c":"1.1005"}},
			{"complete":true,"time":"2024-01-01T01:00:00.000000000Z","volume":12,"mid":{"o":"1.1005","h":"1.1020","l":"1.1000","c":"1.1015"}},
			{"complete":false,"time":"2024-01-01T02:00:00.000000000Z","volume":3,"mid":{"o":"1.1015","h":"1.1018","l":"1.1010","c":"1.1012"}}
		]}`))
	}))
	defer server.Close()

	src, err := NewOandaSource(OandaConfig{APIKey: "test-key", AccountID: "acc", BaseURL: server.URL})
	require.NoError(t, err)

	candles, err := src.Fetch(context.Background(), FetchRequest{
		Symbol:   "EUR_USD",
		Interval: market.Interval1h,
		Start:    1_704_067_200_000,
		End:      1_704_078_000_000,
	})
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1_704_067_200_000), candles[0].Timestamp)
	assert.Equal(t, 1.1000, candles[0].Open)
	assert.Equal(t, 1.1005, candles[0].Close)
	assert.Equal(t, float64(10), candles[0].Volume)
	assert.Equal(t, SourceOanda, candles[0].Source)
	assert.Equal(t, int64(1_704_070_800_000), candles[1].Timestamp)
}

func TestOandaFetchErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	src, err := NewOandaSource(OandaConfig{APIKey: "bad", AccountID: "acc", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), FetchRequest{Symbol: "EUR_USD", Interval: market.Interval1h})
	assert.ErrorContains(t, err, "status 401")
}
