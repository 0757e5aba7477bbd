package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"brokerd/internal/cache"
	"brokerd/internal/histdata"
	"brokerd/internal/market"
	"brokerd/internal/store/sqlite"
)

type gridSource struct {
	name    string
	maxBars int
}

func (g *gridSource) Name() string { return g.name }

func (g *gridSource) MaxBars() int { return g.maxBars }

func (g *gridSource) Fetch(_ context.Context, req histdata.FetchRequest) ([]market.Candle, error) {
	step := req.Interval.StepMillis()
	var out []market.Candle
	for ts := req.Start; ts < req.End; ts += step {
		out = append(out, market.Candle{Timestamp: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10, Source: g.name})
	}
	return out, nil
}

func newTestServer(t *testing.T) (*HTTPServer, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "market.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	fetcher := histdata.NewService(&gridSource{name: histdata.SourceBitunix, maxBars: 200})
	srv, err := NewHTTPServer(HTTPConfig{
		Addr:    ":0",
		Facade:  cache.New(store, fetcher),
		Store:   store,
		Fetcher: fetcher,
	})
	require.NoError(t, err)
	return srv, store
}

func doGet(srv *HTTPServer, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.router.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doGet(srv, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", gjson.Get(w.Body.String(), "status").String())
}

func TestCandlesEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)

	w := doGet(srv, "/api/historical/candles?symbol=BTCUSDT&interval=1h"+
		"&start_time="+start.Format(time.RFC3339)+"&end_time="+end.Format(time.RFC3339))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Equal(t, histdata.SourceBitunix, gjson.Get(body, "source").String())
	assert.False(t, gjson.Get(body, "partial").Bool())
	candles := gjson.Get(body, "candles").Array()
	require.Len(t, candles, 3)
	assert.Equal(t, "2024-01-01T00:00:00Z", candles[0].Get("timestamp").String())
	assert.Equal(t, 1.5, candles[0].Get("close").Float())
}

func TestCandlesEndpointValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doGet(srv, "/api/historical/candles?interval=1h")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doGet(srv, "/api/historical/candles?symbol=BTCUSDT&interval=2m")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doGet(srv, "/api/historical/candles?symbol=BTCUSDT&interval=1h&start_time=notatime")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// EUR_USD resolves to a source with no configured adapter.
	w = doGet(srv, "/api/historical/candles?symbol=EUR_USD&interval=1h")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCoverageEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var batch []market.Candle
	for i := 0; i < 2; i++ {
		batch = append(batch, market.Candle{Timestamp: start.Add(time.Duration(i) * time.Hour).UnixMilli(), Close: 1, Source: histdata.SourceBitunix})
	}
	_, err := store.StoreCandles(context.Background(), "BTCUSDT", market.Interval1h, histdata.SourceBitunix, batch)
	require.NoError(t, err)

	w := doGet(srv, "/api/historical/coverage?symbol=BTCUSDT&interval=1h"+
		"&start_time="+start.Format(time.RFC3339)+"&end_time="+start.Add(4*time.Hour).Format(time.RFC3339))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, int64(4), gjson.Get(body, "expected_candles").Int())
	assert.Equal(t, int64(2), gjson.Get(body, "actual_candles").Int())
	assert.True(t, gjson.Get(body, "has_gaps").Bool())
}

func TestGapsAndFillEndpoints(t *testing.T) {
	srv, store := newTestServer(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	gaps, _, err := store.RecordGaps(context.Background(), "BTCUSDT", market.Interval1h, histdata.SourceBitunix,
		[]sqlite.GapRange{{Start: start, End: start + 2*3_600_000}})
	require.NoError(t, err)
	require.Len(t, gaps, 1)

	w := doGet(srv, "/api/historical/gaps?symbol=BTCUSDT")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, gjson.Get(w.Body.String(), "gaps").Array(), 1)

	fill := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/historical/gaps/1/fill", nil)
	srv.router.ServeHTTP(fill, req)
	require.Equal(t, http.StatusOK, fill.Code)
	assert.Equal(t, int64(2), gjson.Get(fill.Body.String(), "candles_stored").Int())

	w = doGet(srv, "/api/historical/gaps?symbol=BTCUSDT")
	assert.Empty(t, gjson.Get(w.Body.String(), "gaps").Array())
}

func TestStatsLimitsIntervalsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doGet(srv, "/api/historical/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), gjson.Get(w.Body.String(), "total_candles").Int())

	w = doGet(srv, "/api/historical/limits")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(5000), gjson.Get(w.Body.String(), "oanda").Int())
	assert.Equal(t, int64(200), gjson.Get(w.Body.String(), "bitunix").Int())

	w = doGet(srv, "/api/historical/intervals")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, gjson.Get(w.Body.String(), "oanda").Array(), 7)
}
