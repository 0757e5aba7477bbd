package histdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"brokerd/internal/market"
)

// OandaConfig carries the credentials and endpoint for the OANDA REST API.
// Environment selects the practice or live host when BaseURL is unset.
type OandaConfig struct {
	APIKey      string
	AccountID   string
	Environment string
	BaseURL     string
}

// OandaSource fetches candles from the OANDA v20 REST candle endpoint.
type OandaSource struct {
	cfg    OandaConfig
	client *http.Client
}

// oandaGranularity maps the unified grid to OANDA granularity codes. The
// map is total over the closed Interval type.
var oandaGranularity = map[market.Interval]string{
	market.Interval1m:  "M1",
	market.Interval5m:  "M5",
	market.Interval15m: "M15",
	market.Interval30m: "M30",
	market.Interval1h:  "H1",
	market.Interval4h:  "H4",
	market.Interval1d:  "D",
}

func NewOandaSource(cfg OandaConfig) (*OandaSource, error) {
	if cfg.APIKey == "" || cfg.AccountID == "" {
		return nil, fmt.Errorf("%w: oanda credentials not configured", ErrSourceUnavailable)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api-fxpractice.oanda.com/v3"
		if cfg.Environment == "live" {
			cfg.BaseURL = "https://api-fxtrade.oanda.com/v3"
		}
	}
	return &OandaSource{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (o *OandaSource) Name() string { return SourceOanda }

func (o *OandaSource) MaxBars() int { return OandaMaxBars }

func (o *OandaSource) Fetch(ctx context.Context, req FetchRequest) ([]market.Candle, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("oanda: symbol is required")
	}
	u, err := url.Parse(o.cfg.BaseURL + "/instruments/" + url.PathEscape(req.Symbol) + "/candles")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("granularity", oandaGranularity[req.Interval])
	q.Set("price", "M")
	q.Set("from", time.UnixMilli(req.Start).UTC().Format(time.RFC3339))
	q.Set("to", time.UnixMilli(req.End).UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("oanda: status %d", resp.StatusCode)
	}

	var payload struct {
		Candles []struct {
			Complete bool    `json:"complete"`
			Time     string  `json:"time"`
			Volume   float64 `json:"volume"`
			Mid      struct {
				O string `json:"o"`
				H string `json:"h"`
				L string `json:"l"`
				C string `json:"c"`
			} `json:"mid"`
		} `json:"candles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	out := make([]market.Candle, 0, len(payload.Candles))
	for _, c := range payload.Candles {
		// The bar at the live edge is marked incomplete; only closed bars
		// are cacheable.
		if !c.Complete {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, c.Time)
		if err != nil {
			continue
		}
		out = append(out, market.Candle{
			Timestamp: ts.UnixMilli(),
			Open:      parsePrice(c.Mid.O),
			High:      parsePrice(c.Mid.H),
			Low:       parsePrice(c.Mid.L),
			Close:     parsePrice(c.Mid.C),
			Volume:    c.Volume,
			Source:    SourceOanda,
		})
	}
	return out, nil
}

func parsePrice(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
