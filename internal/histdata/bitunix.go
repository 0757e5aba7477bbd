package histdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"brokerd/internal/market"
)

// BitunixConfig carries the credentials and endpoint for the Bitunix
// futures API. Market data is public, but the client is only constructed
// when the account credentials are configured.
type BitunixConfig struct {
	APIKey    string
	SecretKey string
	BaseURL   string
}

// BitunixSource fetches klines from the Bitunix futures market endpoint.
type BitunixSource struct {
	cfg    BitunixConfig
	client *http.Client
}

func NewBitunixSource(cfg BitunixConfig) (*BitunixSource, error) {
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: bitunix credentials not configured", ErrSourceUnavailable)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://fapi.bitunix.com"
	}
	return &BitunixSource{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (b *BitunixSource) Name() string { return SourceBitunix }

func (b *BitunixSource) MaxBars() int { return BitunixMaxBars }

func (b *BitunixSource) Fetch(ctx context.Context, req FetchRequest) ([]market.Candle, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("bitunix: symbol is required")
	}
	u, err := url.Parse(b.cfg.BaseURL + "/api/v1/futures/market/kline")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("symbol", req.Symbol)
	q.Set("interval", req.Interval.String())
	q.Set("limit", strconv.Itoa(BitunixMaxBars))
	q.Set("startTime", strconv.FormatInt(req.Start, 10))
	q.Set("endTime", strconv.FormatInt(req.End, 10))
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bitunix: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(body)
	if code := root.Get("code"); code.Exists() && code.Int() != 0 {
		return nil, fmt.Errorf("bitunix: code %d: %s", code.Int(), root.Get("msg").String())
	}
	rows := root.Get("data").Array()
	out := make([]market.Candle, 0, len(rows))
	for _, row := range rows {
		// "time" arrives as either a JSON number or a string of epoch ms;
		// gjson coerces both.
		ts := row.Get("time").Int()
		if ts <= 0 {
			continue
		}
		out = append(out, market.Candle{
			Timestamp: ts,
			Open:      row.Get("open").Float(),
			High:      row.Get("high").Float(),
			Low:       row.Get("low").Float(),
			Close:     row.Get("close").Float(),
			Volume:    row.Get("baseVol").Float(),
			Source:    SourceBitunix,
		})
	}
	return out, nil
}
