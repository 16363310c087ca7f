// Package yahoo implements the historical-by-date provider.
//
// A raw ticker is first resolved to a canonical trading symbol through
// the search endpoint, then a one-day window of daily history is pulled
// from the chart endpoint and the closing price of the last bucket wins.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"livestock/internal/dates"
	"livestock/internal/httpx"
	"livestock/internal/provider"
)

type Config struct {
	Name      string
	SearchURL string            // symbol search endpoint
	ChartURL  string            // daily history endpoint, symbol appended as a path element
	Headers   map[string]string // optional extra headers
}

// Provider resolves tickers once per run and fetches one close per
// (symbol, date). Safe for concurrent use.
type Provider struct {
	cfg    Config
	client *httpx.Client
	log    *zap.Logger

	mu      sync.Mutex
	symbols map[string]string // raw ticker -> canonical symbol

	// coalesce concurrent resolutions of the same ticker; the fan-out
	// issues one task per date, all hitting the resolver at once
	sf singleflight.Group
}

func New(cfg Config, hc *httpx.Client, log *zap.Logger) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Yahoo! Finance"
	}
	if cfg.SearchURL == "" {
		cfg.SearchURL = "https://query1.finance.yahoo.com/v1/finance/search"
	}
	if cfg.ChartURL == "" {
		cfg.ChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{
		cfg:     cfg,
		client:  hc,
		log:     log,
		symbols: make(map[string]string),
	}
}

func (p *Provider) Name() string { return p.cfg.Name }

// FetchPrice returns the close of the requested day for the ticker.
func (p *Provider) FetchPrice(ctx context.Context, ticker string, date dates.Date) (provider.Price, error) {
	symbol, err := p.resolveSymbol(ctx, ticker)
	if err != nil {
		return provider.Price{}, err
	}

	start := date.Time().Unix()
	end := date.Add(1).Time().Unix()
	u := fmt.Sprintf("%s/%s?period1=%d&period2=%d&interval=1d",
		strings.TrimRight(p.cfg.ChartURL, "/"), url.PathEscape(symbol), start, end)

	var body chartResponse
	if err := p.getJSON(ctx, u, &body); err != nil {
		return provider.Price{}, fmt.Errorf("%s: history for %s on %s: %w", p.cfg.Name, ticker, date, err)
	}

	closing, ok := lastClose(body)
	if !ok {
		return provider.Price{}, fmt.Errorf("%s: %s on %s: %w", p.cfg.Name, ticker, date, provider.ErrNoQuoteForDate)
	}
	return provider.Price{Symbol: ticker, Date: date, Value: closing}, nil
}

// resolveSymbol maps a raw ticker to the canonical trading symbol,
// memoizing after the first success so one run issues at most one
// search call per ticker.
func (p *Provider) resolveSymbol(ctx context.Context, ticker string) (string, error) {
	p.mu.Lock()
	if s, ok := p.symbols[ticker]; ok {
		p.mu.Unlock()
		return s, nil
	}
	p.mu.Unlock()

	v, err, _ := p.sf.Do(ticker, func() (any, error) {
		u := fmt.Sprintf("%s?q=%s", p.cfg.SearchURL, url.QueryEscape(ticker))
		var body searchResponse
		if err := p.getJSON(ctx, u, &body); err != nil {
			return "", fmt.Errorf("%s: search %q: %w", p.cfg.Name, ticker, err)
		}
		if len(body.Quotes) == 0 {
			return "", fmt.Errorf("%s: search %q: %w", p.cfg.Name, ticker, provider.ErrSymbolNotFound)
		}
		if len(body.Quotes) > 1 {
			candidates := make([]string, 0, len(body.Quotes))
			for _, q := range body.Quotes {
				candidates = append(candidates, q.Symbol)
			}
			p.log.Debug("multiple symbol matches, using the first",
				zap.String("ticker", ticker),
				zap.Strings("candidates", candidates))
		}
		symbol := body.Quotes[0].Symbol

		p.mu.Lock()
		p.symbols[ticker] = symbol
		p.mu.Unlock()
		return symbol, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (p *Provider) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range p.cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", provider.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", provider.ErrUpstreamUnavailable, resp.StatusCode, string(snippet))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", provider.ErrMalformedResponse, err)
	}
	return nil
}

type searchResponse struct {
	Quotes []struct {
		Symbol string `json:"symbol"`
	} `json:"quotes"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// lastClose picks the closing price of the last quote bucket in the
// window, skipping trailing null buckets.
func lastClose(body chartResponse) (float64, bool) {
	for _, res := range body.Chart.Result {
		for _, q := range res.Indicators.Quote {
			for i := len(q.Close) - 1; i >= 0; i-- {
				if q.Close[i] != nil {
					return *q.Close[i], true
				}
			}
		}
	}
	return 0, false
}
