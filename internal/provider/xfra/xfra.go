// Package xfra implements the snapshot-only provider against a Börse
// Frankfurt style price_information endpoint.
//
// The upstream has no historical-by-date query, so one GET per distinct
// ISIN fetches the current last-traded price and a per-ISIN memo serves
// every requested date in the run from that single snapshot.
package xfra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"livestock/internal/dates"
	"livestock/internal/httpx"
	"livestock/internal/provider"
)

type Config struct {
	Name string
	URL  string // price_information/single endpoint
	MIC  string // market identifier code sent with each query
}

// Provider fetches one snapshot price per ISIN. Safe for concurrent use.
type Provider struct {
	cfg    Config
	client *httpx.Client
	log    *zap.Logger

	mu   sync.Mutex
	memo map[string]float64 // ISIN -> snapshot price

	sf singleflight.Group
}

func New(cfg Config, hc *httpx.Client, log *zap.Logger) *Provider {
	if cfg.Name == "" {
		cfg.Name = "XFRA"
	}
	if cfg.URL == "" {
		cfg.URL = "https://api.boerse-frankfurt.de/v1/data/price_information/single"
	}
	if cfg.MIC == "" {
		cfg.MIC = "XFRA"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: hc,
		log:    log,
		memo:   make(map[string]float64),
	}
}

func (p *Provider) Name() string { return p.cfg.Name }

// FetchPrice returns the snapshot price for the ISIN. The date is part
// of the returned value but does not select a differently-priced day;
// the upstream cannot answer that question.
func (p *Provider) FetchPrice(ctx context.Context, isin string, date dates.Date) (provider.Price, error) {
	p.mu.Lock()
	cached, ok := p.memo[isin]
	p.mu.Unlock()
	if ok {
		p.logStale(isin, date)
		return provider.Price{Symbol: isin, Date: date, Value: cached}, nil
	}

	v, err, shared := p.sf.Do(isin, func() (any, error) {
		return p.fetchSnapshot(ctx, isin)
	})
	if err != nil {
		return provider.Price{}, err
	}
	if shared {
		p.logStale(isin, date)
	}
	return provider.Price{Symbol: isin, Date: date, Value: v.(float64)}, nil
}

// logStale flags a historical query answered with a current snapshot,
// so a stale-looking chart can be traced back to this approximation.
func (p *Provider) logStale(isin string, date dates.Date) {
	if date != dates.Today() {
		p.log.Debug("historical query answered with cached snapshot price",
			zap.String("isin", isin),
			zap.String("date", date.String()))
	}
}

func (p *Provider) fetchSnapshot(ctx context.Context, isin string) (float64, error) {
	u := fmt.Sprintf("%s?isin=%s&mic=%s", p.cfg.URL, url.QueryEscape(isin), url.QueryEscape(p.cfg.MIC))
	resp, err := p.client.Get(ctx, u)
	if err != nil {
		return 0, fmt.Errorf("%s: query %s: %w: %v", p.cfg.Name, isin, provider.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("%s: query %s: %w: status %d: %s",
			p.cfg.Name, isin, provider.ErrUpstreamUnavailable, resp.StatusCode, string(snippet))
	}

	var body struct {
		LastPrice       *float64 `json:"lastPrice"`
		TradedInPercent bool     `json:"tradedInPercent"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%s: query %s: %w: decode: %v", p.cfg.Name, isin, provider.ErrMalformedResponse, err)
	}
	if body.LastPrice == nil {
		return 0, fmt.Errorf("%s: query %s: missing lastPrice: %w", p.cfg.Name, isin, provider.ErrMalformedResponse)
	}

	price := *body.LastPrice
	// bonds quote in percent of par
	if body.TradedInPercent {
		price /= 100.0
	}

	p.mu.Lock()
	p.memo[isin] = price
	p.mu.Unlock()
	return price, nil
}
