package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"livestock/internal/config"
	"livestock/internal/dates"
	"livestock/internal/httpx"
	"livestock/internal/portfolio"
	"livestock/internal/pricecache"
	"livestock/internal/provider"
	"livestock/internal/provider/ratelimit"
	"livestock/internal/provider/xfra"
	"livestock/internal/provider/yahoo"
)

func main() {
	var (
		file              string
		days              int
		debug             bool
		extendPrice       bool
		displayDailyValue bool
		configPath        string
	)
	flag.StringVar(&file, "file", "", "JSON portfolio file (required)")
	flag.IntVar(&days, "days", 10, "number of days to look back")
	flag.BoolVar(&debug, "debug", false, "display additional debug information")
	flag.BoolVar(&extendPrice, "extend-price", true, "extend the last known price where no data exists")
	flag.BoolVar(&displayDailyValue, "display-daily-value", false, "display the daily portfolio value")
	flag.StringVar(&configPath, "config", os.Getenv("LIVESTOCK_CONFIG"), "path to livestock.json (optional)")
	flag.Parse()

	if file == "" {
		fmt.Fprintln(os.Stderr, "usage: livestock -file portfolio.json [-days N] [-debug]")
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if debug {
		cfg.Debug = true
	}

	log := newLogger(cfg.Debug)
	defer log.Sync()

	cachePath := cfg.CachePath
	if cachePath == "" {
		cachePath, err = pricecache.DefaultPath()
		if err != nil {
			log.Fatal("cache path", zap.Error(err))
		}
	}
	cache, err := pricecache.Open(cachePath, log)
	if err != nil {
		log.Fatal("open price cache", zap.Error(err))
	}
	defer cache.Close()

	httpClient := httpx.New(time.Duration(cfg.RequestTimeoutSec) * time.Second)
	providers := buildProviders(cfg, httpClient, log)

	holdings, err := config.LoadPortfolio(file)
	if err != nil {
		log.Fatal("load portfolio", zap.Error(err))
	}

	pf := portfolio.New(cache, log)
	for providerName, list := range holdings {
		p, ok := providers[providerName]
		if !ok {
			log.Warn("skipping unknown provider in portfolio file", zap.String("provider", providerName))
			continue
		}
		for _, h := range list {
			pf.Add(portfolio.Instrument{
				Symbol:   h.Symbol,
				Quantity: h.Quantity,
				Provider: p,
				BuyDate:  h.BuyDate,
				SellDate: h.SellDate,
			})
		}
	}

	ctx := context.Background()
	today := dates.Today()
	start := today.Add(-days)

	// weekends never trade; enumerate business days only
	requested := dates.Business(start, today)
	for _, d := range requested {
		pf.Request(ctx, d)
	}
	pf.Drain()

	if extendPrice {
		pf.ExtendDates(start, today)
	}

	if cfg.Debug {
		for _, d := range requested {
			fmt.Printf("Portfolio on %s\n", d)
			for _, iv := range pf.Breakdown(d) {
				fmt.Printf("  %s: %v\n", iv.Symbol, iv.Value)
			}
		}
	}

	switch {
	case displayDailyValue:
		for _, d := range requested {
			fmt.Printf("Portfolio total value on %s: %.2f\n", d, pf.ValueOn(d))
		}
	case len(requested) > 0:
		last := requested[len(requested)-1]
		fmt.Printf("Portfolio total value: %.2f\n", pf.ValueOn(last))
	default:
		fmt.Println("Portfolio total value: 0.00")
	}
}

func buildProviders(cfg config.Config, hc *httpx.Client, log *zap.Logger) map[string]provider.Provider {
	providers := make(map[string]provider.Provider, 2)
	if cfg.Yahoo.Enabled {
		var p provider.Provider = yahoo.New(yahoo.Config{
			SearchURL: cfg.Yahoo.SearchEndpoint,
			ChartURL:  cfg.Yahoo.ChartEndpoint,
		}, hc, log)
		if cfg.Yahoo.MaxRequestsPerMinute > 0 {
			p = &ratelimit.Provider{
				P: p,
				B: ratelimit.NewBucket(float64(cfg.Yahoo.MaxRequestsPerMinute)/60.0, cfg.Yahoo.Burst),
			}
		}
		providers["Yahoo"] = p
	}
	if cfg.XFRA.Enabled {
		var p provider.Provider = xfra.New(xfra.Config{
			URL: cfg.XFRA.Endpoint,
			MIC: cfg.XFRA.MIC,
		}, hc, log)
		if cfg.XFRA.MaxRequestsPerMinute > 0 {
			p = &ratelimit.Provider{
				P: p,
				B: ratelimit.NewBucket(float64(cfg.XFRA.MaxRequestsPerMinute)/60.0, cfg.XFRA.Burst),
			}
		}
		providers["XFRA"] = p
	}
	return providers
}

func newLogger(debug bool) *zap.Logger {
	lvl := zapcore.InfoLevel
	if debug {
		lvl = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), lvl)
	return zap.New(core)
}
