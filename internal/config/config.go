package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Yahoo struct {
	Enabled              bool   `json:"enabled"`
	SearchEndpoint       string `json:"search_endpoint"`
	ChartEndpoint        string `json:"chart_endpoint"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute"`
	Burst                int    `json:"burst"`
}

type XFRA struct {
	Enabled              bool   `json:"enabled"`
	Endpoint             string `json:"endpoint"`
	MIC                  string `json:"mic"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute"`
	Burst                int    `json:"burst"`
}

type Config struct {
	Debug             bool   `json:"debug"`
	CachePath         string `json:"cache_path"` // empty means the per-user default
	RequestTimeoutSec int    `json:"request_timeout_sec"`
	Yahoo             Yahoo  `json:"yahoo"`
	XFRA              XFRA   `json:"xfra"`
}

func Default() Config {
	return Config{
		RequestTimeoutSec: 15,
		Yahoo: Yahoo{
			Enabled: true,
		},
		XFRA: XFRA{
			Enabled: true,
			MIC:     "XFRA",
		},
	}
}

// Load reads JSON config from path. If path is empty or the file does
// not exist, defaults are returned. Environment variables override
// select fields afterwards.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("livestock.json"); err == nil {
			path = "livestock.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LIVESTOCK_DEBUG"); v != "" {
		cfg.Debug = truthy(v)
	}
	if v := os.Getenv("LIVESTOCK_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("YAHOO_SEARCH_ENDPOINT"); v != "" {
		cfg.Yahoo.SearchEndpoint = v
	}
	if v := os.Getenv("YAHOO_CHART_ENDPOINT"); v != "" {
		cfg.Yahoo.ChartEndpoint = v
	}
	if v := os.Getenv("YAHOO_MAX_RPM"); v != "" {
		if x := atoi(v); x >= 0 {
			cfg.Yahoo.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("YAHOO_BURST"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.Yahoo.Burst = x
		}
	}
	if v := os.Getenv("XFRA_ENDPOINT"); v != "" {
		cfg.XFRA.Endpoint = v
	}
	if v := os.Getenv("XFRA_MIC"); v != "" {
		cfg.XFRA.MIC = v
	}
	if v := os.Getenv("XFRA_MAX_RPM"); v != "" {
		if x := atoi(v); x >= 0 {
			cfg.XFRA.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("XFRA_BURST"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.XFRA.Burst = x
		}
	}
}

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

func atoi(s string) int {
	var x int
	fmt.Sscanf(s, "%d", &x)
	return x
}
