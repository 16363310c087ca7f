package config

import (
	"encoding/json"
	"fmt"
	"os"

	"livestock/internal/dates"
)

// Holding is one position as written in the portfolio file.
type Holding struct {
	Symbol   string     `json:"symbol"`
	Quantity uint       `json:"quantity"`
	BuyDate  dates.Date `json:"buy_date"`
	SellDate dates.Date `json:"sell_date,omitempty"`
}

// LoadPortfolio reads a portfolio file: a JSON object mapping provider
// names to holding lists, e.g.
//
//	{
//	  "Yahoo": [{"symbol": "GOOG", "quantity": 2, "buy_date": "2024-01-15"}],
//	  "XFRA":  [{"symbol": "DE000A0D6554", "quantity": 10, "buy_date": "2023-06-01"}]
//	}
//
// Unknown provider names are the caller's problem; the loader only
// validates the holdings themselves.
func LoadPortfolio(path string) (map[string][]Holding, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read portfolio file: %w", err)
	}
	var out map[string][]Holding
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse portfolio file %s: %w", path, err)
	}
	for providerName, holdings := range out {
		for _, h := range holdings {
			if h.Symbol == "" {
				return nil, fmt.Errorf("portfolio file %s: %s: holding with empty symbol", path, providerName)
			}
			if h.Quantity == 0 {
				return nil, fmt.Errorf("portfolio file %s: %s: %s: quantity must be at least 1", path, providerName, h.Symbol)
			}
		}
	}
	return out, nil
}
