package provider

import (
	"context"

	"livestock/internal/dates"
)

// Price is the normalized result of a single provider lookup: one
// closing price for one symbol on one calendar day, in the provider's
// currency and not adjusted for quantity.
type Price struct {
	Symbol string
	Date   dates.Date
	Value  float64
}

// Provider is a price source with a stable name. The name participates
// in durable cache keys, so it must not change between runs.
//
// Implementations must be safe for concurrent FetchPrice calls; the
// portfolio fans out one call per (instrument, date) pair.
type Provider interface {
	Name() string
	FetchPrice(ctx context.Context, symbol string, date dates.Date) (Price, error)
}
