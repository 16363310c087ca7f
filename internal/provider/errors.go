package provider

import "errors"

// Fetch failures fall into four buckets. All of them are terminal for
// the (symbol, date) pair that triggered them: nothing in this layer
// retries, the portfolio drops the pair and moves on.
var (
	// ErrSymbolNotFound means the provider's search could not map the
	// raw ticker to any canonical trading symbol.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrNoQuoteForDate means the provider answered but had no price
	// bucket in the requested window.
	ErrNoQuoteForDate = errors.New("no quote for date")

	// ErrUpstreamUnavailable is a transport-level failure reaching the
	// provider, including non-2xx responses.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMalformedResponse means the provider answered 2xx but the
	// expected field was absent or undecodable.
	ErrMalformedResponse = errors.New("malformed response")
)
