// Package portfolio holds the instruments, fans out price fetches and
// turns the sparse fetched table into a dense one.
package portfolio

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"livestock/internal/dates"
	"livestock/internal/provider"
)

// Instrument is one tradable position. Immutable after construction;
// identity is {symbol, quantity, provider name}, so the same symbol
// held in two lots or priced by two providers stays two entries.
type Instrument struct {
	Symbol   string
	Quantity uint
	Provider provider.Provider

	// carried from the portfolio file; valuation does not use them yet
	BuyDate  dates.Date
	SellDate dates.Date
}

type instrumentKey struct {
	symbol   string
	quantity uint
	provider string
}

func (i Instrument) key() instrumentKey {
	return instrumentKey{symbol: i.Symbol, quantity: i.Quantity, provider: i.Provider.Name()}
}

// PriceSource is the read-through cache the fetch units go through.
type PriceSource interface {
	GetOrFetch(ctx context.Context, p provider.Provider, symbol string, date dates.Date) (provider.Price, error)
}

// InstrumentValue is one line of a per-date breakdown.
type InstrumentValue struct {
	Symbol string
	Value  float64
}

type fetchResult struct {
	key   instrumentKey
	price provider.Price
	err   error
}

// Portfolio owns the per-instrument price tables. Request and Drain
// must be called from a single coordinating goroutine; the collector
// started by Request is the only writer of the tables, so they need no
// lock of their own.
type Portfolio struct {
	source PriceSource
	log    *zap.Logger

	instruments map[instrumentKey]Instrument
	table       map[instrumentKey]map[dates.Date]float64

	wg      sync.WaitGroup
	results chan fetchResult
	done    chan struct{}
}

func New(source PriceSource, log *zap.Logger) *Portfolio {
	if log == nil {
		log = zap.NewNop()
	}
	return &Portfolio{
		source:      source,
		log:         log,
		instruments: make(map[instrumentKey]Instrument),
		table:       make(map[instrumentKey]map[dates.Date]float64),
	}
}

// Add registers an instrument. Instruments are added once at load time,
// before the first Request.
func (p *Portfolio) Add(inst Instrument) {
	k := inst.key()
	p.instruments[k] = inst
	if p.table[k] == nil {
		p.table[k] = make(map[dates.Date]float64)
	}
}

// Request starts one fetch unit per instrument for the given date. It
// may be called for many dates before Drain; every unit runs
// concurrently and reports back to the collector over a channel.
func (p *Portfolio) Request(ctx context.Context, date dates.Date) {
	p.startCollector()
	results := p.results
	for _, inst := range p.instruments {
		p.wg.Add(1)
		go func(inst Instrument) {
			defer p.wg.Done()
			price, err := p.source.GetOrFetch(ctx, inst.Provider, inst.Symbol, date)
			results <- fetchResult{key: inst.key(), price: price, err: err}
		}(inst)
	}
}

// startCollector spins up the single goroutine that merges results into
// the tables. Failed units are dropped after a debug log; a partially
// priced portfolio still proceeds.
func (p *Portfolio) startCollector() {
	if p.results != nil {
		return
	}
	p.results = make(chan fetchResult, 64)
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		for r := range p.results {
			if r.err != nil {
				p.log.Debug("price fetch failed",
					zap.String("symbol", r.key.symbol),
					zap.String("provider", r.key.provider),
					zap.Error(r.err))
				continue
			}
			t := p.table[r.key]
			// first write wins; merge order never changes the table
			if _, ok := t[r.price.Date]; !ok {
				t[r.price.Date] = r.price.Value
			}
		}
	}()
}

// Drain waits for every outstanding fetch unit, then for the collector
// to finish merging. It never fails: unit errors were already handled
// by the collector's discard-or-log policy.
func (p *Portfolio) Drain() {
	if p.results == nil {
		return
	}
	p.wg.Wait()
	close(p.results)
	<-p.done
	p.results, p.done = nil, nil
}

// ExtendDates densifies every non-empty price table over [start, end]:
// days before the earliest fetched entry get that entry's price (a
// position bought before the window is assumed worth its first observed
// price), later gaps get the last known price walking forward. Empty
// tables have no anchor price and stay empty.
func (p *Portfolio) ExtendDates(start, end dates.Date) {
	for _, t := range p.table {
		if len(t) == 0 {
			continue
		}

		var minDate dates.Date
		for d := range t {
			if minDate.IsZero() || d.Before(minDate) {
				minDate = d
			}
		}
		minPrice := t[minDate]

		for cur := start; cur.Before(minDate); cur = cur.Add(1) {
			t[cur] = minPrice
		}

		last := minPrice
		for cur := start; !cur.After(end); cur = cur.Add(1) {
			if v, ok := t[cur]; ok {
				last = v
			} else {
				t[cur] = last
			}
		}
	}
}

// ValueOn sums quantity-weighted prices over the instruments that have
// a price for the date. Instruments without one are skipped, so a date
// with no data at all is worth zero rather than an error.
func (p *Portfolio) ValueOn(date dates.Date) float64 {
	var total float64
	for k, inst := range p.instruments {
		if v, ok := p.table[k][date]; ok {
			total += float64(inst.Quantity) * v
		}
	}
	return total
}

// Breakdown returns the per-instrument quantity-weighted values for the
// date, sorted by symbol. Instruments without a price are omitted.
func (p *Portfolio) Breakdown(date dates.Date) []InstrumentValue {
	out := make([]InstrumentValue, 0, len(p.instruments))
	for k, inst := range p.instruments {
		if v, ok := p.table[k][date]; ok {
			out = append(out, InstrumentValue{Symbol: inst.Symbol, Value: float64(inst.Quantity) * v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
