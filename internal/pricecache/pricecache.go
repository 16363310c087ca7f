// Package pricecache is the durable read-through price store.
//
// Every price ever fetched lands in one sqlite table keyed by
// (provider, symbol, date), so a second run over the same window never
// touches the network.
package pricecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"livestock/internal/dates"
	"livestock/internal/provider"
)

//go:generate mockgen -package=pricecache_test -destination=mock_provider_test.go livestock/internal/provider Provider

const schema = `CREATE TABLE IF NOT EXISTS cache (
	provider TEXT NOT NULL,
	symbol   TEXT NOT NULL,
	date     TEXT NOT NULL,
	price    REAL NOT NULL
)`

// Cache wraps the shared sqlite store. One Cache is opened per process
// and used by every fetch unit; the mutex serializes individual
// statements, not the whole read-then-maybe-write sequence. Two
// concurrent misses for one key may therefore both fetch and both
// insert. That race is benign: the lookup returns a single row and the
// fetched value is deterministic for a given key.
type Cache struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
}

// DefaultPath is the well-known per-user store location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".livestock.sql"), nil
}

// Open opens or creates the store at path. The table is created if
// absent and otherwise reused as-is; there are no migrations.
func Open(path string, log *zap.Logger) (*Cache, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open price cache %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	return &Cache{db: db, log: log}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// GetOrFetch returns the cached price for (p.Name(), symbol, date) or,
// on a miss, delegates to the provider and persists the result.
//
// The insert is best-effort: a write failure is logged at debug level
// and swallowed, because the freshly fetched value is still valid for
// this call. Provider failures propagate untouched and write nothing.
func (c *Cache) GetOrFetch(ctx context.Context, p provider.Provider, symbol string, date dates.Date) (provider.Price, error) {
	if price, ok := c.lookup(ctx, p.Name(), symbol, date); ok {
		return provider.Price{Symbol: symbol, Date: date, Value: price}, nil
	}

	fetched, err := p.FetchPrice(ctx, symbol, date)
	if err != nil {
		return provider.Price{}, err
	}

	c.mu.Lock()
	_, err = c.db.ExecContext(ctx,
		"INSERT INTO cache (provider, symbol, date, price) VALUES (?, ?, ?, ?)",
		p.Name(), fetched.Symbol, fetched.Date.String(), fetched.Value)
	c.mu.Unlock()
	if err != nil {
		c.log.Debug("price cache write failed",
			zap.String("provider", p.Name()),
			zap.String("symbol", symbol),
			zap.String("date", date.String()),
			zap.Error(err))
	}
	return fetched, nil
}

func (c *Cache) lookup(ctx context.Context, providerName, symbol string, date dates.Date) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var price float64
	err := c.db.QueryRowContext(ctx,
		"SELECT price FROM cache WHERE provider = ? AND symbol = ? AND date = ? LIMIT 1",
		providerName, symbol, date.String()).Scan(&price)
	switch {
	case err == nil:
		return price, true
	case errors.Is(err, sql.ErrNoRows):
		return 0, false
	default:
		// a broken read degrades to a miss; the fetch path still works
		c.log.Debug("price cache read failed",
			zap.String("provider", providerName),
			zap.String("symbol", symbol),
			zap.String("date", date.String()),
			zap.Error(err))
		return 0, false
	}
}
