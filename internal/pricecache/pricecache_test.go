package pricecache_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"livestock/internal/dates"
	"livestock/internal/pricecache"
	"livestock/internal/provider"
)

func openTempCache(t *testing.T) *pricecache.Cache {
	t.Helper()
	c, err := pricecache.Open(filepath.Join(t.TempDir(), "cache.sql"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetOrFetch_SecondCallHitsCache(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	cache := openTempCache(t)
	date := dates.MustParse("2025-03-05")

	p := NewMockProvider(ctrl)
	p.EXPECT().Name().Return("Yahoo! Finance").AnyTimes()
	// exactly one provider hit for the key, however often it is asked
	p.EXPECT().
		FetchPrice(gomock.Any(), "GOOG", date).
		Return(provider.Price{Symbol: "GOOG", Date: date, Value: 187.3}, nil).
		Times(1)

	first, err := cache.GetOrFetch(context.Background(), p, "GOOG", date)
	require.NoError(t, err)
	require.Equal(t, 187.3, first.Value)

	second, err := cache.GetOrFetch(context.Background(), p, "GOOG", date)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestGetOrFetch_DistinctKeysFetchSeparately(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	cache := openTempCache(t)
	d1 := dates.MustParse("2025-03-05")
	d2 := dates.MustParse("2025-03-06")

	p := NewMockProvider(ctrl)
	p.EXPECT().Name().Return("Yahoo! Finance").AnyTimes()
	p.EXPECT().FetchPrice(gomock.Any(), "GOOG", d1).
		Return(provider.Price{Symbol: "GOOG", Date: d1, Value: 187.3}, nil).Times(1)
	p.EXPECT().FetchPrice(gomock.Any(), "GOOG", d2).
		Return(provider.Price{Symbol: "GOOG", Date: d2, Value: 188.1}, nil).Times(1)

	got1, err := cache.GetOrFetch(context.Background(), p, "GOOG", d1)
	require.NoError(t, err)
	got2, err := cache.GetOrFetch(context.Background(), p, "GOOG", d2)
	require.NoError(t, err)
	require.Equal(t, 187.3, got1.Value)
	require.Equal(t, 188.1, got2.Value)
}

func TestGetOrFetch_ProviderErrorPropagatesAndWritesNothing(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	cache := openTempCache(t)
	date := dates.MustParse("2025-03-05")
	fetchErr := errors.New("search \"ZZZZ\": symbol not found")

	p := NewMockProvider(ctrl)
	p.EXPECT().Name().Return("Yahoo! Finance").AnyTimes()
	// a failure is not cached: the next call fetches again
	p.EXPECT().FetchPrice(gomock.Any(), "ZZZZ", date).
		Return(provider.Price{}, fetchErr).Times(2)

	_, err := cache.GetOrFetch(context.Background(), p, "ZZZZ", date)
	require.ErrorIs(t, err, fetchErr)
	_, err = cache.GetOrFetch(context.Background(), p, "ZZZZ", date)
	require.ErrorIs(t, err, fetchErr)
}

func TestGetOrFetch_SurvivesReopen(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	path := filepath.Join(t.TempDir(), "cache.sql")
	date := dates.MustParse("2025-03-05")

	p := NewMockProvider(ctrl)
	p.EXPECT().Name().Return("XFRA").AnyTimes()
	p.EXPECT().FetchPrice(gomock.Any(), "DE000A0D6554", date).
		Return(provider.Price{Symbol: "DE000A0D6554", Date: date, Value: 15.6}, nil).Times(1)

	c1, err := pricecache.Open(path, nil)
	require.NoError(t, err)
	_, err = c1.GetOrFetch(context.Background(), p, "DE000A0D6554", date)
	require.NoError(t, err)
	require.NoError(t, c1.Close())

	// second process run: same store, no provider call expected
	c2, err := pricecache.Open(path, nil)
	require.NoError(t, err)
	defer c2.Close()
	got, err := c2.GetOrFetch(context.Background(), p, "DE000A0D6554", date)
	require.NoError(t, err)
	require.Equal(t, 15.6, got.Value)
}

// countingProvider always answers the same price and counts its calls.
type countingProvider struct {
	calls atomic.Int64
}

func (c *countingProvider) Name() string { return "counting" }

func (c *countingProvider) FetchPrice(_ context.Context, symbol string, date dates.Date) (provider.Price, error) {
	c.calls.Add(1)
	return provider.Price{Symbol: symbol, Date: date, Value: 42.5}, nil
}

func TestGetOrFetch_ConcurrentMissesStayDeterministic(t *testing.T) {
	t.Parallel()

	cache := openTempCache(t)
	date := dates.MustParse("2025-03-05")
	p := &countingProvider{}

	// both callers of the benign race may fetch, but the value every
	// later lookup sees must match a single-caller run
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := cache.GetOrFetch(context.Background(), p, "GOOG", date)
			if err == nil && got.Value != 42.5 {
				err = fmt.Errorf("unexpected value %v", got.Value)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.GreaterOrEqual(t, p.calls.Load(), int64(1))

	before := p.calls.Load()
	got, err := cache.GetOrFetch(context.Background(), p, "GOOG", date)
	require.NoError(t, err)
	require.Equal(t, 42.5, got.Value)
	require.Equal(t, before, p.calls.Load(), "settled key must not fetch again")
}
