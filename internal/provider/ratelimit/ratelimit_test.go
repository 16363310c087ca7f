package ratelimit_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"livestock/internal/dates"
	"livestock/internal/provider"
	"livestock/internal/provider/ratelimit"
)

type fixedProvider struct {
	calls atomic.Int64
}

func (f *fixedProvider) Name() string { return "fixed" }

func (f *fixedProvider) FetchPrice(_ context.Context, symbol string, date dates.Date) (provider.Price, error) {
	f.calls.Add(1)
	return provider.Price{Symbol: symbol, Date: date, Value: 1.0}, nil
}

func TestBucket_BurstPassesImmediately(t *testing.T) {
	t.Parallel()

	b := ratelimit.NewBucket(0.001, 3)
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Wait(context.Background()))
	}
}

func TestBucket_CanceledContextUnblocks(t *testing.T) {
	t.Parallel()

	b := ratelimit.NewBucket(0.001, 1)
	require.NoError(t, b.Wait(context.Background())) // drain the burst

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, b.Wait(ctx), context.DeadlineExceeded)
}

func TestProvider_DelegatesAndKeepsName(t *testing.T) {
	t.Parallel()

	inner := &fixedProvider{}
	p := &ratelimit.Provider{P: inner, B: ratelimit.NewBucket(1000, 10)}
	require.Equal(t, "fixed", p.Name())

	got, err := p.FetchPrice(context.Background(), "A", dates.MustParse("2025-03-05"))
	require.NoError(t, err)
	require.Equal(t, 1.0, got.Value)
	require.EqualValues(t, 1, inner.calls.Load())
}
