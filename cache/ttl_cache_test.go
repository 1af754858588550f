// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTTLCacheSingleKey(t *testing.T) {
	tests := []struct {
		name          string
		skipCache     bool
		advance       time.Duration
		expectedCount int
	}{
		{
			name:          "fresh cache, fetch",
			expectedCount: 1,
		},
		{
			name:          "use cache, no fetch",
			advance:       500 * time.Millisecond,
			expectedCount: 1,
		},
		{
			name:          "skipCache=true, fetch",
			skipCache:     true,
			expectedCount: 2,
		},
		{
			name:          "ttl expired, fetch",
			advance:       2 * time.Second,
			expectedCount: 3,
		},
	}

	now := time.Unix(1_700_000_000, 0)
	cache := NewTTLCache[string, int](1 * time.Second).WithClock(func() time.Time { return now })
	fetchCount := 0
	fetchFunc := func(_ string) (int, error) {
		fetchCount++
		return 42, nil
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			now = now.Add(tt.advance)

			val, err := cache.Get("test", fetchFunc, tt.skipCache)
			require.NoError(err)
			require.Equal(42, val)
			require.Equal(tt.expectedCount, fetchCount)
		})
	}
}

func TestTTLCacheSingleFlight(t *testing.T) {
	require := require.New(t)

	cache := NewTTLCache[string, int](time.Minute)

	var fetches atomic.Int32
	release := make(chan struct{})
	fetchFunc := func(string) (int, error) {
		fetches.Add(1)
		<-release
		return 7, nil
	}

	const callers = 8
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)
	results := make([]int, callers)
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			v, err := cache.Get("shared", fetchFunc, false)
			require.NoError(err)
			results[i] = v
		}(i)
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, v := range results {
		require.Equal(7, v)
	}
	require.LessOrEqual(fetches.Load(), int32(callers))
	require.GreaterOrEqual(fetches.Load(), int32(1))

	// Served from cache from now on.
	before := fetches.Load()
	_, err := cache.Get("shared", fetchFunc, false)
	require.NoError(err)
	require.Equal(before, fetches.Load())
}

func TestTTLCacheErrorsAreNotCached(t *testing.T) {
	require := require.New(t)

	cache := NewTTLCache[string, int](time.Minute)
	errMissing := errors.New("missing")

	_, err := cache.Get("k", func(string) (int, error) { return 0, errMissing }, false)
	require.ErrorIs(err, errMissing)

	v, err := cache.Get("k", func(string) (int, error) { return 3, nil }, false)
	require.NoError(err)
	require.Equal(3, v)

	cache.Invalidate("k")
	v, err = cache.Get("k", func(string) (int, error) { return 4, nil }, false)
	require.NoError(err)
	require.Equal(4, v)
}
