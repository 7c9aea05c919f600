package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, cfg Config) *Cache[string] {
	t.Helper()
	cfg.Logger = zerolog.Nop()
	c, err := New[string](cfg)
	require.NoError(t, err)
	return c
}

func TestCacheGetSet(t *testing.T) {
	c := newTestCache(t, Config{Name: "test"})

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", "v")
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestCacheTTLExpiry(t *testing.T) {
	c := newTestCache(t, Config{Name: "test", TTL: time.Minute})

	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("k", "v")

	_, ok := c.Get("k")
	require.True(t, ok)

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok = c.Get("k")
	assert.False(t, ok, "entry should expire after TTL")
	assert.Equal(t, 0, c.Len(), "expired entry should be evicted on read")
}

func TestCacheCapacityEviction(t *testing.T) {
	c := newTestCache(t, Config{Name: "test", Capacity: 2})

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should be evicted at capacity")
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestGetOrFetchCoalesces(t *testing.T) {
	c := newTestCache(t, Config{Name: "test"})

	var calls atomic.Int64
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "fetched", nil
	}

	const workers = 10
	var wg sync.WaitGroup
	results := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrFetch(context.Background(), "shared", fetch)
		}(i)
	}

	// Give the goroutines time to pile onto the same flight.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load(), "concurrent callers should share one fetch")
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "fetched", results[i])
	}
}

func TestGetOrFetchErrorNotCached(t *testing.T) {
	c := newTestCache(t, Config{Name: "test"})

	var calls atomic.Int64
	boom := errors.New("upstream down")
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		if calls.Load() == 1 {
			return "", boom
		}
		return "ok", nil
	}

	_, err := c.GetOrFetch(context.Background(), "k", fetch)
	require.ErrorIs(t, err, boom)

	got, err := c.GetOrFetch(context.Background(), "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int64(2), calls.Load(), "failed fetch should not be cached")
}

func TestGetOrFetchHitSkipsFetch(t *testing.T) {
	c := newTestCache(t, Config{Name: "test"})
	c.Set("k", "cached")

	got, err := c.GetOrFetch(context.Background(), "k", func(ctx context.Context) (string, error) {
		t.Fatal("fetch should not run on a cache hit")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cached", got)
}

func TestGetOrFetchContextCanceled(t *testing.T) {
	c := newTestCache(t, Config{Name: "test"})

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrFetch(ctx, "k", func(ctx context.Context) (string, error) {
			<-release
			return "late", nil
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("GetOrFetch did not return after context cancellation")
	}
}

func TestKeyStableAcrossOrder(t *testing.T) {
	a := Key("search", map[string]string{"q": "crispr", "limit": "10", "sources": "arxiv,pubmed"})
	b := Key("search", map[string]string{"sources": "arxiv,pubmed", "limit": "10", "q": "crispr"})
	assert.Equal(t, a, b)

	c := Key("search", map[string]string{"q": "crispr", "limit": "20", "sources": "arxiv,pubmed"})
	assert.NotEqual(t, a, c)

	d := Key("document", map[string]string{"q": "crispr", "limit": "10", "sources": "arxiv,pubmed"})
	assert.NotEqual(t, a, d, "namespace should separate otherwise identical keys")
}
