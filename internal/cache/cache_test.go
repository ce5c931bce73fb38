package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type item struct {
	ID   string `json:"id"`
	Tags []string
}

func newTestCache(clock *fakeClock) (*Cache[item], *MemoryBackend) {
	backend := NewMemoryBackend().WithClock(clock.Now)
	return New[item]("test", backend, zerolog.Nop(), nil), backend
}

func TestKey(t *testing.T) {
	assert.Equal(t, "ns-licenses", Key("ns", "licenses"))
	assert.Equal(t, "ns-content:site:42", Key("ns", "content", "site", "42"))
}

func TestGetOrCompute_CachesWithinTTL(t *testing.T) {
	clock := newFakeClock()
	c, _ := newTestCache(clock)
	ctx := context.Background()

	var calls int
	fn := func(ctx context.Context) (item, error) {
		calls++
		return item{ID: "a", Tags: []string{"x"}}, nil
	}

	got, err := c.GetOrCompute(ctx, "k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	clock.Advance(59 * time.Second)
	got, err = c.GetOrCompute(ctx, "k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got.Tags)
	assert.Equal(t, 1, calls)

	clock.Advance(time.Second)
	_, err = c.GetOrCompute(ctx, "k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetOrCompute_ErrorsAreNotCached(t *testing.T) {
	c, backend := newTestCache(newFakeClock())
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := c.GetOrCompute(ctx, "k", time.Minute, func(ctx context.Context) (item, error) {
		return item{}, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, backend.size())

	got, err := c.GetOrCompute(ctx, "k", time.Minute, func(ctx context.Context) (item, error) {
		return item{ID: "ok"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got.ID)
}

func TestGetOrCompute_ZeroTTLDoesNotStore(t *testing.T) {
	c, backend := newTestCache(newFakeClock())
	var calls int
	fn := func(ctx context.Context) (item, error) {
		calls++
		return item{ID: "a"}, nil
	}

	for i := 0; i < 3; i++ {
		_, err := c.GetOrCompute(context.Background(), "k", 0, fn)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
	assert.Equal(t, 0, backend.size())
}

func TestGetOrCompute_ConcurrentMissesComputeOnce(t *testing.T) {
	c, _ := newTestCache(newFakeClock())
	release := make(chan struct{})
	var calls atomic.Int32

	fn := func(ctx context.Context) (item, error) {
		calls.Add(1)
		<-release
		return item{ID: "shared"}, nil
	}

	const workers = 50
	var wg sync.WaitGroup
	results := make([]item, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCompute(context.Background(), "k", time.Minute, fn)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i].ID)
	}
}

func TestGetOrCompute_WaiterCancellation(t *testing.T) {
	c, _ := newTestCache(newFakeClock())
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = c.GetOrCompute(context.Background(), "k", time.Minute, func(ctx context.Context) (item, error) {
			close(started)
			<-release
			return item{ID: "late"}, nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetOrCompute(ctx, "k", time.Minute, func(ctx context.Context) (item, error) {
		t.Error("waiter must not start a second compute")
		return item{}, nil
	})
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		got, ok := c.Get(context.Background(), "k")
		return ok && got.ID == "late"
	}, time.Second, 10*time.Millisecond)
}

func TestCache_SetAndDelete(t *testing.T) {
	c, _ := newTestCache(newFakeClock())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", item{ID: "direct"}, time.Minute))
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "direct", got.ID)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCache_UndecodableEntryIsDiscarded(t *testing.T) {
	c, backend := newTestCache(newFakeClock())
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "k", []byte("not json"), time.Minute))
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, backend.size())
}

func TestMemoryBackend_SetSweepsExpiredEntries(t *testing.T) {
	clock := newFakeClock()
	backend := NewMemoryBackend().WithClock(clock.Now)
	ctx := context.Background()

	for i := 0; i < minPurgeSize-2; i++ {
		require.NoError(t, backend.Set(ctx, fmt.Sprintf("short-%d", i), []byte("1"), time.Second))
	}
	require.NoError(t, backend.Set(ctx, "long", []byte("2"), time.Hour))
	assert.Equal(t, minPurgeSize-1, backend.size())

	clock.Advance(2 * time.Second)
	require.NoError(t, backend.Set(ctx, "fresh", []byte("3"), time.Hour))
	assert.Equal(t, 2, backend.size())
	assert.Equal(t, minPurgeSize, backend.purgeAt)

	_, ok, err := backend.Get(ctx, "long")
	require.NoError(t, err)
	assert.True(t, ok)
}

func (m *MemoryBackend) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
