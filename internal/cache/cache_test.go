package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgeteer/internal/log"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLRU(size int, ttl time.Duration) (*LRUCache[int], *clock) {
	clk := &clock{t: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUEvictsOldest(t *testing.T) {
	c, _ := newTestLRU(2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUExpiry(t *testing.T) {
	c, clk := newTestLRU(10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	clk.t = clk.t.Add(2 * time.Minute)
	c.Set("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 1, c.Size())
}

func TestLRUDeletePrefix(t *testing.T) {
	c, _ := newTestLRU(10, time.Minute)
	c.Set("summary:o1:2024-05", 1)
	c.Set("summary:o1:2024-06", 2)
	c.Set("summary:o10:2024-05", 3)

	assert.Equal(t, 2, c.DeletePrefix("summary:o1:"))
	_, ok := c.Get("summary:o10:2024-05")
	assert.True(t, ok)
}

func TestLocalAdapter(t *testing.T) {
	ctx := context.Background()
	s := NewLocal[int](NewLRUCache[int](4, time.Minute))

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", 7))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	require.NoError(t, s.DeletePrefix(ctx, "k"))
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestManagerSweep(t *testing.T) {
	c, clk := newTestLRU(10, time.Second)
	c.Set("a", 1)
	m := NewManager(log.Discard())
	m.Register(c)

	assert.Zero(t, m.sweep())
	clk.t = clk.t.Add(time.Hour)
	assert.Equal(t, 1, m.sweep())

	m.StartCleanup(time.Hour)
	m.Stop()
}

func TestRedisUnavailable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()
	r := NewRedis[int](rdb, "budgeteer:", time.Minute)

	_, ok, err := r.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, "budgeteer:summary:x", r.key("summary:x"))

	_, err = NewRedisClient(context.Background(), "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}

func TestLRUStats(t *testing.T) {
	c, clk := newTestLRU(2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	_, _ = c.Get("missing")
	c.Set("c", 3) // evicts b

	clk.t = clk.t.Add(2 * time.Minute)
	_, _ = c.Get("a")

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(2), st.Misses)
	assert.Equal(t, int64(1), st.Evictions)
	assert.Equal(t, int64(1), st.Expired)
	assert.Equal(t, 1, st.Size)
}
