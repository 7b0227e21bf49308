package memo

import (
	"fmt"
	"testing"
	"time"
)

func newTestCache(maxSize int, ttl time.Duration) (*Cache, *time.Time) {
	c := New(maxSize, ttl)
	now := time.Now()
	c.now = func() time.Time { return now }
	return c, &now
}

func TestGetMissAndHit(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)
	if _, ok := c.Get("missing"); ok {
		t.Fatalf("expected miss")
	}
	c.Set("k", 42)
	v, ok := c.Get("k")
	if !ok || v.(int) != 42 {
		t.Fatalf("expected hit with 42, got %v %v", v, ok)
	}
}

func TestTTLExpiry(t *testing.T) {
	c, now := newTestCache(4, time.Minute)
	c.Set("k", "v")
	*now = now.Add(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("entry expired too early")
	}
	*now = now.Add(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("entry should have expired")
	}
	if c.Stats().Size != 0 {
		t.Fatalf("expired entry should be removed on read")
	}
}

func TestBoundedSizeEvictsOldest(t *testing.T) {
	c, now := newTestCache(3, time.Hour)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
		*now = now.Add(time.Second)
	}
	c.Set("k3", 3)
	if _, ok := c.Get("k0"); ok {
		t.Fatalf("oldest entry should be evicted")
	}
	for i := 1; i <= 3; i++ {
		if _, ok := c.Get(fmt.Sprintf("k%d", i)); !ok {
			t.Fatalf("k%d should survive", i)
		}
	}
	if size := c.Stats().Size; size != 3 {
		t.Fatalf("expected size 3 got %d", size)
	}
}

func TestOverwriteDoesNotEvict(t *testing.T) {
	c, now := newTestCache(2, time.Hour)
	c.Set("a", 1)
	*now = now.Add(time.Second)
	c.Set("b", 2)
	*now = now.Add(time.Second)
	c.Set("a", 3)
	if _, ok := c.Get("b"); !ok {
		t.Fatalf("overwriting an existing key must not evict others")
	}
	v, _ := c.Get("a")
	if v.(int) != 3 {
		t.Fatalf("expected overwritten value 3 got %v", v)
	}
}

func TestClearAndStats(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	stats := c.Stats()
	if stats.Size != 2 || stats.MaxSize != 10 || stats.UsagePercent != 20 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	c.Clear()
	if c.Stats().Size != 0 {
		t.Fatalf("clear should empty the cache")
	}
}

func TestDefaults(t *testing.T) {
	c := New(0, 0)
	if c.maxSize != DefaultMaxSize || c.ttl != DefaultTTL {
		t.Fatalf("unexpected defaults %d %v", c.maxSize, c.ttl)
	}
}
