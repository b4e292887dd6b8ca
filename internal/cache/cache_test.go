package cache

import (
	"sync"
	"testing"
	"time"
)

func TestMemoryCacheBasic(t *testing.T) {
	c := NewMemoryCache[string](0)
	defer c.Stop()

	if _, found := c.Get("/"); found {
		t.Error("expected cache miss for non-existent key")
	}

	c.Set("/", "<html>home</html>", time.Minute)

	got, found := c.Get("/")
	if !found {
		t.Fatal("expected cache hit")
	}
	if got != "<html>home</html>" {
		t.Errorf("Get() = %q", got)
	}
}

func TestMemoryCacheTTL(t *testing.T) {
	c := NewMemoryCache[string](0)
	defer c.Stop()

	c.Set("short", "x", 50*time.Millisecond)
	if _, found := c.Get("short"); !found {
		t.Error("expected cache hit immediately after set")
	}

	time.Sleep(100 * time.Millisecond)

	if _, found := c.Get("short"); found {
		t.Error("expected cache miss after TTL expired")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be dropped on Get, Len() = %d", c.Len())
	}
}

func TestMemoryCacheNoTTL(t *testing.T) {
	c := NewMemoryCache[int](0)
	c.Set("k", 1, 0)

	c.prune(time.Now().Add(24 * time.Hour))
	if v, found := c.Get("k"); !found || v != 1 {
		t.Errorf("Get() = %v, %v; entries without TTL never expire", v, found)
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	c := NewMemoryCache[string](0)

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)

	c.Invalidate("a")
	if _, found := c.Get("a"); found {
		t.Error("expected cache miss after invalidate")
	}
	if _, found := c.Get("b"); !found {
		t.Error("other entries should survive Invalidate")
	}

	c.InvalidateAll()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after InvalidateAll", c.Len())
	}
}

func TestMemoryCacheCleanupLoop(t *testing.T) {
	c := NewMemoryCache[string](10 * time.Millisecond)
	defer c.Stop()

	c.Set("gone", "x", time.Millisecond)
	c.Set("kept", "y", time.Hour)

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want expired entry cleaned up", c.Len())
	}
}

func TestMemoryCacheStopTwice(t *testing.T) {
	c := NewMemoryCache[string](time.Minute)
	c.Stop()
	c.Stop()
}

func TestMemoryCacheConcurrent(t *testing.T) {
	c := NewMemoryCache[int](0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.Set("k", n, time.Minute)
			c.Get("k")
			if n%10 == 0 {
				c.InvalidateAll()
			}
		}(i)
	}
	wg.Wait()
}
