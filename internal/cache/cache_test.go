package cache

import (
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	c := New[string, int](time.Hour)

	c.Set("amzn", 42)

	got, found := c.Get("amzn")
	if !found {
		t.Fatal("Expected to find cached value")
	}
	if got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}

	_, found = c.Get("tsla")
	if found {
		t.Error("Expected miss for unknown key")
	}
}

func TestCacheExpiration(t *testing.T) {
	c := New[string, string](time.Hour)

	now := time.Now()
	c.SetClock(func() time.Time { return now })
	c.Set("handle", "cached")

	// Advance past the TTL
	c.SetClock(func() time.Time { return now.Add(25 * time.Hour) })

	_, found := c.Get("handle")
	if found {
		t.Error("Expected cache entry to be expired")
	}
}

func TestCacheCleanup(t *testing.T) {
	c := New[int, string](time.Minute)

	now := time.Now()
	c.SetClock(func() time.Time { return now })
	for i := 0; i < 5; i++ {
		c.Set(i, "v")
	}

	c.SetClock(func() time.Time { return now.Add(2 * time.Minute) })
	c.Cleanup()

	if c.Len() != 0 {
		t.Errorf("Expected 0 cache entries after cleanup, got %d", c.Len())
	}
}

func TestCacheClear(t *testing.T) {
	c := New[string, int](time.Hour)

	c.Set("a", 1)
	c.Set("b", 2)

	if c.Len() != 2 {
		t.Fatalf("Expected 2 entries, got %d", c.Len())
	}

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Expected 0 entries after clear, got %d", c.Len())
	}
}

func TestCacheOverwrite(t *testing.T) {
	c := New[string, int](time.Hour)

	c.Set("k", 1)
	c.Set("k", 2)

	got, _ := c.Get("k")
	if got != 2 {
		t.Errorf("Expected last write to win, got %d", got)
	}
}
