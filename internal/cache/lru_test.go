package cache

import (
	"testing"
	"time"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a")
	}
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}
}

func TestLRUExpires(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }
	c.Set("k", "v")

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should have expired")
	}

	c.Set("x", "y")
	now = now.Add(2 * time.Minute)
	m := NewManager()
	m.Register(c)
	if n := m.CleanAll(); n != 1 || c.Size() != 0 {
		t.Fatalf("expected one expired entry cleaned, got %d (size %d)", n, c.Size())
	}
}

func TestLRUDeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("u1|2025-01-01", 1)
	c.Set("u1|2025-01-02", 2)
	c.Set("u10|2025-01-01", 3)
	if n := c.DeletePrefix("u1|"); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	if _, ok := c.Get("u10|2025-01-01"); !ok {
		t.Fatal("other users' entries must survive")
	}
}

func TestManagerStartStop(t *testing.T) {
	m := NewManager()
	m.Register(NewLRUCache[int](1, time.Millisecond))
	m.StartCleanup(time.Millisecond)
	m.StartCleanup(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	m.Stop()
	m.Stop()
}
