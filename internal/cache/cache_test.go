package cache

import (
	"testing"
	"time"
)

func TestGetReturnsFreshValue(t *testing.T) {
	c := New[string](4, time.Minute, time.Hour)
	c.Set("usd-cny", "7.25")

	got, ok := c.Get("usd-cny")
	if !ok || got != "7.25" {
		t.Fatalf("Get = %q, %v; want fresh hit", got, ok)
	}
}

func TestGetMissesExpiredButGetStaleServesIt(t *testing.T) {
	c := New[float64](4, time.Nanosecond, time.Hour)
	c.Set("usd-cny", 7.25)
	time.Sleep(time.Millisecond)

	if _, ok := c.Get("usd-cny"); ok {
		t.Fatal("Get must miss an expired entry")
	}
	got, ok, fresh := c.GetStale("usd-cny")
	if !ok || got != 7.25 {
		t.Fatalf("GetStale = %v, %v; want the stale value", got, ok)
	}
	if fresh {
		t.Error("GetStale reported an expired entry as fresh")
	}
}

func TestSetRefreshesExpiry(t *testing.T) {
	c := New[int](4, 50*time.Millisecond, time.Hour)
	c.Set("k", 1)
	c.Set("k", 2)

	got, ok := c.Get("k")
	if !ok || got != 2 {
		t.Fatalf("Get = %d, %v; want the rewritten value", got, ok)
	}
	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1 after overwrite", c.Size())
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int](2, time.Minute, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a becomes most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted as least recently used")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a was touched and must survive the eviction")
	}
}

func TestCleanExpiredKeepsStaleRetainsWindow(t *testing.T) {
	c := New[int](4, time.Nanosecond, time.Hour)
	c.Set("recent", 1)
	time.Sleep(time.Millisecond)

	if removed := c.CleanExpired(); removed != 0 {
		t.Fatalf("CleanExpired removed %d, want 0 inside the retention window", removed)
	}
	if _, ok, _ := c.GetStale("recent"); !ok {
		t.Fatal("stale entry must survive cleanup inside the retention window")
	}
}

func TestCleanExpiredDropsBeyondRetention(t *testing.T) {
	c := New[int](4, time.Nanosecond, time.Nanosecond)
	c.Set("old", 1)
	time.Sleep(time.Millisecond)

	if removed := c.CleanExpired(); removed != 1 {
		t.Fatalf("CleanExpired removed %d, want 1", removed)
	}
	if _, ok, _ := c.GetStale("old"); ok {
		t.Fatal("entry beyond retention must be gone even for stale reads")
	}
}

func TestDelete(t *testing.T) {
	c := New[int](4, time.Minute, time.Hour)
	c.Set("k", 1)
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("deleted key must miss")
	}
}
