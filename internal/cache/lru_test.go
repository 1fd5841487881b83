package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestLRUEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3) // evicts a

	if _, ok := c.Get("a"); ok {
		t.Fatalf("oldest entry should be evicted")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Fatalf("expected b=2, got %d ok=%v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size expected 2, got %d", c.Size())
	}
}

func TestLRUGetRefreshesRecency(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")    // a is now most recent
	c.Set("c", 3) // evicts b

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should be evicted after a was touched")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a should survive")
	}
}

func TestLRUTTL(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)
	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expired entry should not be returned")
	}
	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 swept entry, got %d", n)
	}
}

func TestLRUDeletePrefix(t *testing.T) {
	c := NewLRUCache[string](100, time.Minute)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("user:1:report:%d", i), "x")
	}
	c.Set("user:12:report:0", "y")

	if n := c.DeletePrefix("user:1:"); n != 5 {
		t.Fatalf("expected 5 removed, got %d", n)
	}
	if _, ok := c.Get("user:12:report:0"); !ok {
		t.Fatalf("other user's entry must survive prefix delete")
	}
	if c.Size() != 1 {
		t.Fatalf("size expected 1, got %d", c.Size())
	}
}
