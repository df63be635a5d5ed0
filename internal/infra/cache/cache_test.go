package cache_test

import (
	"testing"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_TakeIsSingleUse(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("nonce", "pending")

	val, ok := c.Take("nonce")
	if !ok || val != "pending" {
		t.Fatalf("expected first take to succeed, got %q %v", val, ok)
	}
	if _, ok := c.Take("nonce"); ok {
		t.Fatal("expected second take to miss")
	}
}

func TestCache_SetWithTTL(t *testing.T) {
	c := cache.New[int](5 * time.Minute)
	defer c.Close()

	c.SetWithTTL("short", 1, 30*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	if _, ok := c.Take("short"); ok {
		t.Fatal("expected expired entry to be gone")
	}
}
