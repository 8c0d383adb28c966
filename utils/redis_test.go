package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedis(t *testing.T) (RedisClient, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client, err := NewRedisClient(srv.Addr(), "")
	if err != nil {
		t.Fatalf("Failed to create Redis client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, srv
}

func TestRedisOperations(t *testing.T) {
	client, srv := newTestRedis(t)

	ctx := context.Background()
	key := "test_key"
	value := "test_value"
	expiration := 1 * time.Second

	// Test Set
	if err := client.SetToCache(ctx, key, value, expiration); err != nil {
		t.Errorf("SetToCache failed: %v", err)
	}

	// Test Get
	got, err := client.GetFromCache(ctx, key)
	if err != nil {
		t.Errorf("GetFromCache failed: %v", err)
	}
	if got != value {
		t.Errorf("GetFromCache got = %v, want %v", got, value)
	}

	// Test Expiration
	srv.FastForward(2 * time.Second)
	_, err = client.GetFromCache(ctx, key)
	if err == nil {
		t.Error("Expected error after expiration, got nil")
	} else if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss error, got %v", err)
	}
}

func TestRedisDeleteByPrefix(t *testing.T) {
	client, srv := newTestRedis(t)
	ctx := context.Background()

	for _, k := range []string{"page:home:2026-10-19", "page:home:2026-10-20", "other:key"} {
		if err := client.SetToCache(ctx, k, "v", time.Minute); err != nil {
			t.Fatalf("SetToCache(%s) failed: %v", k, err)
		}
	}

	if err := client.DeleteByPrefix(ctx, "page:home:"); err != nil {
		t.Fatalf("DeleteByPrefix failed: %v", err)
	}
	if srv.Exists("page:home:2026-10-19") || srv.Exists("page:home:2026-10-20") {
		t.Error("Prefixed keys survived DeleteByPrefix")
	}
	if !srv.Exists("other:key") {
		t.Error("Unrelated key was deleted")
	}

	if err := client.DeleteFromCache(ctx, "other:key"); err != nil {
		t.Fatalf("DeleteFromCache failed: %v", err)
	}
	if srv.Exists("other:key") {
		t.Error("DeleteFromCache left the key in place")
	}
}

func TestNewRedisClientUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	if _, err := NewRedisClient(addr, ""); err == nil {
		t.Error("Expected connection error for a closed server")
	}
}

func TestPageCache(t *testing.T) {
	client, srv := newTestRedis(t)
	ctx := context.Background()
	cache := NewPageCache(client, time.Minute)

	if _, ok := cache.Get(ctx, HomePageKey("2026-10-19")); ok {
		t.Fatal("empty cache reported a hit")
	}
	cache.Set(ctx, HomePageKey("2026-10-19"), `{"ok":true}`)
	got, ok := cache.Get(ctx, HomePageKey("2026-10-19"))
	if !ok || got != `{"ok":true}` {
		t.Fatalf("Get() = %q, %v", got, ok)
	}

	cache.InvalidateHome(ctx)
	if srv.Exists(HomePageKey("2026-10-19")) {
		t.Error("InvalidateHome left the page cached")
	}

	var disabled *PageCache
	disabled.Set(ctx, "k", "v")
	disabled.InvalidateHome(ctx)
	if _, ok := disabled.Get(ctx, "k"); ok {
		t.Error("nil cache reported a hit")
	}
}
