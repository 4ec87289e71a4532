package redis

import (
	"context"
	"testing"
	"time"
)

func TestLockIsExclusiveUntilReleased(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeRedis()}
	key := client.LockKey("cart_merge", "7")

	first, err := NewLock(client, key, time.Second)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewLock(client, key, time.Second)

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected first acquire, ok=%v err=%v", ok, err)
	}
	if ok, err := second.Acquire(ctx); err != nil || ok {
		t.Fatalf("expected second acquire to fail, ok=%v err=%v", ok, err)
	}

	// A non-owner release must not free someone else's lock.
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatalf("lock should still be held by first")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, err := second.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected acquire after release, ok=%v err=%v", ok, err)
	}
}

func TestNewLockValidation(t *testing.T) {
	if _, err := NewLock(nil, "k", time.Second); err == nil {
		t.Fatalf("expected error without store")
	}
	if _, err := NewLock(&Client{cmd: newFakeRedis()}, "", time.Second); err == nil {
		t.Fatalf("expected error without key")
	}
	lock, err := NewLock(&Client{cmd: newFakeRedis()}, "k", 0)
	if err != nil || lock.ttl != defaultLockTTL {
		t.Fatalf("expected default ttl, got %v err=%v", lock, err)
	}
}
