package security

import (
	"fmt"
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(1, 2, nil)
	defer rl.Stop()

	if !rl.Allow("10.0.0.1") {
		t.Error("Allow() rejected the first request")
	}
	if !rl.Allow("10.0.0.1") {
		t.Error("Allow() rejected a request within the burst")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("Allow() accepted a request beyond the burst")
	}

	// Other identifiers have independent buckets.
	if !rl.Allow("10.0.0.2") {
		t.Error("Allow() rejected a request from a fresh identifier")
	}
}

func TestRateLimiterLRUEviction(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	defer rl.Stop()
	rl.maxEntries = 3

	for i := 0; i < 3; i++ {
		rl.Allow(fmt.Sprintf("client-%d", i))
	}
	// client-0 is now least recently used; a fourth identifier evicts it.
	rl.Allow("client-3")

	rl.mu.Lock()
	_, has0 := rl.limiters["client-0"]
	_, has3 := rl.limiters["client-3"]
	entries := len(rl.limiters)
	rl.mu.Unlock()

	if has0 {
		t.Error("expected client-0 to be evicted")
	}
	if !has3 {
		t.Error("expected client-3 to be tracked")
	}
	if entries != 3 {
		t.Errorf("tracked entries = %d, want 3", entries)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	defer rl.Stop()

	rl.Allow("stale-client")

	rl.mu.Lock()
	rl.lruList.Front().Value.(*limiterEntry).lastAccess = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.Cleanup(30 * time.Minute)

	rl.mu.Lock()
	entries := len(rl.limiters)
	rl.mu.Unlock()

	if entries != 0 {
		t.Errorf("tracked entries after cleanup = %d, want 0", entries)
	}
}

func TestRateLimiterStopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	rl.Stop()
	rl.Stop()
}
