package ratelimit

import (
	"context"
	"testing"
	"time"
)

func staticSettings(s Settings) SettingsProvider {
	return func() Settings { return s }
}

func TestManager_MemoryBackend(t *testing.T) {
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	m := NewManager(staticSettings(Settings{RequestsPerMinute: 2}), func() time.Time { return now }, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, errAllow := m.Allow(ctx, "id-1")
		if errAllow != nil {
			t.Fatalf("allow: %v", errAllow)
		}
		if !result.Allowed {
			t.Fatalf("request %d: expected admission", i+1)
		}
	}
	result, errAllow := m.Allow(ctx, "id-1")
	if errAllow != nil {
		t.Fatalf("allow: %v", errAllow)
	}
	if result.Allowed {
		t.Fatal("expected rejection over the ceiling")
	}
}

func TestManager_ZeroLimitDisables(t *testing.T) {
	m := NewManager(staticSettings(Settings{RequestsPerMinute: 0}), nil, nil)
	for i := 0; i < 100; i++ {
		result, errAllow := m.Allow(context.Background(), "id-1")
		if errAllow != nil {
			t.Fatalf("allow: %v", errAllow)
		}
		if !result.Allowed {
			t.Fatal("expected unlimited admission with zero ceiling")
		}
	}
}

func TestManager_SettingsReloadTakesEffect(t *testing.T) {
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	current := Settings{RequestsPerMinute: 1}
	m := NewManager(func() Settings { return current }, func() time.Time { return now }, nil)
	ctx := context.Background()

	if result, _ := m.Allow(ctx, "id-1"); !result.Allowed {
		t.Fatal("expected first request admitted")
	}
	if result, _ := m.Allow(ctx, "id-1"); result.Allowed {
		t.Fatal("expected second request rejected at ceiling 1")
	}

	current.RequestsPerMinute = 5
	if result, _ := m.Allow(ctx, "id-1"); !result.Allowed {
		t.Fatal("expected admission after ceiling raised")
	}
}

func TestManager_RedisFailureFallsBackToMemory(t *testing.T) {
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	// No address configured: ensureRedis fails, breaker trips, memory serves.
	m := NewManager(staticSettings(Settings{
		RequestsPerMinute: 1,
		RedisEnabled:      true,
	}), func() time.Time { return now }, nil)
	ctx := context.Background()

	result, errAllow := m.Allow(ctx, "id-1")
	if errAllow != nil {
		t.Fatalf("allow: %v", errAllow)
	}
	if !result.Allowed {
		t.Fatal("expected memory fallback to admit the first request")
	}
	if !m.isBreakerActive(now) {
		t.Fatal("expected breaker tripped after redis failure")
	}

	// Breaker expires after its duration and redis is retried.
	if m.isBreakerActive(now.Add(redisBreakerDuration + time.Second)) {
		t.Fatal("expected breaker cleared after expiry")
	}
}
