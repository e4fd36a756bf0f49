package cache

import (
	"context"
	"testing"
	"time"

	"github.com/andresuchdata/invengine/internal/analytics"
	"github.com/andresuchdata/invengine/internal/config"
)

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.CacheConfig
		wantAddr string
		wantDB   int
	}{
		{"defaults", config.CacheConfig{}, "127.0.0.1:6379", 0},
		{"host and port", config.CacheConfig{RedisHost: "cache", RedisPort: "6380", RedisDB: 2}, "cache:6380", 2},
		{"url wins", config.CacheConfig{RedisURL: "redis://:pw@redis.internal:6390/3", RedisHost: "ignored"}, "redis.internal:6390", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := redisOptions(tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if opts.Addr != tt.wantAddr || opts.DB != tt.wantDB {
				t.Fatalf("want %s/%d, got %s/%d", tt.wantAddr, tt.wantDB, opts.Addr, opts.DB)
			}
		})
	}

	if _, err := redisOptions(config.CacheConfig{RedisURL: "http://nope"}); err == nil {
		t.Fatal("expected invalid url error")
	}
}

func TestDisabledCacheIsNoop(t *testing.T) {
	ctx := context.Background()
	c, err := NewSummaryCache(ctx, config.CacheConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.SetSummary(ctx, analytics.Summary{RunID: "r1"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, err := c.GetSummary(ctx, "r1"); ok || err != nil {
		t.Fatalf("noop cache should always miss, got ok=%v err=%v", ok, err)
	}
	if _, ok, _ := c.LatestRunID(ctx); ok {
		t.Fatal("noop cache should have no latest run")
	}
}

func TestSummaryKey(t *testing.T) {
	if got := summaryKey("abc"); got != "invengine:summary:abc" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestSummaryTTL(t *testing.T) {
	if got := summaryTTL(config.CacheConfig{}); got != defaultSummaryTTL {
		t.Fatalf("unset ttl should default, got %v", got)
	}
	if got := summaryTTL(config.CacheConfig{SummaryTTLSecond: -5}); got != defaultSummaryTTL {
		t.Fatalf("negative ttl should default, got %v", got)
	}
	if got := summaryTTL(config.CacheConfig{SummaryTTLSecond: 90}); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
}

func TestEnabledCacheRejectsBadURL(t *testing.T) {
	_, err := NewSummaryCache(t.Context(), config.CacheConfig{Enabled: true, RedisURL: "http://nope"})
	if err == nil {
		t.Fatal("expected invalid url error before dialing")
	}
}
