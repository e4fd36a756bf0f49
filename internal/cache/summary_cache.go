package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/invengine/internal/analytics"
	"github.com/andresuchdata/invengine/internal/config"
)

const (
	summaryKeyPrefix   = "invengine:summary"
	latestRunKey       = "invengine:latest_run"
	summaryScanBatchSz = 100
	defaultSummaryTTL  = 10 * time.Minute
	pingTimeout        = 5 * time.Second
)

// SummaryCache keeps report summaries so readers do not need the full report.
type SummaryCache interface {
	GetSummary(ctx context.Context, runID string) (*analytics.Summary, bool, error)
	SetSummary(ctx context.Context, summary analytics.Summary) error
	LatestRunID(ctx context.Context) (string, bool, error)
	InvalidateAll(ctx context.Context) error
	Close() error
}

type redisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopSummaryCache struct{}

// NewSummaryCache returns a Redis cache when enabled and a no-op otherwise.
func NewSummaryCache(ctx context.Context, cfg config.CacheConfig) (SummaryCache, error) {
	if !cfg.Enabled {
		return &noopSummaryCache{}, nil
	}

	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	ttl := summaryTTL(cfg)
	log.Info().Str("addr", opts.Addr).Dur("ttl", ttl).Msg("cache: redis summary cache enabled")
	return newRedisSummaryCache(client, ttl), nil
}

// redisOptions prefers REDIS_URL and falls back to host, port and db.
func redisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opts, nil
	}
	host, port := cfg.RedisHost, cfg.RedisPort
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "6379"
	}
	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

func summaryTTL(cfg config.CacheConfig) time.Duration {
	if cfg.SummaryTTLSecond <= 0 {
		return defaultSummaryTTL
	}
	return time.Duration(cfg.SummaryTTLSecond) * time.Second
}

func newRedisSummaryCache(client *redis.Client, ttl time.Duration) *redisSummaryCache {
	return &redisSummaryCache{client: client, ttl: ttl}
}

func NewNoopSummaryCache() SummaryCache {
	return &noopSummaryCache{}
}

func (c *redisSummaryCache) GetSummary(ctx context.Context, runID string) (*analytics.Summary, bool, error) {
	payload, err := c.client.Get(ctx, summaryKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var summary analytics.Summary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, false, fmt.Errorf("decode summary cache: %w", err)
	}
	return &summary, true, nil
}

// SetSummary stores the summary and marks its run as the latest.
func (c *redisSummaryCache) SetSummary(ctx context.Context, summary analytics.Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary cache: %w", err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, summaryKey(summary.RunID), payload, c.ttl)
		pipe.Set(ctx, latestRunKey, summary.RunID, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisSummaryCache) LatestRunID(ctx context.Context) (string, bool, error) {
	id, err := c.client.Get(ctx, latestRunKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get failed: %w", err)
	}
	return id, true, nil
}

// InvalidateAll drops every cached summary and the latest-run pointer. Keys
// are deleted in scan-sized batches.
func (c *redisSummaryCache) InvalidateAll(ctx context.Context) error {
	batch := []string{latestRunKey}
	iter := c.client.Scan(ctx, 0, summaryKeyPrefix+":*", summaryScanBatchSz).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= summaryScanBatchSz {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis delete failed: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, batch...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (c *redisSummaryCache) Close() error {
	return c.client.Close()
}

func (n *noopSummaryCache) GetSummary(context.Context, string) (*analytics.Summary, bool, error) {
	return nil, false, nil
}

func (n *noopSummaryCache) SetSummary(context.Context, analytics.Summary) error { return nil }

func (n *noopSummaryCache) LatestRunID(context.Context) (string, bool, error) { return "", false, nil }

func (n *noopSummaryCache) InvalidateAll(context.Context) error { return nil }

func (n *noopSummaryCache) Close() error { return nil }

func summaryKey(runID string) string {
	return fmt.Sprintf("%s:%s", summaryKeyPrefix, runID)
}
