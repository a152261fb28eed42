// Package redis wraps Redis operations for resume coordination.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis for resume leases and quota observability counters.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health pings the Redis server.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func resumeLeaseKey(contentID string) string {
	return fmt.Sprintf("resume_lease:%s", contentID)
}

// AcquireResumeLease attempts to take the resume lease for a content
// item. Two concurrent resumes of the same item collapse into one: the
// loser sees false and backs off.
func (c *Client) AcquireResumeLease(
	ctx context.Context,
	contentID string,
	ttl time.Duration,
) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, resumeLeaseKey(contentID), "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// ReleaseResumeLease releases the resume lease.
func (c *Client) ReleaseResumeLease(ctx context.Context, contentID string) error {
	return c.rdb.Del(ctx, resumeLeaseKey(contentID)).Err()
}

// RecordQuotaPauseCount stores the latest quota-paused count so external
// dashboards can read it without touching the database.
func (c *Client) RecordQuotaPauseCount(ctx context.Context, count int) error {
	return c.rdb.Set(ctx, "quota_paused_count", count, 0).Err()
}
