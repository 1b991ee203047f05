// Package redis wraps go-redis with the key layout and the handful of
// commands the marketplace uses: leases, idempotency markers and rate limit
// windows.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

// Namespace prefixes every key written by the platform.
const Namespace = "cc"

var errNotConnected = errors.New("redis: client not connected")

type commands interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyStore is the subset used by webhook and event dedupe guards.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Client is safe for concurrent use.
type Client struct {
	cmd  commands
	conn *redis.Client
}

// New dials redis from cfg and fails unless the server answers PING.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	conn := redis.NewClient(opts)
	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("redis %s: ping: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"redis_addr": opts.Addr, "redis_db": opts.DB}), "redis connected")
	}
	return &Client{cmd: conn, conn: conn}, nil
}

// options prefers the URL and lets explicit settings fill whatever it leaves
// unset.
func options(cfg config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{Addr: cfg.Address, Password: cfg.Password}
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		opts = parsed
	case cfg.Address == "":
		return nil, errors.New("redis: CAMPUSCART_REDIS_URL or CAMPUSCART_REDIS_ADDR required")
	}
	fill(&opts.DB, cfg.DB)
	fill(&opts.PoolSize, cfg.PoolSize)
	fill(&opts.MinIdleConns, cfg.MinIdleConns)
	fill(&opts.DialTimeout, cfg.DialTimeout)
	fill(&opts.ReadTimeout, cfg.ReadTimeout)
	fill(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func fill[T int | time.Duration](dst *T, fallback T) {
	if *dst == 0 {
		*dst = fallback
	}
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.cmd == nil {
		return "", errNotConnected
	}
	return c.cmd.Get(ctx, key).Result()
}

// SetNX writes value with ttl unless key exists and reports whether it wrote.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.cmd == nil {
		return false, errNotConnected
	}
	return c.cmd.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Del(ctx, keys...).Err()
}

// FixedWindowAllow counts a hit against scope in the current window and
// reports whether the count is within limit. Each window gets its own key,
// so a counter whose expiry was never set still stops mattering once the
// window has passed.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if c.cmd == nil {
		return false, 0, errNotConnected
	}
	if window <= 0 {
		return false, 0, fmt.Errorf("redis: rate limit window must be positive, got %s", window)
	}
	bucket := time.Now().UnixNano() / int64(window)
	key := key("rate_limit", scope, strconv.FormatInt(bucket, 10))

	count, err := c.cmd.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	if count == 1 {
		if err := c.cmd.Expire(ctx, key, window).Err(); err != nil {
			return false, count, fmt.Errorf("redis expire %s: %w", key, err)
		}
	}
	return count <= limit, count, nil
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return key("idempotency", scope, id)
}

func (c *Client) LockKey(scope, id string) string {
	return key("lock", scope, id)
}

func (c *Client) Ping(ctx context.Context) error {
	if c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// key joins the namespace and the non-empty parts with colons.
func key(parts ...string) string {
	var b strings.Builder
	b.WriteString(Namespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
