// Package redis holds the short-lived identity state: revoked session ids and
// pending email verification tokens. Every key is written under a namespace so
// several deployments can share one Redis database.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/reliability/retry"
	"github.com/redis/go-redis/v9"
)

// ErrKeyNotFound is returned when a key does not exist
var ErrKeyNotFound = errors.New("key not found")

const dialTimeout = 5 * time.Second

type Client struct {
	rdb       *redis.Client
	namespace string
}

// NewClient parses url, dials and pings. A malformed url is permanent and is
// not worth retrying.
func NewClient(url, namespace string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("invalid redis url: %w", err))
	}
	opts.DialTimeout = dialTimeout

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb, namespace: namespace}, nil
}

func (c *Client) key(k string) string {
	if c.namespace == "" {
		return k
	}
	return c.namespace + ":" + k
}

// Set stores value under key. A zero ttl keeps the key forever.
func (c *Client) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// GetDel reads and removes key in one round trip, so a value can be consumed
// at most once.
func (c *Client) GetDel(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.GetDel(ctx, c.key(key)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", ErrKeyNotFound
	case err != nil:
		return "", fmt.Errorf("failed to consume %s: %w", key, err)
	}
	return v, nil
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return n > 0, nil
}

// Ping is used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
