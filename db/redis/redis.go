package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Digital-Creators-Team/spin-rewards/config"
	"github.com/go-redis/redis/v8"
)

// ErrKeyNotFound is returned when a document does not exist.
var ErrKeyNotFound = errors.New("key not found")

// revisionSuffix names the counter kept next to every document.
const revisionSuffix = ":rev"

// Client stores JSON documents in Redis. Every write bumps a revision
// counter in the same transaction so readers can tell which save they saw.
type Client struct {
	client *redis.Client
}

// New connects and pings. A server that cannot be reached is an error here
// rather than on the first save.
func New(cfg config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetAddr(),
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.GetAddr(), err)
	}
	return &Client{client: client}, nil
}

// ReadDoc decodes the document at key into dest and returns its revision.
func (r *Client) ReadDoc(ctx context.Context, key string, dest interface{}) (int64, error) {
	vals, err := r.client.MGet(ctx, key, key+revisionSuffix).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}
	raw, ok := vals[0].(string)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return 0, fmt.Errorf("failed to decode %s: %w", key, err)
	}

	var rev int64
	if s, ok := vals[1].(string); ok {
		if _, err := fmt.Sscan(s, &rev); err != nil {
			return 0, fmt.Errorf("bad revision for %s: %w", key, err)
		}
	}
	return rev, nil
}

// WriteDoc encodes value at key without expiry and returns the new revision.
func (r *Client) WriteDoc(ctx context.Context, key string, value interface{}) (int64, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s: %w", key, err)
	}

	var incr *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, 0)
		incr = pipe.Incr(ctx, key+revisionSuffix)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Close closes the connection pool
func (r *Client) Close() error {
	return r.client.Close()
}

// Ping checks the connection
func (r *Client) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
