package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"smartlib/internal/loan/models"
	id "smartlib/pkg/domain"
	"smartlib/pkg/platform/sentinel"
)

const (
	bookSummaryKeyPrefix = "smartlib:book:summary:"
	defaultTTL           = 10 * time.Minute
)

// RedisBookCache caches book title/author used to enrich loan responses, so
// listings do not fan out to the inventory service for every row.
type RedisBookCache struct {
	client *redis.Client
	ttl    time.Duration
}

type Option func(*RedisBookCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *RedisBookCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func NewRedis(client *redis.Client, opts ...Option) *RedisBookCache {
	c := &RedisBookCache{client: client, ttl: defaultTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns sentinel.ErrNotFound on a miss.
func (c *RedisBookCache) Get(ctx context.Context, bookID id.BookID) (*models.BookSummary, error) {
	raw, err := c.client.Get(ctx, bookSummaryKeyPrefix+bookID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book summary: %w", err)
	}
	var summary models.BookSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("decode book summary: %w", err)
	}
	return &summary, nil
}

func (c *RedisBookCache) Set(ctx context.Context, summary models.BookSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode book summary: %w", err)
	}
	if err := c.client.Set(ctx, bookSummaryKeyPrefix+summary.ID.String(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set book summary: %w", err)
	}
	return nil
}
