package content

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache memoizes fetched contents and fetch statuses in redis.
//
// Replicas of the server sharing a redis do not fetch the same location twice
// while its status lives.
type RedisCache struct {
	client  redis.UniversalClient
	fetcher Fetcher

	prefix string

	// how long fetched contents live.
	ttl time.Duration

	// how long failures and pending marks live. After that, locations are fetched again.
	retryAfter time.Duration

	// timeout of each fetch.
	fetchTimeout time.Duration
}

var _ Cache = &RedisCache{}

type RedisOption func(*RedisCache)

func WithPrefix(prefix string) RedisOption {
	return func(c *RedisCache) {
		c.prefix = prefix
	}
}

func WithRetryAfter(d time.Duration) RedisOption {
	return func(c *RedisCache) {
		c.retryAfter = d
	}
}

func WithFetchTimeout(d time.Duration) RedisOption {
	return func(c *RedisCache) {
		c.fetchTimeout = d
	}
}

func NewRedisCache(client redis.UniversalClient, fetcher Fetcher, ttl time.Duration, options ...RedisOption) *RedisCache {
	c := &RedisCache{
		client:       client,
		fetcher:      fetcher,
		prefix:       "knitmeta:artifact:",
		ttl:          ttl,
		retryAfter:   30 * time.Second,
		fetchTimeout: time.Minute,
	}
	for _, o := range options {
		o(c)
	}
	return c
}

func (c *RedisCache) statusKey(location string) string {
	return c.prefix + "status:" + location
}

func (c *RedisCache) bodyKey(location string) string {
	return c.prefix + "body:" + location
}

const failedPrefix = string(Failed) + ":"

func (c *RedisCache) Get(ctx context.Context, location string) (Result, error) {
	status, err := c.client.Get(ctx, c.statusKey(location)).Result()
	if errors.Is(err, redis.Nil) {
		return c.start(ctx, location)
	}
	if err != nil {
		return Result{}, err
	}

	switch {
	case status == string(Ready):
		body, err := c.client.Get(ctx, c.bodyKey(location)).Bytes()
		if errors.Is(err, redis.Nil) {
			// the body is expired ahead of its status.
			c.client.Del(ctx, c.statusKey(location))
			return c.start(ctx, location)
		}
		if err != nil {
			return Result{}, err
		}
		return Result{Status: Ready, Body: body}, nil
	case strings.HasPrefix(status, failedPrefix):
		return Result{Status: Failed, Reason: strings.TrimPrefix(status, failedPrefix)}, nil
	default:
		return Result{Status: Pending}, nil
	}
}

// start marks the location pending, and fetches it in background.
//
// When another one has marked it already, this does nothing.
func (c *RedisCache) start(ctx context.Context, location string) (Result, error) {
	won, err := c.client.SetNX(ctx, c.statusKey(location), string(Pending), c.retryAfter).Result()
	if err != nil {
		return Result{}, err
	}
	if won {
		go c.fetch(context.WithoutCancel(ctx), location)
	}
	return Result{Status: Pending}, nil
}

func (c *RedisCache) fetch(ctx context.Context, location string) {
	fctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	body, err := c.fetcher.Fetch(fctx, location)
	if err != nil {
		log.Printf("fetching artifact %s is failed: %s", location, err)
		if serr := c.client.Set(
			ctx, c.statusKey(location), failedPrefix+err.Error(), c.retryAfter,
		).Err(); serr != nil {
			log.Printf("cannot record the failure of %s: %s", location, serr)
		}
		return
	}

	if _, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, c.bodyKey(location), body, c.ttl)
		p.Set(ctx, c.statusKey(location), string(Ready), c.ttl)
		return nil
	}); err != nil {
		log.Printf("cannot store artifact %s: %s", location, err)
		c.client.Del(ctx, c.statusKey(location))
	}
}

// Describe the cache for logs.
func (c *RedisCache) String() string {
	return fmt.Sprintf("redis cache (prefix = %s, ttl = %s)", c.prefix, c.ttl)
}
