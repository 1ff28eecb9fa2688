package choice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/psds-microservice/problem-portal/internal/logger"
	"github.com/psds-microservice/problem-portal/internal/model"
)

const redisKeyPrefix = "problem-portal:choices:"

// RedisCache shares resolved choice lists between portal instances. ttl is
// the session lifetime; zero keeps entries until Redis evicts them.
type RedisCache struct {
	rdb *goredis.Client
	ttl time.Duration
	log *logger.Logger
}

// NewRedisCache connects to redisURL (redis://host:port/db) and pings it.
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration, log *logger.Logger) (*RedisCache, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	rdb := goredis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RedisCache{rdb: rdb, ttl: ttl, log: log.With("component", "choice.redis")}, nil
}

func (c *RedisCache) Get(ctx context.Context, key Key) ([]model.Choice, bool) {
	raw, err := c.rdb.Get(ctx, redisKeyPrefix+key.String()).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("redis get failed", "key", key.String(), "error", err)
		}
		return nil, false
	}
	var choices []model.Choice
	if err := json.Unmarshal(raw, &choices); err != nil {
		c.log.Warn("redis entry is not a choice list", "key", key.String(), "error", err)
		return nil, false
	}
	return choices, true
}

func (c *RedisCache) Put(ctx context.Context, key Key, choices []model.Choice) {
	raw, err := json.Marshal(choices)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, redisKeyPrefix+key.String(), raw, c.ttl).Err(); err != nil {
		c.log.Warn("redis set failed", "key", key.String(), "error", err)
	}
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
