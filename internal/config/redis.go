package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// RedisOptions accepts either a full redis:// / rediss:// URL or a bare host:port.
func (c *Config) RedisOptions() (*redis.Options, error) {
	if strings.HasPrefix(c.RedisURL, "redis://") || strings.HasPrefix(c.RedisURL, "rediss://") {
		opt, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		return opt, nil
	}
	return &redis.Options{
		Addr:     c.RedisURL,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}, nil
}

// AsynqRedisOpt converts the Redis settings into the connection option used by the task queue.
func (c *Config) AsynqRedisOpt() (asynq.RedisClientOpt, error) {
	opt, err := c.RedisOptions()
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

func NewRedisClient(cfg *Config) (*redis.Client, error) {
	opt, err := cfg.RedisOptions()
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return rdb, nil
}
