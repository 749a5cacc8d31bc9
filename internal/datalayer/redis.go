package datalayer

import (
	"github.com/andrewms2013/veebot-discord/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClientFromEnv constructs a Redis client from the REDIS_*
// environment variables.
func NewRedisClientFromEnv() (*redis.Client, error) {
	cfg, err := config.NewRedisConfigFromEnv()
	if err != nil {
		return nil, err
	}

	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	}), nil
}
