package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR, required"`
	Password string        `env:"REDIS_PASSWORD"`
	CacheTTL time.Duration `env:"REDIS_CACHE_TTL, default=1h"`
}

func NewRedisConfigFromEnv() (*RedisConfig, error) {
	var cfg RedisConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
