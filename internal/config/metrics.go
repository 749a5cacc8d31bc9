package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

type MetricsConfig struct {
	Addr    string `env:"METRICS_ADDR, default=:8080"`
	Enabled bool   `env:"METRICS_ENABLED, default=true"`
}

func NewMetricsConfigFromEnv() (*MetricsConfig, error) {
	var cfg MetricsConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
