package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// PlayerConfig holds the playback engine knobs. The defaults match
// Discord voice: 20ms Opus frames at 48kHz stereo.
type PlayerConfig struct {
	FrameDuration  time.Duration `env:"PLAYER_FRAME_DURATION, default=20ms"`
	QueueMax       int           `env:"PLAYER_QUEUE_MAX, default=256"`
	IdleTimeout    time.Duration `env:"PLAYER_IDLE_TIMEOUT, default=5m"`
	Lookahead      int           `env:"PLAYER_FRAME_LOOKAHEAD, default=64"`
	StallTolerance int           `env:"PLAYER_STALL_TOLERANCE, default=250"`
	SweepCron      string        `env:"PLAYER_SWEEP_CRON, default=* * * * *"`
}

func NewPlayerConfigFromEnv() (*PlayerConfig, error) {
	var cfg PlayerConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
