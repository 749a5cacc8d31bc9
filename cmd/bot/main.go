package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andrewms2013/veebot-discord/internal/config"
	"github.com/andrewms2013/veebot-discord/internal/datalayer"
	"github.com/andrewms2013/veebot-discord/internal/handler"
	"github.com/andrewms2013/veebot-discord/internal/metrics"
	"github.com/andrewms2013/veebot-discord/internal/pipeline"
	"github.com/andrewms2013/veebot-discord/internal/player"
	"github.com/andrewms2013/veebot-discord/internal/repository"
	"github.com/andrewms2013/veebot-discord/internal/resolver"
	"github.com/andrewms2013/veebot-discord/internal/track"
	"github.com/andrewms2013/veebot-discord/internal/voice"
)

// historyRecorder adapts the play history repository to the player's
// recorder interface.
type historyRecorder struct {
	store repository.HistoryStore
}

func (r *historyRecorder) Record(ctx context.Context, guildID string, t track.Track, outcome player.Outcome) error {
	return r.store.Record(ctx, guildID, t, repository.PlayResult(outcome))
}

func runBotForever() error {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	pool, err := datalayer.NewPostgresPoolFromEnv()
	if err != nil {
		return fmt.Errorf("failed to create postgres pool: %w", err)
	}
	defer pool.Close()

	if err := datalayer.MigratePostgres(pool); err != nil {
		return fmt.Errorf("failed to migrate postgres: %w", err)
	}

	discordConfig, err := config.NewDiscordConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load discord config: %w", err)
	}

	playerConfig, err := config.NewPlayerConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load player config: %w", err)
	}

	settings := repository.NewPostgresSettingsRepository(pool)
	history := repository.NewPostgresHistoryRepository(pool)

	minioStorage, err := datalayer.NewMinioStorageFromEnv()
	if err != nil {
		return fmt.Errorf("failed to create minio storage: %w", err)
	}
	if err := minioStorage.EnsureBucket(context.Background()); err != nil {
		return fmt.Errorf("failed to ensure minio bucket: %w", err)
	}

	redisConfig, err := config.NewRedisConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load redis config: %w", err)
	}
	redisClient, err := datalayer.NewRedisClientFromEnv()
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer redisClient.Close()

	trackResolver := resolver.NewCachingResolver(
		resolver.NewDefault(), redisClient, redisConfig.CacheTTL)

	session, err := handler.NewSession(discordConfig.Token, handler.Handlers{
		Ready: handler.ReadyLog,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	m := metrics.New()

	registry := player.NewRegistry(player.Config{
		FrameDuration:  playerConfig.FrameDuration,
		QueueMax:       playerConfig.QueueMax,
		StallTolerance: playerConfig.StallTolerance,
	}, player.Deps{
		Resolver: trackResolver,
		Pipeline: pipeline.NewEncoder(trackResolver, minioStorage, pipeline.Options{
			Lookahead: playerConfig.Lookahead,
		}),
		Sinks:   voice.NewSessionProvider(session),
		History: &historyRecorder{store: history},
		Metrics: m,
	})

	interactor := handler.NewInteractor(registry, settings, history)
	session.AddHandler(interactor.HandleInteraction)

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("failed to close session", "error", err)
		}
	}()

	commandGuildID := discordConfig.GuildID
	if discordConfig.RunBotGlobally {
		commandGuildID = ""
	}
	if err := handler.EstablishCommands(session, commandGuildID); err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		err := registry.SweepLoop(ctx, playerConfig.SweepCron, playerConfig.IdleTimeout, m)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("sweep loop exited", "error", err)
		}
	}()

	metricsConfig, err := config.NewMetricsConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load metrics config: %w", err)
	}
	var metricsServer *http.Server
	if metricsConfig.Enabled {
		metricsServer = &http.Server{
			Addr: metricsConfig.Addr,
			Handler: m.Router(func() {
				m.SetActivePlayers(registry.Len())
			}),
		}
		go func() {
			err := metricsServer.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server exited", "error", err)
			}
		}()
	}

	slog.Info("Bot is running, press Ctrl+C to exit")
	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("failed to shut down metrics server", "error", err)
		}
	}
	if err := registry.Shutdown(shutdownCtx); err != nil {
		slog.Warn("failed to shut down players", "error", err)
	}
	return nil
}

func main() {
	if err := runBotForever(); err != nil {
		log.Fatalf("bot exited: %v", err)
	}
}
