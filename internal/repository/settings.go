package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GuildSettings holds the per-guild knobs that survive restarts.
// Queues deliberately do not; a restart loses all playback state.
type GuildSettings struct {
	GuildID string
	Volume  int
}

// DefaultVolume is the volume percentage applied to guilds that never
// changed it.
const DefaultVolume = 100

type SettingsStore interface {
	Get(ctx context.Context, guildID string) (GuildSettings, error)
	Save(ctx context.Context, settings GuildSettings) error
}

type PostgresSettingsRepository struct {
	db *pgxpool.Pool
}

func NewPostgresSettingsRepository(db *pgxpool.Pool) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{db: db}
}

// Get returns the guild's settings, or the defaults if the guild has
// none stored yet.
func (r *PostgresSettingsRepository) Get(ctx context.Context, guildID string) (GuildSettings, error) {
	const query = `
	SELECT guild_id, volume FROM guild_settings WHERE guild_id = $1
	`

	var settings GuildSettings
	err := r.db.QueryRow(ctx, query, guildID).Scan(&settings.GuildID, &settings.Volume)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GuildSettings{GuildID: guildID, Volume: DefaultVolume}, nil
		}
		return GuildSettings{}, fmt.Errorf("failed to query guild settings: %w", err)
	}
	return settings, nil
}

func (r *PostgresSettingsRepository) Save(ctx context.Context, settings GuildSettings) error {
	const query = `
	INSERT INTO guild_settings (guild_id, volume, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (guild_id) DO UPDATE SET
		volume = EXCLUDED.volume,
		updated_at = now()
	`

	_, err := r.db.Exec(ctx, query, settings.GuildID, settings.Volume)
	if err != nil {
		return fmt.Errorf("failed to save guild settings: %w", err)
	}
	return nil
}

var _ SettingsStore = (*PostgresSettingsRepository)(nil)
