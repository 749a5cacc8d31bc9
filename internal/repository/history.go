package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/andrewms2013/veebot-discord/internal/track"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PlayResult records how a track left the player.
type PlayResult string

const (
	ResultPlayed  PlayResult = "played"
	ResultSkipped PlayResult = "skipped"
	ResultErrored PlayResult = "errored"
	ResultStopped PlayResult = "stopped"
)

// PlayRecord is one row of a guild's playback history.
type PlayRecord struct {
	TrackID     string
	Title       string
	WebURL      string
	RequestedBy string
	Result      PlayResult
	PlayedAt    time.Time
}

type HistoryStore interface {
	Record(ctx context.Context, guildID string, t track.Track, result PlayResult) error
	Recent(ctx context.Context, guildID string, limit int) ([]PlayRecord, error)
}

type PostgresHistoryRepository struct {
	db *pgxpool.Pool
}

func NewPostgresHistoryRepository(db *pgxpool.Pool) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{db: db}
}

func (r *PostgresHistoryRepository) Record(ctx context.Context, guildID string, t track.Track, result PlayResult) error {
	const query = `
	INSERT INTO play_history (guild_id, track_id, title, web_url, requested_by, result)
	VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query, guildID, t.ID, t.Title, t.WebURL, t.RequestedBy, string(result))
	if err != nil {
		return fmt.Errorf("failed to record play history: %w", err)
	}
	return nil
}

func (r *PostgresHistoryRepository) Recent(ctx context.Context, guildID string, limit int) ([]PlayRecord, error) {
	const query = `
	SELECT track_id, title, web_url, requested_by, result, played_at
	FROM play_history
	WHERE guild_id = $1
	ORDER BY played_at DESC
	LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query play history: %w", err)
	}
	defer rows.Close()

	var records []PlayRecord
	for rows.Next() {
		var rec PlayRecord
		var result string
		if err := rows.Scan(&rec.TrackID, &rec.Title, &rec.WebURL, &rec.RequestedBy, &result, &rec.PlayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan play history row: %w", err)
		}
		rec.Result = PlayResult(result)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate play history rows: %w", err)
	}
	return records, nil
}

var _ HistoryStore = (*PostgresHistoryRepository)(nil)
