package player

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/andrewms2013/veebot-discord/internal/metrics"
	"github.com/andrewms2013/veebot-discord/internal/schedule"
)

// Registry owns the guild-to-player mapping. The mutex guards the map
// only; player operations happen outside it, so one guild's work never
// blocks another's lookup.
type Registry struct {
	cfg  Config
	deps Deps

	mu      sync.Mutex
	players map[string]*Player
}

// NewRegistry creates an empty registry. All players it creates share
// cfg and deps.
func NewRegistry(cfg Config, deps Deps) *Registry {
	return &Registry{
		cfg:     cfg.withDefaults(),
		deps:    deps,
		players: make(map[string]*Player),
	}
}

// GetOrCreate returns the guild's player, creating it if absent.
// created reports whether this call made the instance; concurrent
// callers for the same guild all receive the same one.
func (r *Registry) GetOrCreate(guildID string) (p *Player, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.players[guildID]; ok {
		return existing, false
	}
	p = New(guildID, r.cfg, r.deps)
	r.players[guildID] = p
	return p, true
}

// Get returns the guild's player if one exists.
func (r *Registry) Get(guildID string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[guildID]
	return p, ok
}

// Remove shuts the guild's player down and drops it from the map.
func (r *Registry) Remove(ctx context.Context, guildID string) error {
	r.mu.Lock()
	p, ok := r.players[guildID]
	delete(r.players, guildID)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return p.Shutdown(ctx)
}

// Len returns the number of live players.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Sweep shuts down and removes every player that has been idle with an
// empty queue for at least idleTimeout. It returns how many were
// removed.
func (r *Registry) Sweep(ctx context.Context, idleTimeout time.Duration) int {
	now := time.Now()

	r.mu.Lock()
	var expired []*Player
	for guildID, p := range r.players {
		if p.IdleFor(now) >= idleTimeout {
			expired = append(expired, p)
			delete(r.players, guildID)
		}
	}
	r.mu.Unlock()

	for _, p := range expired {
		if err := p.Shutdown(ctx); err != nil {
			slog.Warn("failed to shut down idle player",
				"guildID", p.GuildID(), "error", err)
		}
	}
	return len(expired)
}

// SweepLoop runs Sweep on the cron schedule until ctx is cancelled,
// keeping the active-player gauge current.
func (r *Registry) SweepLoop(ctx context.Context, cron string, idleTimeout time.Duration, m *metrics.Metrics) error {
	if err := schedule.ValidateCron(cron); err != nil {
		return err
	}

	for {
		next, err := schedule.NextRunAfter(cron, time.Now())
		if err != nil {
			return err
		}

		select {
		case <-time.After(time.Until(next)):
		case <-ctx.Done():
			return ctx.Err()
		}

		removed := r.Sweep(ctx, idleTimeout)
		if removed > 0 {
			slog.Info("swept idle players", "removed", removed, "remaining", r.Len())
		}
		if m != nil {
			m.SetActivePlayers(r.Len())
		}
	}
}

// Shutdown stops every player. Used on process exit.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	all := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		all = append(all, p)
	}
	r.players = make(map[string]*Player)
	r.mu.Unlock()

	var firstErr error
	for _, p := range all {
		if err := p.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
