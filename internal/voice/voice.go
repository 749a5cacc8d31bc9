// Package voice adapts discordgo voice connections to the player's
// sink interface.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/andrewms2013/veebot-discord/internal/player"
	"github.com/andrewms2013/veebot-discord/internal/util"
)

// ErrSinkClosed is returned by writes after the sink is closed.
var ErrSinkClosed = errors.New("voice sink is closed")

// DiscordSink writes opus frames into one guild's voice connection.
type DiscordSink struct {
	conn *discordgo.VoiceConnection

	mu     sync.Mutex
	closed bool
}

var _ player.Sink = (*DiscordSink)(nil)

// WriteFrame hands one opus frame to the voice gateway. The send is
// bounded by ctx; discordgo's send channel applying backpressure for
// longer than that means the connection is dead.
func (s *DiscordSink) WriteFrame(ctx context.Context, frame []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSinkClosed
	}
	conn := s.conn
	s.mu.Unlock()

	if !conn.Ready {
		return errors.New("voice connection is not ready")
	}

	select {
	case conn.OpusSend <- frame:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("voice send timed out: %w", ctx.Err())
	}
}

// Close stops speaking and disconnects.
func (s *DiscordSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	if err := conn.Speaking(false); err != nil {
		slog.Error("failed to stop speaking", "error", err)
	}
	if err := conn.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from voice: %w", err)
	}
	return nil
}

// SessionProvider opens sinks over one discordgo session.
type SessionProvider struct {
	session *discordgo.Session
}

var _ player.SinkProvider = (*SessionProvider)(nil)

// NewSessionProvider wraps a connected session.
func NewSessionProvider(session *discordgo.Session) *SessionProvider {
	return &SessionProvider{session: session}
}

// Open joins the voice channel and marks the bot as speaking.
func (p *SessionProvider) Open(ctx context.Context, guildID, channelID string) (player.Sink, error) {
	conn, err := p.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("unable to join the voice channel: %w", err)
	}

	if err := conn.Speaking(true); err != nil {
		if derr := conn.Disconnect(); derr != nil {
			slog.Error("failed to disconnect after speaking error", "error", derr)
		}
		return nil, fmt.Errorf("error setting speaking state to 'true': %w", err)
	}

	return &DiscordSink{conn: conn}, nil
}

// FindUserChannel returns the voice channel the user currently
// occupies in the guild, or empty if they are not in one.
func FindUserChannel(state *discordgo.State, guildID, userID string) (string, error) {
	guild, err := state.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("unable to load guild state: %w", err)
	}

	voiceState, found := util.FindFirst(guild.VoiceStates, func(vs *discordgo.VoiceState) bool {
		return vs.UserID == userID
	})
	if !found {
		return "", nil
	}
	return voiceState.ChannelID, nil
}

// MaxAttendedChannel returns the voice channel with the most members,
// or nil if every voice channel is empty. Used as a fallback when the
// invoking user is not in a voice channel.
func MaxAttendedChannel(channels []*discordgo.Channel) *discordgo.Channel {
	var maxAttendedChannel *discordgo.Channel
	maxAttended := 0

	for _, channel := range channels {
		if channel.Type != discordgo.ChannelTypeGuildVoice {
			continue
		}
		if len(channel.Members) > maxAttended {
			maxAttendedChannel = channel
			maxAttended = len(channel.Members)
		}
	}

	return maxAttendedChannel
}
