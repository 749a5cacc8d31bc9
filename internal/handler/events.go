package handler

import (
	"log/slog"

	"github.com/andrewms2013/veebot-discord/internal/player"
	"github.com/andrewms2013/veebot-discord/internal/presenters"
)

// pumpEvents forwards one player's asynchronous notices to the guild's
// last-used text channel. It exits when the player shuts down.
func (h *Interactor) pumpEvents(s DiscordSession, p *player.Player) {
	for event := range p.Events() {
		content := presenters.FormatEvent(event)
		if content == "" {
			continue
		}

		channelID, ok := h.TextChannel(event.GuildID)
		if !ok {
			continue
		}
		if _, err := s.ChannelMessageSend(channelID, content); err != nil {
			slog.Warn("failed to post player notice",
				"guildID", event.GuildID, "channelID", channelID, "error", err)
		}
	}
}
