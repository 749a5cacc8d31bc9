// Package presenters builds the Discord responses for playback
// commands.
package presenters

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/andrewms2013/veebot-discord/internal/player"
	"github.com/andrewms2013/veebot-discord/internal/repository"
	"github.com/andrewms2013/veebot-discord/internal/track"
)

const embedColor = 0x5865F2

func contentResponse(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	}
}

var emptyQueueResponse = contentResponse("The queue is empty.")

// BuildNoticeResponse wraps a plain confirmation message.
func BuildNoticeResponse(content string) *discordgo.InteractionResponse {
	return contentResponse(content)
}

// BuildErrorResponse wraps an error message shown to the invoking user.
func BuildErrorResponse(message string) *discordgo.InteractionResponse {
	return contentResponse(message)
}

func durationOrUnknown(d time.Duration) string {
	if d <= 0 {
		return "unknown"
	}
	return track.FormatDuration(d)
}

func trackLink(t track.Track) string {
	if t.WebURL == "" {
		return t.Title
	}
	return fmt.Sprintf("[%s](%s)", t.Title, t.WebURL)
}

// BuildEnqueuedResponse announces a newly queued track. Position 0
// means it plays immediately.
func BuildEnqueuedResponse(t track.Track, position int) *discordgo.InteractionResponse {
	if position == 0 {
		return contentResponse(fmt.Sprintf("Now playing: %s", trackLink(t)))
	}
	return contentResponse(fmt.Sprintf("Queued at position %d: %s", position, trackLink(t)))
}

// BuildQueueResponse renders the queue, current track first.
func BuildQueueResponse(entries []player.Entry, state player.State) *discordgo.InteractionResponse {
	if len(entries) == 0 {
		return emptyQueueResponse
	}

	var sb strings.Builder
	for i, entry := range entries {
		line := trackLink(entry.Track)
		if entry.Track.Duration > 0 {
			line = fmt.Sprintf("%s (%s)", line, track.FormatDuration(entry.Track.Duration))
		}
		if i == 0 {
			fmt.Fprintf(&sb, "**%s** %s\n", strings.ToUpper(state.String()), line)
			continue
		}
		fmt.Fprintf(&sb, "`%d.` %s\n", i, line)
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: sb.String(),
		Color:       embedColor,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d entries", len(entries)),
		},
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	}
}

// BuildNowPlayingResponse renders the current track.
func BuildNowPlayingResponse(t track.Track, state player.State) *discordgo.InteractionResponse {
	embed := &discordgo.MessageEmbed{
		Title:       "Now Playing",
		Description: trackLink(t),
		Color:       embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Duration", Value: durationOrUnknown(t.Duration), Inline: true},
			{Name: "Requested by", Value: fmt.Sprintf("<@%s>", t.RequestedBy), Inline: true},
			{Name: "State", Value: state.String(), Inline: true},
		},
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	}
}

// BuildHistoryResponse renders the guild's recent plays.
func BuildHistoryResponse(records []repository.PlayRecord) *discordgo.InteractionResponse {
	if len(records) == 0 {
		return contentResponse("Nothing has been played yet.")
	}

	var sb strings.Builder
	for _, record := range records {
		link := record.Title
		if record.WebURL != "" {
			link = fmt.Sprintf("[%s](%s)", record.Title, record.WebURL)
		}
		fmt.Fprintf(&sb, "%s %s, requested by <@%s> (%s)\n",
			record.PlayedAt.Format("Jan 2 15:04"), link, record.RequestedBy, record.Result)
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Recently Played",
		Description: sb.String(),
		Color:       embedColor,
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	}
}
