package handler

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

var minPosition = float64(1)

// Commands is a list of all the commands the bot can handle.
// This is used to register the commands with Discord.
var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "play",
		Description: "Queue a track by URL",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "query",
				Type:        discordgo.ApplicationCommandOptionString,
				Description: "A YouTube URL or video id, or a direct audio URL.",
				Required:    true,
			},
		},
	},
	{
		Name:        "skip",
		Description: "Skip the current track",
	},
	{
		Name:        "pause",
		Description: "Pause playback",
	},
	{
		Name:        "resume",
		Description: "Resume paused playback",
	},
	{
		Name:        "stop",
		Description: "Stop playback and clear the queue",
	},
	{
		Name:        "queue",
		Description: "Show the playback queue",
	},
	{
		Name:        "nowplaying",
		Description: "Show the track that is currently playing",
	},
	{
		Name:        "remove",
		Description: "Remove a queued track",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "position",
				Type:        discordgo.ApplicationCommandOptionInteger,
				Description: "The queue position to remove, as shown by /queue.",
				Required:    true,
				MinValue:    &minPosition,
			},
		},
	},
	{
		Name:        "move",
		Description: "Move a queued track to another position",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "from",
				Type:        discordgo.ApplicationCommandOptionInteger,
				Description: "The current position of the track.",
				Required:    true,
				MinValue:    &minPosition,
			},
			{
				Name:        "to",
				Type:        discordgo.ApplicationCommandOptionInteger,
				Description: "The position to move it to.",
				Required:    true,
				MinValue:    &minPosition,
			},
		},
	},
	{
		Name:        "clear",
		Description: "Clear the queue without stopping the current track",
	},
	{
		Name:        "volume",
		Description: "Set the playback volume for this server",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "percent",
				Type:        discordgo.ApplicationCommandOptionInteger,
				Description: "Volume percentage between 0 and 200. Applies from the next track.",
				Required:    true,
			},
		},
	},
	{
		Name:        "history",
		Description: "Show recently played tracks",
	},
}

// EstablishCommands registers the commands. An empty guildID
// registers them globally.
func EstablishCommands(s *discordgo.Session, guildID string) error {
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, Commands)
	if err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}
	return nil
}
