package handler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/andrewms2013/veebot-discord/internal/generator"
	"github.com/andrewms2013/veebot-discord/internal/player"
	"github.com/andrewms2013/veebot-discord/internal/presenters"
	"github.com/andrewms2013/veebot-discord/internal/repository"
	"github.com/andrewms2013/veebot-discord/internal/voice"
)

type ReadyHandler = func(*discordgo.Session, *discordgo.Ready)
type InteractionCreateHandler = func(*discordgo.Session, *discordgo.InteractionCreate)

var ReadyLog = func(s *discordgo.Session, r *discordgo.Ready) {
	username := r.User.Username
	userID := r.User.ID
	slog.Info("Bot is ready", "username", username, "userID", userID)
}

// Handlers groups the discordgo event handlers we register.
type Handlers struct {
	Ready             ReadyHandler
	InteractionCreate InteractionCreateHandler
}

// NewSession creates a discordgo session with the given handlers and
// the intents playback needs.
func NewSession(token string, handlers Handlers) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages

	if handlers.Ready != nil {
		session.AddHandler(handlers.Ready)
	}
	if handlers.InteractionCreate != nil {
		session.AddHandler(handlers.InteractionCreate)
	}
	return session, nil
}

const commandTimeout = 30 * time.Second

// DiscordSession is the slice of the discordgo session the command
// router uses. *discordgo.Session implements it; tests substitute a
// mock.
type DiscordSession interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, opts ...discordgo.RequestOption) error
	FollowupMessageCreate(i *discordgo.Interaction, wait bool, params *discordgo.WebhookParams, opts ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSend(channelID, content string, opts ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildChannels(guildID string, opts ...discordgo.RequestOption) ([]*discordgo.Channel, error)
}

var _ DiscordSession = (*discordgo.Session)(nil)

// Interactor routes playback slash commands to guild players.
type Interactor struct {
	registry *player.Registry
	settings repository.SettingsStore
	history  repository.HistoryStore
	errorIDs generator.Generator[string]

	mu           sync.Mutex
	textChannels map[string]string
}

// NewInteractor wires the command router. settings and history may be
// nil, disabling persistence-backed behavior.
func NewInteractor(registry *player.Registry, settings repository.SettingsStore, history repository.HistoryStore) *Interactor {
	return &Interactor{
		registry:     registry,
		settings:     settings,
		history:      history,
		errorIDs:     &generator.ShortIDGenerator{},
		textChannels: make(map[string]string),
	}
}

// TextChannel returns the channel the guild last invoked a command
// from. Asynchronous player notices are posted there.
func (h *Interactor) TextChannel(guildID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	channelID, ok := h.textChannels[guildID]
	return channelID, ok
}

func (h *Interactor) rememberTextChannel(guildID, channelID string) {
	h.mu.Lock()
	h.textChannels[guildID] = channelID
	h.mu.Unlock()
}

// HandleInteraction is the discordgo InteractionCreate handler.
func (h *Interactor) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.dispatch(s, s.State, i)
}

func (h *Interactor) dispatch(s DiscordSession, state *discordgo.State, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.GuildID == "" {
		respond(s, i, presenters.BuildErrorResponse("This bot only works in servers."))
		return
	}
	h.rememberTextChannel(i.GuildID, i.ChannelID)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	data := i.ApplicationCommandData()
	var err error
	switch data.Name {
	case "play":
		err = h.handlePlay(ctx, s, state, i, data)
	case "skip":
		err = h.handleSkip(ctx, s, i)
	case "pause":
		err = h.handleSimple(ctx, s, i, "Paused.", func(ctx context.Context, p *player.Player) error {
			return p.Pause(ctx)
		})
	case "resume":
		err = h.handleSimple(ctx, s, i, "Resumed.", func(ctx context.Context, p *player.Player) error {
			return p.Resume(ctx)
		})
	case "stop":
		err = h.handleSimple(ctx, s, i, "Stopped and cleared the queue.", func(ctx context.Context, p *player.Player) error {
			return p.Stop(ctx)
		})
	case "clear":
		err = h.handleSimple(ctx, s, i, "Cleared the queue.", func(ctx context.Context, p *player.Player) error {
			return p.Clear(ctx)
		})
	case "queue":
		err = h.handleQueue(ctx, s, i)
	case "nowplaying":
		err = h.handleNowPlaying(ctx, s, i)
	case "remove":
		err = h.handleRemove(ctx, s, i, data)
	case "move":
		err = h.handleMove(ctx, s, i, data)
	case "volume":
		err = h.handleVolume(ctx, s, i, data)
	case "history":
		err = h.handleHistory(ctx, s, i)
	default:
		err = &UserError{Message: fmt.Sprintf("Unknown command %q.", data.Name)}
	}

	if err != nil {
		h.respondWithError(s, i, data.Name, err)
	}
}

// respondWithError shows user errors verbatim and internal errors as
// an opaque reference ID that links back to the log line.
func (h *Interactor) respondWithError(s DiscordSession, i *discordgo.InteractionCreate, command string, err error) {
	message, isUserError := userMessage(err)
	if !isUserError {
		errorID, genErr := h.errorIDs.Next()
		if genErr != nil {
			errorID = "unknown"
		}
		slog.Error("command failed",
			"command", command, "guildID", i.GuildID, "errorID", errorID, "error", err)
		message = fmt.Sprintf("Something went wrong. Reference: `%s`", errorID)
	}
	respond(s, i, presenters.BuildErrorResponse(message))
}

// playerFor returns the guild's player. On first use it starts the
// event pump and applies the guild's stored volume.
func (h *Interactor) playerFor(ctx context.Context, s DiscordSession, guildID string) *player.Player {
	p, created := h.registry.GetOrCreate(guildID)
	if !created {
		return p
	}

	go h.pumpEvents(s, p)

	if h.settings != nil {
		settings, err := h.settings.Get(ctx, guildID)
		if err != nil {
			slog.Warn("failed to load guild settings, using defaults",
				"guildID", guildID, "error", err)
			return p
		}
		if err := p.SetVolume(ctx, settings.Volume); err != nil {
			slog.Warn("failed to apply stored volume", "guildID", guildID, "error", err)
		}
	}
	return p
}

// existingPlayer returns the guild's player without creating one.
// Commands that only act on live playback use it.
func (h *Interactor) existingPlayer(guildID string) (*player.Player, error) {
	p, ok := h.registry.Get(guildID)
	if !ok {
		return nil, player.ErrQueueEmpty
	}
	return p, nil
}

func (h *Interactor) handlePlay(ctx context.Context, s DiscordSession, state *discordgo.State, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	query, err := stringOption(data.Options, "query")
	if err != nil {
		return err
	}

	channelID, err := h.voiceChannelFor(s, state, i)
	if err != nil {
		return err
	}

	// Resolution can take seconds; acknowledge now, follow up later.
	if err := deferResponse(s, i); err != nil {
		return fmt.Errorf("failed to defer response: %w", err)
	}

	p := h.playerFor(ctx, s, i.GuildID)
	position, err := p.Play(ctx, query, requesterID(i), channelID)
	if err != nil {
		return h.followUpError(s, i, "play", err)
	}

	entries, err := p.List(ctx)
	if err != nil || len(entries) == 0 {
		return followUp(s, i, presenters.BuildNoticeResponse(fmt.Sprintf("Queued %q.", query)))
	}
	queued := entries[len(entries)-1].Track
	return followUp(s, i, presenters.BuildEnqueuedResponse(queued, position))
}

// voiceChannelFor picks the channel the invoking user occupies,
// falling back to the fullest voice channel in the guild.
func (h *Interactor) voiceChannelFor(s DiscordSession, state *discordgo.State, i *discordgo.InteractionCreate) (string, error) {
	channelID, err := voice.FindUserChannel(state, i.GuildID, requesterID(i))
	if err != nil {
		return "", err
	}
	if channelID != "" {
		return channelID, nil
	}

	channels, err := s.GuildChannels(i.GuildID)
	if err != nil {
		return "", fmt.Errorf("failed to list guild channels: %w", err)
	}
	if channel := voice.MaxAttendedChannel(channels); channel != nil {
		return channel.ID, nil
	}
	return "", &UserError{Message: "Join a voice channel first."}
}

func (h *Interactor) handleSkip(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate) error {
	p, err := h.existingPlayer(i.GuildID)
	if err != nil {
		return err
	}
	next, err := p.Skip(ctx)
	if err != nil {
		return err
	}
	if next == nil {
		return respond(s, i, presenters.BuildNoticeResponse("Skipped. The queue is now empty."))
	}
	return respond(s, i, presenters.BuildEnqueuedResponse(*next, 0))
}

func (h *Interactor) handleSimple(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, confirmation string, op func(context.Context, *player.Player) error) error {
	p, err := h.existingPlayer(i.GuildID)
	if err != nil {
		return err
	}
	if err := op(ctx, p); err != nil {
		return err
	}
	return respond(s, i, presenters.BuildNoticeResponse(confirmation))
}

func (h *Interactor) handleQueue(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate) error {
	p, ok := h.registry.Get(i.GuildID)
	if !ok {
		return respond(s, i, presenters.BuildQueueResponse(nil, player.Idle))
	}
	entries, err := p.List(ctx)
	if err != nil {
		return err
	}
	return respond(s, i, presenters.BuildQueueResponse(entries, p.State()))
}

func (h *Interactor) handleNowPlaying(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate) error {
	p, err := h.existingPlayer(i.GuildID)
	if err != nil {
		return err
	}
	current, state, err := p.Now(ctx)
	if err != nil {
		return err
	}
	return respond(s, i, presenters.BuildNowPlayingResponse(*current, state))
}

func (h *Interactor) handleRemove(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	position, err := intOption(data.Options, "position")
	if err != nil {
		return err
	}
	p, err := h.existingPlayer(i.GuildID)
	if err != nil {
		return err
	}
	removed, err := p.Remove(ctx, position)
	if err != nil {
		return err
	}
	return respond(s, i, presenters.BuildNoticeResponse(fmt.Sprintf("Removed %s.", removed.Title)))
}

func (h *Interactor) handleMove(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	from, err := intOption(data.Options, "from")
	if err != nil {
		return err
	}
	to, err := intOption(data.Options, "to")
	if err != nil {
		return err
	}
	p, err := h.existingPlayer(i.GuildID)
	if err != nil {
		return err
	}
	if err := p.Reorder(ctx, from, to); err != nil {
		return err
	}
	return respond(s, i, presenters.BuildNoticeResponse(fmt.Sprintf("Moved position %d to %d.", from, to)))
}

func (h *Interactor) handleVolume(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	percent, err := intOption(data.Options, "percent")
	if err != nil {
		return err
	}
	if percent < 0 || percent > 200 {
		return &UserError{Message: "Volume must be between 0 and 200."}
	}

	p := h.playerFor(ctx, s, i.GuildID)
	if err := p.SetVolume(ctx, percent); err != nil {
		return err
	}
	if h.settings != nil {
		err := h.settings.Save(ctx, repository.GuildSettings{GuildID: i.GuildID, Volume: percent})
		if err != nil {
			return fmt.Errorf("failed to persist volume: %w", err)
		}
	}
	return respond(s, i, presenters.BuildNoticeResponse(
		fmt.Sprintf("Volume set to %d%%. Applies from the next track.", percent)))
}

func (h *Interactor) handleHistory(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate) error {
	if h.history == nil {
		return &UserError{Message: "History is not enabled."}
	}
	records, err := h.history.Recent(ctx, i.GuildID, 10)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	return respond(s, i, presenters.BuildHistoryResponse(records))
}

func (h *Interactor) followUpError(s DiscordSession, i *discordgo.InteractionCreate, command string, err error) error {
	message, isUserError := userMessage(err)
	if !isUserError {
		errorID, genErr := h.errorIDs.Next()
		if genErr != nil {
			errorID = "unknown"
		}
		slog.Error("command failed",
			"command", command, "guildID", i.GuildID, "errorID", errorID, "error", err)
		message = fmt.Sprintf("Something went wrong. Reference: `%s`", errorID)
	}
	return followUp(s, i, presenters.BuildErrorResponse(message))
}

func requesterID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func respond(s DiscordSession, i *discordgo.InteractionCreate, response *discordgo.InteractionResponse) error {
	if err := s.InteractionRespond(i.Interaction, response); err != nil {
		return fmt.Errorf("failed to respond to interaction: %w", err)
	}
	return nil
}

func deferResponse(s DiscordSession, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func followUp(s DiscordSession, i *discordgo.InteractionCreate, response *discordgo.InteractionResponse) error {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: response.Data.Content,
		Embeds:  response.Data.Embeds,
	})
	if err != nil {
		return fmt.Errorf("failed to send follow-up: %w", err)
	}
	return nil
}

func stringOption(options []*discordgo.ApplicationCommandInteractionDataOption, name string) (string, error) {
	for _, option := range options {
		if option.Name != name {
			continue
		}
		if option.Type != discordgo.ApplicationCommandOptionString {
			return "", fmt.Errorf("invalid type for %s option", name)
		}
		return option.StringValue(), nil
	}
	return "", fmt.Errorf("%s option is required", name)
}

func intOption(options []*discordgo.ApplicationCommandInteractionDataOption, name string) (int, error) {
	for _, option := range options {
		if option.Name != name {
			continue
		}
		if option.Type != discordgo.ApplicationCommandOptionInteger {
			return 0, fmt.Errorf("invalid type for %s option", name)
		}
		return int(option.IntValue()), nil
	}
	return 0, fmt.Errorf("%s option is required", name)
}
