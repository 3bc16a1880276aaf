// Package discord adapts a discordgo session to the bot: it is the roster source
// for the aggregator, the message surface for the status manager, and the event
// pump that feeds voice-state changes and slash commands into the service.
//
// discordgo runs every handler in its own goroutine, so events are processed
// independently and concurrently.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/rate-room/ratebot/commands"
	"github.com/rate-room/ratebot/presence"
	"github.com/rate-room/ratebot/telemetry"
)

// Intents requested from the gateway: guild metadata and voice states.
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

// PresenceHandler receives every voice-state change.
type PresenceHandler interface {
	HandleVoiceState(ctx context.Context, before, after presence.VoiceState)
}

// CommandHandler answers slash command invocations.
type CommandHandler interface {
	Handle(ctx context.Context, inv commands.Invocation) commands.Reply
}

// Client wraps a discordgo session.
type Client struct {
	s *discordgo.Session

	appID   string
	guildID string

	presence PresenceHandler
	commands CommandHandler

	baseCtx context.Context

	mu     sync.RWMutex
	selfID string
	ready  atomic.Bool
}

// New creates a session for the bot token. It does not connect.
func New(token, appID, guildID string) (*Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = Intents
	s.StateEnabled = true
	s.State.TrackVoice = true
	s.State.TrackChannels = true
	return NewWithSession(s, appID, guildID), nil
}

// NewWithSession wraps an existing session (tests point its HTTP client at a mock server).
func NewWithSession(s *discordgo.Session, appID, guildID string) *Client {
	return &Client{s: s, appID: appID, guildID: guildID, baseCtx: context.Background()}
}

// Session exposes the underlying discordgo session.
func (c *Client) Session() *discordgo.Session { return c.s }

// Bind attaches the event consumers and registers the gateway handlers.
func (c *Client) Bind(p PresenceHandler, h CommandHandler) {
	c.presence = p
	c.commands = h
	c.s.AddHandler(c.onReady)
	c.s.AddHandler(c.onDisconnect)
	c.s.AddHandler(c.onResumed)
	c.s.AddHandler(c.onVoiceStateUpdate)
	c.s.AddHandler(c.onInteractionCreate)
}

// Open connects to the gateway. ctx becomes the parent of every event context.
func (c *Client) Open(ctx context.Context) error {
	c.baseCtx = ctx
	if err := c.s.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (c *Client) Close() error {
	c.ready.Store(false)
	telemetry.UpdateGatewayGauge(false)
	return c.s.Close()
}

// SelfID is the bot's own user id, empty until the gateway is ready.
func (c *Client) SelfID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selfID
}

// Ready reports whether the gateway session is established.
func (c *Client) Ready() bool { return c.ready.Load() }

// RegisterCommands overwrites the application's slash commands, globally or for one guild.
func (c *Client) RegisterCommands(ctx context.Context) error {
	return RegisterCommands(ctx, c.s, c.appID, c.guildID)
}

// RegisterCommands bulk-overwrites the bot's command definitions.
func RegisterCommands(ctx context.Context, s *discordgo.Session, appID, guildID string) error {
	if appID == "" {
		return fmt.Errorf("register commands: missing application id")
	}
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "discord"))
	log.Info("started refreshing application (/) commands", slog.String("guild", guildID))
	registered, err := s.ApplicationCommandBulkOverwrite(appID, guildID, commands.Definitions(), discordgo.WithContext(ctx))
	if err != nil {
		return wrapErr("register_commands", err)
	}
	log.Info("successfully reloaded application (/) commands", slog.Int("count", len(registered)))
	return nil
}
