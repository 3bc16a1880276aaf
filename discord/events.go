package discord

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/rate-room/ratebot/commands"
	"github.com/rate-room/ratebot/presence"
	"github.com/rate-room/ratebot/telemetry"
)

func (c *Client) eventContext() (context.Context, *slog.Logger) {
	ctx := telemetry.WithCorrelation(c.baseCtx, uuid.NewString())
	return ctx, telemetry.LoggerWithCorr(ctx).With(slog.String("component", "discord"))
}

// recoverHandler keeps one failing event from taking the process down.
func recoverHandler(log *slog.Logger, event string) {
	if r := recover(); r != nil {
		log.Error("event handler panic", slog.String("event", event), slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
	}
}

func (c *Client) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User != nil {
		c.mu.Lock()
		c.selfID = r.User.ID
		c.mu.Unlock()
		slog.Info("logged in", slog.String("user", r.User.Username), slog.String("id", r.User.ID), slog.String("component", "discord"))
	}
	c.ready.Store(true)
	telemetry.UpdateGatewayGauge(true)
}

func (c *Client) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	c.ready.Store(false)
	telemetry.UpdateGatewayGauge(false)
	slog.Warn("gateway disconnected", slog.String("component", "discord"))
}

func (c *Client) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	c.ready.Store(true)
	telemetry.UpdateGatewayGauge(true)
	slog.Info("gateway resumed", slog.String("component", "discord"))
}

func (c *Client) onVoiceStateUpdate(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if c.presence == nil || v == nil || v.VoiceState == nil {
		return
	}
	ctx, log := c.eventContext()
	defer recoverHandler(log, "voice_state_update")

	before := toVoiceState(v.BeforeUpdate)
	after := toVoiceState(v.VoiceState)
	log.Debug("voice state update", slog.String("user", after.UserID), slog.String("from", before.ChannelID), slog.String("to", after.ChannelID))
	c.presence.HandleVoiceState(ctx, before, after)
}

func (c *Client) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if c.commands == nil || i == nil || i.Interaction == nil || i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	ctx, log := c.eventContext()
	defer recoverHandler(log, "interaction_create")

	// acknowledge within Discord's 3s window; the real answer follows as an edit
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
	if err != nil {
		log.Error("failed to defer interaction", slog.Any("err", wrapErr("defer_reply", err)))
		return
	}

	reply := c.commands.Handle(ctx, invocationFrom(s, i.Interaction))
	if reply.Content == "" {
		return
	}
	content := reply.Content
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}, discordgo.WithContext(ctx)); err != nil {
		log.Error("failed to send command reply", slog.Any("err", wrapErr("edit_reply", err)))
	}
}

func toVoiceState(vs *discordgo.VoiceState) presence.VoiceState {
	if vs == nil {
		return presence.VoiceState{}
	}
	return presence.VoiceState{
		UserID:     vs.UserID,
		GuildID:    vs.GuildID,
		ChannelID:  vs.ChannelID,
		Mute:       vs.Mute,
		Deaf:       vs.Deaf,
		SelfMute:   vs.SelfMute,
		SelfDeaf:   vs.SelfDeaf,
		SelfStream: vs.SelfStream,
	}
}

// invocationFrom resolves the options of an application command interaction.
func invocationFrom(s *discordgo.Session, i *discordgo.Interaction) commands.Invocation {
	data := i.ApplicationCommandData()
	inv := commands.Invocation{Name: data.Name}

	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	if user != nil {
		inv.UserID = user.ID
		inv.UserName = displayName(i.Member, user)
	}

	for _, opt := range data.Options {
		if opt == nil {
			continue
		}
		switch opt.Type {
		case discordgo.ApplicationCommandOptionNumber:
			f := opt.FloatValue()
			inv.Rate = &f
		case discordgo.ApplicationCommandOptionChannel:
			id, _ := opt.Value.(string)
			inv.ChannelID = id
			if data.Resolved != nil {
				if ch := data.Resolved.Channels[id]; ch != nil {
					inv.ChannelName = ch.Name
				}
			}
			if inv.ChannelName == "" && id != "" {
				if ch, err := s.State.Channel(id); err == nil {
					inv.ChannelName = ch.Name
				}
			}
		}
	}
	return inv
}

func displayName(m *discordgo.Member, u *discordgo.User) string {
	if m != nil && m.Nick != "" {
		return m.Nick
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
