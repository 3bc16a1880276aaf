// Package commands defines the slash commands and their handlers.
//
// Handlers are platform-neutral: they take an Invocation and return the private
// reply text. The discord package turns interactions into Invocations and sends
// the reply back as an ephemeral message.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/rate-room/ratebot/db"
	"github.com/rate-room/ratebot/status"
	"github.com/rate-room/ratebot/telemetry"
)

const (
	AddRate                  = "add-rate"
	AddChannelForCalculation = "add-channel-for-calculation"
	ListChannels             = "list-channels"

	optionRate    = "rate"
	optionChannel = "channel"
)

// Definitions returns the application commands registered with Discord.
func Definitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        AddRate,
			Description: "Let me know what your hourly rate is, so that I can calculate the hourly room rate properly",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        optionRate,
					Description: "Your hourly rate",
					Required:    true,
				},
			},
		},
		{
			Name:        AddChannelForCalculation,
			Description: "Add a new room for calculation of the hourly rate",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         optionChannel,
					Description:  "New channel to use for calculation",
					Required:     true,
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice},
				},
			},
		},
		{
			Name:        ListChannels,
			Description: "List the rooms whose hourly rate is being calculated",
		},
	}
}

// Invocation is one command call with its options already resolved.
type Invocation struct {
	Name string
	// UserID and UserName identify the invoking person.
	UserID   string
	UserName string
	// Rate is set for add-rate.
	Rate *float64
	// ChannelID and ChannelName are set for add-channel-for-calculation.
	ChannelID   string
	ChannelName string
}

// Reply is the private answer to an invocation. Empty Content means stay silent.
type Reply struct {
	Content string
}

// Store is the slice of the rate store the commands write and read.
type Store interface {
	UpsertRate(ctx context.Context, r db.RateRecord) error
	UpsertChannel(ctx context.Context, c db.TrackedChannel) error
	ListChannels(ctx context.Context) ([]db.TrackedChannel, error)
}

// Handler dispatches invocations to the command implementations.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler { return &Handler{store: store} }

// Handle runs one command. Store failures are logged and produce a silent (empty) reply.
func (h *Handler) Handle(ctx context.Context, inv Invocation) Reply {
	ctx, span := telemetry.StartSpan(ctx, "command "+inv.Name, telemetry.CommandAttr(inv.Name))
	defer span.End()
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "commands"), slog.String("command", inv.Name), slog.String("user", inv.UserID))

	var (
		reply Reply
		err   error
	)
	switch inv.Name {
	case AddRate:
		reply, err = h.addRate(ctx, inv)
	case AddChannelForCalculation:
		reply, err = h.addChannel(ctx, inv)
	case ListChannels:
		reply, err = h.listChannels(ctx)
	default:
		log.Warn("unknown command")
		telemetry.RecordCommand(inv.Name, "unknown")
		return Reply{}
	}
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.RecordCommand(inv.Name, "error")
		log.Error("command failed", slog.Any("err", err))
		return Reply{}
	}
	telemetry.RecordCommand(inv.Name, "ok")
	log.Info("command handled")
	return reply
}

func (h *Handler) addRate(ctx context.Context, inv Invocation) (Reply, error) {
	if inv.UserID == "" {
		return Reply{}, fmt.Errorf("add-rate: missing invoking user id")
	}
	if inv.Rate == nil {
		return Reply{Content: "Please provide your hourly rate."}, nil
	}
	rate := *inv.Rate
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return Reply{Content: "Your rate must be a positive number."}, nil
	}
	if err := h.store.UpsertRate(ctx, db.RateRecord{ID: inv.UserID, Rate: rate, Name: inv.UserName}); err != nil {
		return Reply{}, err
	}
	return Reply{Content: fmt.Sprintf("Your rate of %s has been successfully recorded.", status.FormatAmount(rate))}, nil
}

func (h *Handler) addChannel(ctx context.Context, inv Invocation) (Reply, error) {
	if inv.ChannelID == "" {
		return Reply{}, fmt.Errorf("add-channel-for-calculation: missing channel id")
	}
	if err := h.store.UpsertChannel(ctx, db.TrackedChannel{ID: inv.ChannelID, Name: inv.ChannelName}); err != nil {
		return Reply{}, err
	}
	return Reply{Content: fmt.Sprintf("The channel %s has been added to tracked channels.", inv.ChannelName)}, nil
}

func (h *Handler) listChannels(ctx context.Context) (Reply, error) {
	channels, err := h.store.ListChannels(ctx)
	if err != nil {
		return Reply{}, err
	}
	if len(channels) == 0 {
		return Reply{Content: "No channels are tracked yet."}, nil
	}
	names := make([]string, 0, len(channels))
	for _, c := range channels {
		name := c.Name
		if name == "" {
			name = c.ID
		}
		names = append(names, name)
	}
	return Reply{Content: "Tracked channels:\n" + strings.Join(names, "\n")}, nil
}
