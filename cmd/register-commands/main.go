// Package main provides a CLI tool to (re)register the bot's slash commands.
//
// It bulk-overwrites the application's commands, either globally or for one guild.
// Guild commands appear immediately; global ones can take up to an hour to propagate.
//
// Usage:
//
//	register-commands [--guild GUILD_ID] [--dry-run]
//
// Flags:
//
//	--guild: Register for this guild only (default: DISCORD_GUILD_ID, empty means global)
//	--dry-run: Print the definitions without calling Discord
//
// Environment Variables:
//
//	DISCORD_BOT_TOKEN: Bot token (required unless --dry-run)
//	DISCORD_APP_ID: Application id (required unless --dry-run)
//	DISCORD_GUILD_ID: Default guild
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	"github.com/rate-room/ratebot/commands"
	"github.com/rate-room/ratebot/config"
	"github.com/rate-room/ratebot/discord"
)

func main() {
	_ = godotenv.Load()

	guild := flag.String("guild", os.Getenv("DISCORD_GUILD_ID"), "Register for this guild only (default: global)")
	dryRun := flag.Bool("dry-run", false, "Show the command definitions without registering them")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *dryRun {
		describe(commands.Definitions(), *guild)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.ValidateBotReady(); err != nil {
		slog.Error("discord credentials missing", slog.Any("error", err))
		os.Exit(1)
	}

	s, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		slog.Error("failed to create discord session", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := discord.RegisterCommands(ctx, s, cfg.DiscordAppID, *guild); err != nil {
		slog.Error("registration failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("registration completed successfully")
}

// describe logs each definition, for --dry-run.
func describe(defs []*discordgo.ApplicationCommand, guild string) {
	scope := "global"
	if guild != "" {
		scope = "guild:" + guild
	}
	for _, d := range defs {
		opts := make([]string, 0, len(d.Options))
		for _, o := range d.Options {
			opts = append(opts, o.Name)
		}
		slog.Info("would register command (dry-run)",
			slog.String("name", d.Name),
			slog.String("description", d.Description),
			slog.Any("options", opts),
			slog.String("scope", scope))
	}
	slog.Info("dry-run summary", slog.Int("count", len(defs)), slog.String("scope", scope))
}
