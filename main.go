// Command ratebot is the main entrypoint for the room rate bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres (the Supabase database) and runs migrations.
//   - Opens the Discord gateway, registers slash commands and refreshes room
//     status messages on voice-state changes during working hours.
//   - Exposes a minimal HTTP server with /, /healthz, /readyz and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rate-room/ratebot/commands"
	"github.com/rate-room/ratebot/config"
	"github.com/rate-room/ratebot/db"
	"github.com/rate-room/ratebot/discord"
	"github.com/rate-room/ratebot/presence"
	"github.com/rate-room/ratebot/rate"
	"github.com/rate-room/ratebot/server"
	"github.com/rate-room/ratebot/status"
	"github.com/rate-room/ratebot/telemetry"
	"github.com/rate-room/ratebot/tracker"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateBotReady(); err != nil {
		slog.Error("discord credentials missing", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	// Tracing is optional; requires OTEL_EXPORTER_OTLP_ENDPOINT
	shutdown, err := telemetry.InitTracing("ratebot", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Versioned migrations first; databases created by hand (e.g. in the Supabase
	// dashboard) have no schema_migrations table, so fall back to idempotent DDL.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
	} else {
		slog.Info("versioned migrations completed successfully", slog.String("component", "db_migrate"))
	}
	store := db.NewStore(database)

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := discord.New(cfg.DiscordBotToken, cfg.DiscordAppID, cfg.DiscordGuildID)
	if err != nil {
		slog.Error("failed to create discord client", slog.Any("err", err))
		os.Exit(1)
	}

	aggregator := rate.NewAggregator(store, client)
	publisher := status.NewManager(client, status.Options{
		HistoryLimit: cfg.HistoryLimit,
		Currency:     cfg.Currency,
		SelfID:       client.SelfID,
	})
	gate := presence.NewGate(presence.Window{Start: cfg.WorkdayStart, End: cfg.WorkdayEnd, Location: cfg.WorkdayLocation})
	svc := tracker.NewService(gate, aggregator, publisher)
	client.Bind(svc, commands.NewHandler(store))

	if err := client.Open(ctx); err != nil {
		slog.Error("failed to connect to discord", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slog.Error("failed to close discord session", slog.Any("err", err))
		}
	}()

	if cfg.RegisterCommands {
		if err := client.RegisterCommands(ctx); err != nil {
			// the bot still tracks rooms without slash commands
			slog.Error("command registration failed", slog.Any("err", err), slog.String("component", "discord"))
		}
	}

	go func() {
		if err := server.Start(ctx, store, client, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
