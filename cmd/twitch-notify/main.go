package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/frostholt/discord-twitch-notify/api"
	"github.com/frostholt/discord-twitch-notify/internal/bot"
	"github.com/frostholt/discord-twitch-notify/internal/config"
	"github.com/frostholt/discord-twitch-notify/internal/database"
	"github.com/frostholt/discord-twitch-notify/internal/logger"
	"github.com/frostholt/discord-twitch-notify/internal/telemetry"
	"github.com/frostholt/discord-twitch-notify/internal/watcher"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	telemetry.Init()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := telemetry.Serve(cfg.MetricsAddr); err != nil {
				zlog.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	db, err := database.Open(cfg.DatabaseType, cfg.DSN(), zlog)
	if err != nil {
		zlog.Fatal("opening database", zap.Error(err))
	}
	defer database.Close(db) //nolint:errcheck

	repo := database.NewRepository(db)
	client := api.NewClient(cfg.TwitchClientID, cfg.TwitchClientSecret, cfg.RequestTimeout)
	service := watcher.NewService(repo, client, zlog)

	discordBot, err := bot.New(cfg.DiscordToken, service, zlog)
	if err != nil {
		zlog.Fatal("creating bot", zap.Error(err))
	}
	if err := discordBot.Start(); err != nil {
		zlog.Fatal("starting bot", zap.Error(err))
	}

	sweeper := watcher.New(
		repo, client, discordBot.Notifier(), zlog,
		cfg.PollInterval, cfg.SweepConcurrency, cfg.RequestTimeout,
	)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	zlog.Info("bot is running, press CTRL-C to exit")
	<-ctx.Done()

	zlog.Info("shutting down")
	// Let an in-flight sweep finish its current entries before closing the
	// Discord session it delivers through.
	wg.Wait()
	discordBot.Stop()
}
