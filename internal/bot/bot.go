// Package bot is the Discord layer: slash commands driving the watcher
// service, and the notifier the dispatcher delivers through.
package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/frostholt/discord-twitch-notify/internal/watcher"
)

type Bot struct {
	Session *discordgo.Session
	Service *watcher.Service
	log     *zap.Logger
}

func New(token string, service *watcher.Service, log *zap.Logger) (*Bot, error) {
	discord, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	bot := &Bot{
		Session: discord,
		Service: service,
		log:     log,
	}
	bot.registerHandlers()
	return bot, nil
}

func (b *Bot) Start() error {
	return b.Session.Open()
}

func (b *Bot) Stop() {
	if err := b.Session.Close(); err != nil {
		b.log.Warn("closing discord session", zap.Error(err))
	}
}

// Notifier returns the watcher.Notifier implementation backed by this
// session.
func (b *Bot) Notifier() watcher.Notifier {
	return &discordNotifier{session: b.Session}
}

func (b *Bot) registerHandlers() {
	b.Session.AddHandler(b.ready)
	b.Session.AddHandler(b.interactionCreate)
	b.Session.AddHandler(b.guildCreate)
	b.Session.AddHandler(b.guildDelete)
}

func (b *Bot) guildCreate(s *discordgo.Session, event *discordgo.GuildCreate) {
	b.log.Info("joined server", zap.String("guild", event.Guild.Name))
	b.updateBotStatus()
}

func (b *Bot) guildDelete(s *discordgo.Session, event *discordgo.GuildDelete) {
	b.log.Info("left server", zap.String("guild_id", event.ID))
	b.updateBotStatus()
}

func (b *Bot) updateBotStatus() {
	count, err := b.Service.CountWatches()
	if err != nil {
		b.log.Warn("counting watches for status", zap.Error(err))
		return
	}
	status := fmt.Sprintf("%d streamers", count)
	err = b.Session.UpdateStatusComplex(discordgo.UpdateStatusData{
		Activities: []*discordgo.Activity{
			{
				Name: status,
				Type: discordgo.ActivityTypeWatching,
			},
		},
	})
	if err != nil {
		b.log.Warn("updating bot status", zap.Error(err))
	}
}
