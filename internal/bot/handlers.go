package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/frostholt/discord-twitch-notify/api"
	"github.com/frostholt/discord-twitch-notify/internal/database"
	"github.com/frostholt/discord-twitch-notify/internal/embed"
	"github.com/frostholt/discord-twitch-notify/internal/watcher"
)

const commandTimeout = 10 * time.Second

// genericFailure is shown for any error we don't want to expose to users.
const genericFailure = "Something went wrong. Please try again later."

func (b *Bot) ready(s *discordgo.Session, event *discordgo.Ready) {
	b.log.Info("bot ready", zap.Int("guilds", len(s.State.Guilds)))
	b.registerCommands()
	b.updateBotStatus()
}

func (b *Bot) interactionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != "twitch" || len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]

	switch sub.Name {
	case "list", "check":
		// Read-only, no permission gate.
	default:
		if !b.hasManageServer(i) {
			b.respond(s, i, "You need `Manage Server` permission to manage Twitch notifications.", true)
			return
		}
	}

	switch sub.Name {
	case "add":
		b.handleAdd(s, i, sub)
	case "remove":
		b.handleRemove(s, i, sub)
	case "edit":
		b.handleEdit(s, i, sub)
	case "pause":
		b.handlePauseResume(s, i, sub, true)
	case "resume":
		b.handlePauseResume(s, i, sub, false)
	case "settings":
		b.handleSettings(s, i, sub)
	case "test":
		b.handleTest(s, i)
	case "list":
		b.handleList(s, i)
	case "check":
		b.handleCheck(s, i, sub)
	}
}

func (b *Bot) hasManageServer(i *discordgo.InteractionCreate) bool {
	if i.Member == nil {
		return false
	}
	perms := i.Member.Permissions
	return perms&discordgo.PermissionAdministrator != 0 ||
		perms&discordgo.PermissionManageServer != 0
}

func (b *Bot) handleAdd(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(sub)
	streamer := opts["streamer"].StringValue()
	channelID := i.ChannelID
	if c, ok := opts["channel"]; ok {
		channelID = c.ChannelValue(nil).ID
	}
	var message string
	if m, ok := opts["message"]; ok {
		message = m.StringValue()
	}

	b.deferReply(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	entry, err := b.Service.AddWatch(ctx, i.GuildID, channelID, streamer, message)
	if err != nil {
		b.followUp(s, i, b.userFacingError(err, streamer))
		return
	}

	e := &discordgo.MessageEmbed{
		Title:       "Streamer Added",
		Description: fmt.Sprintf("Now watching **%s** for live notifications.", entry.StreamerLogin),
		Color:       0x00FF00,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Streamer", Value: fmt.Sprintf("[%s](%s)", entry.StreamerLogin, api.ChannelURL(entry.StreamerLogin)), Inline: true},
			{Name: "Channel", Value: channelMention(channelID), Inline: true},
		},
	}
	if message != "" {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Custom Message", Value: message})
	}
	b.followUpEmbed(s, i, e)
}

func (b *Bot) handleRemove(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(sub)
	streamer := opts["streamer"].StringValue()
	var channelID string
	if c, ok := opts["channel"]; ok {
		channelID = c.ChannelValue(nil).ID
	}

	if err := b.Service.RemoveWatch(i.GuildID, channelID, streamer); err != nil {
		b.respond(s, i, b.userFacingError(err, streamer), true)
		return
	}
	b.respondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "Streamer Removed",
		Description: fmt.Sprintf("No longer watching **%s** for live notifications.", streamer),
		Color:       0xFF6B6B,
	})
}

func (b *Bot) handleEdit(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(sub)
	streamer := opts["streamer"].StringValue()
	var channelID, message *string
	if c, ok := opts["channel"]; ok {
		id := c.ChannelValue(nil).ID
		channelID = &id
	}
	if m, ok := opts["message"]; ok {
		v := m.StringValue()
		message = &v
	}

	if err := b.Service.EditWatch(i.GuildID, streamer, channelID, message); err != nil {
		b.respond(s, i, b.userFacingError(err, streamer), true)
		return
	}

	e := &discordgo.MessageEmbed{
		Title:       "Streamer Updated",
		Description: fmt.Sprintf("Updated settings for **%s**.", streamer),
		Color:       0x4ECDC4,
	}
	if channelID != nil {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "New Channel", Value: channelMention(*channelID), Inline: true})
	}
	if message != nil {
		v := *message
		if v == "" {
			v = "*Removed custom message*"
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "New Message", Value: v})
	}
	b.respondEmbed(s, i, e)
}

func (b *Bot) handlePauseResume(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption, paused bool) {
	opts := optionMap(sub)
	verb := "Resumed"
	if paused {
		verb = "Paused"
	}

	if opt, ok := opts["streamer"]; ok {
		streamer := opt.StringValue()
		if err := b.Service.SetEntryPaused(i.GuildID, streamer, paused); err != nil {
			b.respond(s, i, b.userFacingError(err, streamer), true)
			return
		}
		b.respond(s, i, fmt.Sprintf("%s notifications for **%s**.", verb, streamer), false)
		return
	}

	if err := b.Service.SetGuildPaused(i.GuildID, paused); err != nil {
		b.respond(s, i, genericFailure, true)
		return
	}
	b.respond(s, i, fmt.Sprintf("%s notifications for this server.", verb), false)
}

func (b *Bot) handleSettings(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(sub)

	if r, ok := opts["reset"]; ok && r.BoolValue() {
		row, err := b.Service.ResetSettings(i.GuildID)
		if err != nil {
			b.respond(s, i, genericFailure, true)
			return
		}
		b.respondEmbed(s, i, embed.CreateSettingsEmbed(row, true))
		return
	}

	var patch database.SettingsPatch
	if r, ok := opts["role"]; ok {
		mention := r.RoleValue(nil, "").Mention()
		patch.MentionTarget = &mention
	}
	if c, ok := opts["color"]; ok {
		v, err := strconv.ParseInt(c.StringValue(), 16, 32)
		if err != nil || v < 0 || v > 0xFFFFFF {
			b.respond(s, i, "Invalid color code. Use hex format without # (e.g. FF0000).", true)
			return
		}
		color := int(v)
		patch.Color = &color
	}
	if g, ok := opts["include_game"]; ok {
		v := g.BoolValue()
		patch.IncludeGame = &v
	}
	if p, ok := opts["include_preview"]; ok {
		v := p.BoolValue()
		patch.IncludePreview = &v
	}

	row, err := b.Service.UpdateSettings(i.GuildID, patch)
	if err != nil {
		b.respond(s, i, genericFailure, true)
		return
	}
	b.respondEmbed(s, i, embed.CreateSettingsEmbed(row, false))
}

func (b *Bot) handleTest(s *discordgo.Session, i *discordgo.InteractionCreate) {
	channelID, payload, err := b.Service.TestNotification(i.GuildID)
	if err != nil {
		if errors.Is(err, watcher.ErrNoWatches) {
			b.respond(s, i, "No streamers to test with. Add one first with `/twitch add`.", true)
			return
		}
		b.log.Error("building test notification", zap.Error(err))
		b.respond(s, i, genericFailure, true)
		return
	}
	if err := b.Notifier().Send(channelID, payload); err != nil {
		b.log.Warn("delivering test notification", zap.Error(err))
		b.respond(s, i, "Could not deliver the test notification. Check the channel permissions.", true)
		return
	}
	b.respond(s, i, fmt.Sprintf("Test notification sent to %s.", channelMention(channelID)), false)
}

func (b *Bot) handleList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	entries, settings, err := b.Service.ListWatches(i.GuildID)
	if err != nil {
		b.respond(s, i, genericFailure, true)
		return
	}
	if len(entries) == 0 {
		b.respond(s, i, "No Twitch streamers are being watched in this server.", true)
		return
	}

	var live, offline, paused []string
	for _, entry := range entries {
		line := fmt.Sprintf("[%s](%s) → %s",
			entry.StreamerLogin, api.ChannelURL(entry.StreamerLogin), channelMention(entry.ChannelID))
		switch {
		case entry.Paused:
			paused = append(paused, "⏸️ "+line)
		case entry.IsLive:
			live = append(live, "🔴 LIVE "+line)
		default:
			offline = append(offline, "⚫ "+line)
		}
	}
	b.respondEmbed(s, i, embed.CreateListEmbed(live, offline, paused, settings.Paused))
}

func (b *Bot) handleCheck(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	streamer := optionMap(sub)["streamer"].StringValue()

	b.deferReply(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	user, snap, err := b.Service.CheckStream(ctx, streamer)
	if err != nil {
		b.followUp(s, i, b.userFacingError(err, streamer))
		return
	}
	b.followUpEmbed(s, i, embed.CreateCheckEmbed(user, snap))
}

// userFacingError maps service errors to the distinct messages command
// callers see. Anything unexpected collapses to a generic message so
// internal error text never leaks.
func (b *Bot) userFacingError(err error, streamer string) string {
	switch {
	case errors.Is(err, api.ErrUserNotFound):
		return fmt.Sprintf("Twitch user `%s` was not found. Please check the username.", streamer)
	case errors.Is(err, database.ErrDuplicateEntry):
		return fmt.Sprintf("`%s` is already being watched in that channel.", streamer)
	case errors.Is(err, database.ErrEntryNotFound):
		return fmt.Sprintf("`%s` is not in the watch list.", streamer)
	case errors.Is(err, watcher.ErrMessageTooLong):
		return "Custom messages are limited to 500 characters."
	case errors.Is(err, watcher.ErrNothingToEdit):
		return "Specify at least one thing to edit (channel or message)."
	default:
		b.log.Error("command failed", zap.Error(err))
		return genericFailure
	}
}

func optionMap(sub *discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(sub.Options))
	for _, opt := range sub.Options {
		m[opt.Name] = opt
	}
	return m
}

func channelMention(channelID string) string {
	return "<#" + channelID + ">"
}

func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.log.Warn("responding to interaction", zap.Error(err))
	}
}

func (b *Bot) respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, e *discordgo.MessageEmbed) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{e}},
	})
	if err != nil {
		b.log.Warn("responding to interaction", zap.Error(err))
	}
}

// deferReply buys time for handlers that hit the Twitch API; Discord only
// waits three seconds for the initial response.
func (b *Bot) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		b.log.Warn("deferring interaction", zap.Error(err))
	}
}

func (b *Bot) followUp(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: content})
	if err != nil {
		b.log.Warn("sending follow-up", zap.Error(err))
	}
}

func (b *Bot) followUpEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, e *discordgo.MessageEmbed) {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{e},
	})
	if err != nil {
		b.log.Warn("sending follow-up", zap.Error(err))
	}
}
