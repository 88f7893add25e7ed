// Package embed renders notification payloads and command responses as
// Discord embeds.
package embed

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/frostholt/discord-twitch-notify/api"
	"github.com/frostholt/discord-twitch-notify/internal/models"
	"github.com/frostholt/discord-twitch-notify/internal/watcher"
)

const (
	footerText    = "Twitch Stream Alert"
	footerIconURL = "https://static.twitchcdn.net/assets/favicon-32-d6025c14e900565d6177.png"

	// Discord caps embed field values at 1024 characters.
	maxFieldLen = 1024
)

// CreateLiveStreamEmbed builds the notification embed for one live
// transition.
func CreateLiveStreamEmbed(p *watcher.Payload) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       p.Title,
		URL:         p.URL,
		Color:       p.Color,
		Description: p.Description,
		Author: &discordgo.MessageEmbedAuthor{
			URL:     p.URL,
			Name:    p.AuthorName,
			IconURL: p.AuthorIconURL,
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text:    footerText,
			IconURL: footerIconURL,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if p.GameName != "" {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:   "Game",
			Value:  p.GameName,
			Inline: true,
		})
	}
	e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
		Name:   "Viewers",
		Value:  strconv.Itoa(p.ViewerCount),
		Inline: true,
	})
	if p.ImageURL != "" {
		e.Image = &discordgo.MessageEmbedImage{URL: p.ImageURL}
	}
	return e
}

// WatchButton is the persistent link affordance under a live notification.
func WatchButton(url string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label: "Watch Live",
					Style: discordgo.LinkButton,
					URL:   url,
				},
			},
		},
	}
}

// CreateCheckEmbed renders a manual liveness check.
func CreateCheckEmbed(user *api.User, snap *api.StreamSnapshot) *discordgo.MessageEmbed {
	channelURL := api.ChannelURL(user.Login)
	if !snap.LiveNow {
		return &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("%s is offline", user.DisplayName),
			Description: "This streamer is not currently live.",
			URL:         channelURL,
			Color:       0x808080,
			Footer:      &discordgo.MessageEmbedFooter{Text: "Manual stream check"},
		}
	}
	e := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s is LIVE!", user.DisplayName),
		Description: snap.Title,
		URL:         channelURL,
		Color:       0x00FF00,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Game", Value: orUnknown(snap.GameName), Inline: true},
			{Name: "Viewers", Value: strconv.Itoa(snap.ViewerCount), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Manual stream check"},
	}
	if !snap.StartedAt.IsZero() {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:   "Started",
			Value:  fmt.Sprintf("<t:%d:R>", snap.StartedAt.Unix()),
			Inline: true,
		})
	}
	if thumb := snap.Thumbnail(320, 180); thumb != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: thumb}
	}
	return e
}

// CreateListEmbed renders the guild's watch list grouped by status. Each
// slice holds already-formatted lines.
func CreateListEmbed(live, offline, paused []string, serverPaused bool) *discordgo.MessageEmbed {
	total := len(live) + len(offline) + len(paused)
	e := &discordgo.MessageEmbed{
		Title:       "Watched Twitch Streamers",
		Description: fmt.Sprintf("Monitoring %d streamers for live notifications", total),
		Color:       models.DefaultColor,
	}
	if serverPaused {
		e.Title = "Watched Twitch Streamers (Server Paused)"
		e.Description = fmt.Sprintf("Server notifications are paused. Monitoring %d streamers.", total)
		e.Color = 0xFFA500
	}
	addChunkedFields(e, "Currently Live", live)
	addChunkedFields(e, "Offline", offline)
	addChunkedFields(e, "Paused", paused)

	footer := "Use /twitch add to watch more streamers"
	if serverPaused {
		footer = "Server notifications paused • " + footer
	} else if len(paused) > 0 {
		footer = fmt.Sprintf("%d paused • %s", len(paused), footer)
	}
	e.Footer = &discordgo.MessageEmbedFooter{Text: footer}
	return e
}

// addChunkedFields splits a line list across as many fields as the 1024
// character limit requires.
func addChunkedFields(e *discordgo.MessageEmbed, name string, lines []string) {
	if len(lines) == 0 {
		return
	}
	var chunk string
	fieldName := name
	flush := func() {
		if chunk == "" {
			return
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: fieldName, Value: chunk})
		fieldName = name + " (continued)"
		chunk = ""
	}
	for _, line := range lines {
		if len(chunk)+len(line)+1 > maxFieldLen {
			flush()
		}
		if chunk != "" {
			chunk += "\n"
		}
		chunk += line
	}
	flush()
}

// CreateSettingsEmbed renders the settings state after an update.
func CreateSettingsEmbed(s *models.GuildSettings, reset bool) *discordgo.MessageEmbed {
	title := "Twitch Settings Updated"
	if reset {
		title = "Twitch Settings Reset to Defaults"
	}
	eff := models.Effective(s)
	return &discordgo.MessageEmbed{
		Title: title,
		Color: eff.Color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Role Mention", Value: orNone(eff.MentionTarget), Inline: true},
			{Name: "Embed Color", Value: fmt.Sprintf("#%06x", eff.Color), Inline: true},
			{Name: "Include Game", Value: yesNo(eff.IncludeGame), Inline: true},
			{Name: "Include Preview", Value: yesNo(eff.IncludePreview), Inline: true},
		},
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
