package watcher

import (
	"fmt"
	"time"

	"github.com/frostholt/discord-twitch-notify/api"
	"github.com/frostholt/discord-twitch-notify/internal/models"
)

// Preview dimensions requested from the thumbnail template.
const (
	previewWidth  = 1280
	previewHeight = 720
)

// Payload is the fully resolved notification for one live transition,
// transport-neutral so the resolver stays pure and unit-testable.
type Payload struct {
	Content       string // mention target + message body
	Title         string
	Description   string // stream title
	URL           string // clickable channel link
	Color         int
	GameName      string // empty when the guild excludes the game field
	ViewerCount   int
	ImageURL      string // cache-busted preview, empty when excluded
	AuthorName    string
	AuthorIconURL string
	WatchURL      string // persistent watch affordance
	StartedAt     time.Time
}

// BuildPayload merges entry-level and guild-level policy into one
// notification. now feeds the preview cache-buster so repeated
// notifications for the same thumbnail URL are not deduplicated by
// downstream caches.
func BuildPayload(entry models.WatchEntry, user *api.User, snap *api.StreamSnapshot, settings models.EffectiveSettings, now time.Time) *Payload {
	channelURL := api.ChannelURL(user.Login)

	body := entry.CustomMessage
	if body == "" {
		body = fmt.Sprintf("**%s** just went live!", user.DisplayName)
	}
	if settings.MentionTarget != "" {
		body = settings.MentionTarget + " " + body
	}

	p := &Payload{
		Content:       body,
		Title:         fmt.Sprintf("%s is now live on Twitch!", user.DisplayName),
		Description:   snap.Title,
		URL:           channelURL,
		Color:         settings.Color,
		ViewerCount:   snap.ViewerCount,
		AuthorName:    user.DisplayName,
		AuthorIconURL: user.ProfileImageURL,
		WatchURL:      channelURL,
		StartedAt:     snap.StartedAt,
	}
	if settings.IncludeGame {
		p.GameName = snap.GameName
		if p.GameName == "" {
			p.GameName = "Unknown"
		}
	}
	if settings.IncludePreview {
		if thumb := snap.Thumbnail(previewWidth, previewHeight); thumb != "" {
			p.ImageURL = fmt.Sprintf("%s?t=%d", thumb, now.Unix())
		}
	}
	return p
}
