package watcher

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/frostholt/discord-twitch-notify/api"
	"github.com/frostholt/discord-twitch-notify/internal/database"
	"github.com/frostholt/discord-twitch-notify/internal/models"
)

const maxCustomMessageLen = 500

var (
	// ErrMessageTooLong rejects custom messages over the stored limit.
	ErrMessageTooLong = errors.New("custom message exceeds 500 characters")
	// ErrNothingToEdit rejects an edit that supplies no fields.
	ErrNothingToEdit = errors.New("nothing to edit")
	// ErrNoWatches means the guild has no entries to run a test against.
	ErrNoWatches = errors.New("no watched streamers")
)

// Synthetic stream rendered by TestNotification.
const (
	testMarker          = "🧪 **TEST NOTIFICATION** - "
	testStreamTitle     = "🧪 TEST NOTIFICATION - This is a test stream"
	testGameName        = "Software Testing"
	testViewerCount     = 1337
	testProfileImageURL = "https://static-cdn.jtvnw.net/user-default-pictures/de130ab0-def7-11e9-b668-784f43822e80-profile_image-300x300.png"
	testThumbnailURL    = "https://static-cdn.jtvnw.net/ttv-boxart/509658-{width}x{height}.jpg"
)

// Service is the mutation API the command surface drives. It owns platform
// validation and policy; the Discord layer only parses options and renders
// responses.
type Service struct {
	repo    *database.Repository
	streams StreamAPI
	log     *zap.Logger
}

func NewService(repo *database.Repository, streams StreamAPI, log *zap.Logger) *Service {
	return &Service{repo: repo, streams: streams, log: log}
}

// AddWatch validates the streamer on Twitch and inserts a watch entry.
// Returns database.ErrDuplicateEntry when the triple is already watched and
// api.ErrUserNotFound when the login does not exist.
func (s *Service) AddWatch(ctx context.Context, guildID, channelID, login, customMessage string) (*models.WatchEntry, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	if len(customMessage) > maxCustomMessageLen {
		return nil, ErrMessageTooLong
	}

	user, err := s.streams.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, err
	}

	entry := &models.WatchEntry{
		GuildID:       guildID,
		ChannelID:     channelID,
		StreamerLogin: login,
		StreamerID:    user.ID,
		CustomMessage: customMessage,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.InsertEntry(entry); err != nil {
		return nil, err
	}
	s.log.Info("watch added",
		zap.String("guild_id", guildID),
		zap.String("channel_id", channelID),
		zap.String("streamer", login),
	)
	return entry, nil
}

// RemoveWatch deletes the exact entry when channelID is set, otherwise all
// of the streamer's entries in the guild.
func (s *Service) RemoveWatch(guildID, channelID, login string) error {
	return s.repo.DeleteEntry(guildID, channelID, strings.ToLower(strings.TrimSpace(login)))
}

// EditWatch updates the delivery channel and/or custom message of a
// streamer's entries in the guild. Nil means "leave unchanged".
func (s *Service) EditWatch(guildID, login string, channelID, customMessage *string) error {
	if channelID == nil && customMessage == nil {
		return ErrNothingToEdit
	}
	if customMessage != nil && len(*customMessage) > maxCustomMessageLen {
		return ErrMessageTooLong
	}
	return s.repo.UpdateEntry(guildID, strings.ToLower(strings.TrimSpace(login)), channelID, customMessage)
}

// SetEntryPaused pauses or resumes one streamer's notifications.
func (s *Service) SetEntryPaused(guildID, login string, paused bool) error {
	return s.repo.SetEntryPaused(guildID, strings.ToLower(strings.TrimSpace(login)), paused)
}

// SetGuildPaused pauses or resumes notifications for the whole guild.
func (s *Service) SetGuildPaused(guildID string, paused bool) error {
	return s.repo.SetGuildPaused(guildID, paused)
}

// UpdateSettings applies a partial settings update, creating the row on
// first use.
func (s *Service) UpdateSettings(guildID string, patch database.SettingsPatch) (*models.GuildSettings, error) {
	return s.repo.UpsertGuildSettings(guildID, patch)
}

// ResetSettings restores the guild's notification settings to defaults.
func (s *Service) ResetSettings(guildID string) (*models.GuildSettings, error) {
	return s.repo.ResetGuildSettings(guildID)
}

// ListWatches returns the guild's entries plus its effective settings.
func (s *Service) ListWatches(guildID string) ([]models.WatchEntry, models.EffectiveSettings, error) {
	entries, err := s.repo.ListEntriesForGuild(guildID)
	if err != nil {
		return nil, models.EffectiveSettings{}, err
	}
	row, err := s.repo.GetGuildSettings(guildID)
	if err != nil {
		return nil, models.EffectiveSettings{}, err
	}
	return entries, models.Effective(row), nil
}

// CountWatches counts watch entries across all guilds.
func (s *Service) CountWatches() (int64, error) {
	return s.repo.CountEntries()
}

// TestNotification builds a synthetic live payload for the guild's first
// watch entry so admins can verify channel, role, and embed configuration.
// It runs through the same settings merge and resolver as a real
// notification but never touches the registry's liveness state.
func (s *Service) TestNotification(guildID string) (string, *Payload, error) {
	entries, err := s.repo.ListEntriesForGuild(guildID)
	if err != nil {
		return "", nil, err
	}
	if len(entries) == 0 {
		return "", nil, ErrNoWatches
	}
	entry := entries[0]

	row, err := s.repo.GetGuildSettings(guildID)
	if err != nil {
		return "", nil, err
	}

	user := &api.User{
		Login:           entry.StreamerLogin,
		DisplayName:     "TestStreamer",
		ProfileImageURL: testProfileImageURL,
	}
	snap := &api.StreamSnapshot{
		LiveNow:      true,
		Title:        testStreamTitle,
		GameName:     testGameName,
		ViewerCount:  testViewerCount,
		ThumbnailURL: testThumbnailURL,
	}

	// The test always shows the stock message so the marker reads cleanly.
	entry.CustomMessage = ""
	p := BuildPayload(entry, user, snap, models.Effective(row), time.Now())
	p.Content = testMarker + p.Content
	return entry.ChannelID, p, nil
}

// CheckStream reports a streamer's current liveness without touching the
// registry. Works for unwatched streamers too.
func (s *Service) CheckStream(ctx context.Context, login string) (*api.User, *api.StreamSnapshot, error) {
	user, err := s.streams.GetUserByLogin(ctx, strings.ToLower(strings.TrimSpace(login)))
	if err != nil {
		return nil, nil, err
	}
	snap, err := s.streams.GetStream(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, snap, nil
}
