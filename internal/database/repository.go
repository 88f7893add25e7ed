package database

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frostholt/discord-twitch-notify/internal/models"
)

// ErrDuplicateEntry means the (guild, channel, streamer) triple is already
// watched. Surfaced to the command caller, never retried.
var ErrDuplicateEntry = errors.New("streamer already watched")

// ErrEntryNotFound means no watch entry matched the given key.
var ErrEntryNotFound = errors.New("watch entry not found")

// Repository handles all registry access. Every mutation is a single
// statement, so concurrent command-surface and sweep writers stay
// consistent: they touch disjoint columns except paused, which only the
// command surface writes.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListAllEntries returns every watch entry, ordered for stable sweeps.
func (r *Repository) ListAllEntries() ([]models.WatchEntry, error) {
	var entries []models.WatchEntry
	err := r.db.Order("guild_id, channel_id, streamer_login").Find(&entries).Error
	return entries, err
}

// ListEntriesForGuild returns the entries of one guild, ordered by login.
func (r *Repository) ListEntriesForGuild(guildID string) ([]models.WatchEntry, error) {
	var entries []models.WatchEntry
	err := r.db.Where("guild_id = ?", guildID).
		Order("streamer_login").
		Find(&entries).Error
	return entries, err
}

// ListEntriesForStreamer returns the guild's entries for one login across
// all channels.
func (r *Repository) ListEntriesForStreamer(guildID, login string) ([]models.WatchEntry, error) {
	var entries []models.WatchEntry
	err := r.db.Where("guild_id = ? AND streamer_login = ?", guildID, strings.ToLower(login)).
		Find(&entries).Error
	return entries, err
}

// InsertEntry adds a new watch entry. A duplicate key yields
// ErrDuplicateEntry and leaves the registry unchanged.
func (r *Repository) InsertEntry(entry *models.WatchEntry) error {
	entry.StreamerLogin = strings.ToLower(entry.StreamerLogin)
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDuplicateEntry
	}
	return nil
}

// DeleteEntry removes the entry with the exact key, or every entry for the
// streamer in the guild when channelID is empty.
func (r *Repository) DeleteEntry(guildID, channelID, login string) error {
	q := r.db.Where("guild_id = ? AND streamer_login = ?", guildID, strings.ToLower(login))
	if channelID != "" {
		q = q.Where("channel_id = ?", channelID)
	}
	result := q.Delete(&models.WatchEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// UpdateEntry rewrites the mutable config fields of a streamer's entries.
// Nil fields are left untouched.
func (r *Repository) UpdateEntry(guildID, login string, channelID, customMessage *string) error {
	updates := map[string]any{}
	if channelID != nil {
		updates["channel_id"] = *channelID
	}
	if customMessage != nil {
		updates["custom_message"] = *customMessage
	}
	if len(updates) == 0 {
		return nil
	}
	result := r.db.Model(&models.WatchEntry{}).
		Where("guild_id = ? AND streamer_login = ?", guildID, strings.ToLower(login)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// SetEntryPaused flips the per-entry suppression flag.
func (r *Repository) SetEntryPaused(guildID, login string, paused bool) error {
	result := r.db.Model(&models.WatchEntry{}).
		Where("guild_id = ? AND streamer_login = ?", guildID, strings.ToLower(login)).
		Update("paused", paused)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// SetEntryLiveness records the observed liveness for one entry. notifiedAt
// is set only when a notification was actually delivered.
func (r *Repository) SetEntryLiveness(guildID, channelID, login string, isLive bool, notifiedAt *time.Time) error {
	updates := map[string]any{"is_live": isLive}
	if notifiedAt != nil {
		updates["last_notified_at"] = *notifiedAt
	}
	return r.db.Model(&models.WatchEntry{}).
		Where("guild_id = ? AND channel_id = ? AND streamer_login = ?", guildID, channelID, strings.ToLower(login)).
		Updates(updates).Error
}

// SetEntryStreamerID backfills the resolved platform user id.
func (r *Repository) SetEntryStreamerID(guildID, channelID, login, streamerID string) error {
	return r.db.Model(&models.WatchEntry{}).
		Where("guild_id = ? AND channel_id = ? AND streamer_login = ?", guildID, channelID, strings.ToLower(login)).
		Update("streamer_id", streamerID).Error
}

// CountEntries counts all watch entries.
func (r *Repository) CountEntries() (int64, error) {
	var count int64
	err := r.db.Model(&models.WatchEntry{}).Count(&count).Error
	return count, err
}

// GetGuildSettings returns the stored settings row, or nil when the guild
// has never written any (all defaults).
func (r *Repository) GetGuildSettings(guildID string) (*models.GuildSettings, error) {
	return getGuildSettings(r.db, guildID)
}

func getGuildSettings(db *gorm.DB, guildID string) (*models.GuildSettings, error) {
	var s models.GuildSettings
	err := db.Where("guild_id = ?", guildID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SettingsPatch carries the fields a settings update supplies; nil means
// "keep the current value".
type SettingsPatch struct {
	MentionTarget  *string
	Color          *int
	IncludeGame    *bool
	IncludePreview *bool
}

// UpsertGuildSettings merges the patch over the current effective settings
// and writes the full row, creating it on first use. The read and write run
// in one transaction so concurrent settings commands cannot lose fields.
func (r *Repository) UpsertGuildSettings(guildID string, patch SettingsPatch) (*models.GuildSettings, error) {
	var row models.GuildSettings
	err := r.db.Transaction(func(tx *gorm.DB) error {
		current, err := getGuildSettings(tx, guildID)
		if err != nil {
			return err
		}
		eff := models.Effective(current)

		row = models.GuildSettings{
			GuildID:        guildID,
			MentionTarget:  eff.MentionTarget,
			Color:          eff.Color,
			IncludeGame:    eff.IncludeGame,
			IncludePreview: eff.IncludePreview,
			Paused:         eff.Paused,
		}
		if patch.MentionTarget != nil {
			row.MentionTarget = *patch.MentionTarget
		}
		if patch.Color != nil {
			row.Color = *patch.Color
		}
		if patch.IncludeGame != nil {
			row.IncludeGame = *patch.IncludeGame
		}
		if patch.IncludePreview != nil {
			row.IncludePreview = *patch.IncludePreview
		}

		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "guild_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"mention_target", "notification_color", "include_game", "include_preview",
			}),
		}).Create(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ResetGuildSettings restores every setting to its default, keeping the
// scope-wide pause flag as it was.
func (r *Repository) ResetGuildSettings(guildID string) (*models.GuildSettings, error) {
	var row models.GuildSettings
	err := r.db.Transaction(func(tx *gorm.DB) error {
		current, err := getGuildSettings(tx, guildID)
		if err != nil {
			return err
		}
		row = models.GuildSettings{
			GuildID:        guildID,
			MentionTarget:  "",
			Color:          models.DefaultColor,
			IncludeGame:    true,
			IncludePreview: true,
		}
		if current != nil {
			row.Paused = current.Paused
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "guild_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"mention_target", "notification_color", "include_game", "include_preview",
			}),
		}).Create(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SetGuildPaused flips the scope-wide suppression flag, creating the
// settings row when absent.
func (r *Repository) SetGuildPaused(guildID string, paused bool) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		current, err := getGuildSettings(tx, guildID)
		if err != nil {
			return err
		}
		eff := models.Effective(current)
		row := models.GuildSettings{
			GuildID:        guildID,
			MentionTarget:  eff.MentionTarget,
			Color:          eff.Color,
			IncludeGame:    eff.IncludeGame,
			IncludePreview: eff.IncludePreview,
			Paused:         paused,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "guild_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"paused"}),
		}).Create(&row).Error
	})
}
