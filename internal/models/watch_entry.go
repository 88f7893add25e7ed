package models

import "time"

// WatchEntry is one watched streamer for one notification channel in a guild.
// The (guild_id, channel_id, streamer_login) triple is the identity; a
// duplicate add must fail rather than overwrite.
type WatchEntry struct {
	GuildID        string     `gorm:"primaryKey;column:guild_id"`
	ChannelID      string     `gorm:"primaryKey;column:channel_id"`
	StreamerLogin  string     `gorm:"primaryKey;column:streamer_login"`
	StreamerID     string     `gorm:"column:streamer_id"`
	IsLive         bool       `gorm:"column:is_live"`
	Paused         bool       `gorm:"column:paused"`
	CustomMessage  string     `gorm:"column:custom_message;size:500"`
	LastNotifiedAt *time.Time `gorm:"column:last_notified_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
}

func (WatchEntry) TableName() string {
	return "watch_entries"
}
