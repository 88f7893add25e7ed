package models

// Twitch-branded embed color used when a guild has not picked its own.
const DefaultColor = 0x9146FF

// LegacyColorSentinel is the old schema default for notification_color.
// Rows carrying it predate the branded default and must not render with it.
const LegacyColorSentinel = 6570404

// GuildSettings is one row per guild. Created lazily on the first settings
// write; absence means "all defaults".
type GuildSettings struct {
	GuildID        string `gorm:"primaryKey;column:guild_id"`
	MentionTarget  string `gorm:"column:mention_target"`
	Color          int    `gorm:"column:notification_color"`
	IncludeGame    bool   `gorm:"column:include_game"`
	IncludePreview bool   `gorm:"column:include_preview"`
	Paused         bool   `gorm:"column:paused"`
}

func (GuildSettings) TableName() string {
	return "guild_settings"
}

// EffectiveSettings is the fully resolved notification policy for a guild,
// with every default applied. Resolver and detector read only this form.
type EffectiveSettings struct {
	MentionTarget  string
	Color          int
	IncludeGame    bool
	IncludePreview bool
	Paused         bool
}

// Effective merges a stored row (possibly nil) with the defaults. Only the
// legacy sentinel color falls back to the branded default; 0x000000 is a
// valid user choice. Rows are always written fully populated, so a stored
// color is always an explicit one.
func Effective(s *GuildSettings) EffectiveSettings {
	eff := EffectiveSettings{
		Color:          DefaultColor,
		IncludeGame:    true,
		IncludePreview: true,
	}
	if s == nil {
		return eff
	}
	eff.MentionTarget = s.MentionTarget
	if s.Color != LegacyColorSentinel {
		eff.Color = s.Color
	}
	eff.IncludeGame = s.IncludeGame
	eff.IncludePreview = s.IncludePreview
	eff.Paused = s.Paused
	return eff
}
