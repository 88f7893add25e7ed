package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/frostholt/discord-twitch-notify/internal/models"
)

// A file-backed database: transactions may run on a second pooled
// connection, which with :memory: would see a separate empty database.
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { Close(db) })
	return NewRepository(db)
}

func seedEntry(t *testing.T, repo *Repository, guildID, channelID, login string) {
	t.Helper()
	err := repo.InsertEntry(&models.WatchEntry{
		GuildID:       guildID,
		ChannelID:     channelID,
		StreamerLogin: login,
		StreamerID:    "id-" + login,
	})
	if err != nil {
		t.Fatalf("seeding entry: %v", err)
	}
}

func TestInsertEntryDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	seedEntry(t, repo, "g1", "c1", "alice")

	err := repo.InsertEntry(&models.WatchEntry{GuildID: "g1", ChannelID: "c1", StreamerLogin: "alice"})
	if !errors.Is(err, ErrDuplicateEntry) {
		t.Errorf("duplicate insert error = %v, want ErrDuplicateEntry", err)
	}

	// Same streamer in a different channel is a distinct entry.
	if err := repo.InsertEntry(&models.WatchEntry{GuildID: "g1", ChannelID: "c2", StreamerLogin: "alice"}); err != nil {
		t.Errorf("insert into second channel: %v", err)
	}
}

func TestInsertEntryNormalizesLogin(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.InsertEntry(&models.WatchEntry{GuildID: "g1", ChannelID: "c1", StreamerLogin: "AliceCasing"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	entries, err := repo.ListEntriesForStreamer("g1", "alicecasing")
	if err != nil || len(entries) != 1 {
		t.Fatalf("lookup by lowered login: entries=%d err=%v", len(entries), err)
	}
	if entries[0].StreamerLogin != "alicecasing" {
		t.Errorf("stored login = %q, want lowercase", entries[0].StreamerLogin)
	}
}

func TestDeleteEntry(t *testing.T) {
	repo := newTestRepo(t)
	seedEntry(t, repo, "g1", "c1", "alice")
	seedEntry(t, repo, "g1", "c2", "alice")
	seedEntry(t, repo, "g1", "c1", "bob")

	if err := repo.DeleteEntry("g1", "c1", "alice"); err != nil {
		t.Fatalf("exact delete: %v", err)
	}
	if err := repo.DeleteEntry("g1", "c1", "alice"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("repeated delete error = %v, want ErrEntryNotFound", err)
	}

	// Empty channel removes the streamer from every channel of the guild.
	seedEntry(t, repo, "g1", "c1", "alice")
	if err := repo.DeleteEntry("g1", "", "alice"); err != nil {
		t.Fatalf("guild-wide delete: %v", err)
	}
	entries, err := repo.ListEntriesForGuild("g1")
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(entries) != 1 || entries[0].StreamerLogin != "bob" {
		t.Errorf("remaining entries = %+v, want only bob", entries)
	}
}

func TestUpdateEntryPartial(t *testing.T) {
	repo := newTestRepo(t)
	seedEntry(t, repo, "g1", "c1", "alice")

	msg := "custom ping"
	if err := repo.UpdateEntry("g1", "alice", nil, &msg); err != nil {
		t.Fatalf("update message: %v", err)
	}
	entries, _ := repo.ListEntriesForStreamer("g1", "alice")
	if entries[0].CustomMessage != "custom ping" {
		t.Errorf("CustomMessage = %q", entries[0].CustomMessage)
	}
	if entries[0].ChannelID != "c1" {
		t.Errorf("ChannelID = %q, nil field must stay untouched", entries[0].ChannelID)
	}

	if err := repo.UpdateEntry("g1", "ghost", nil, &msg); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("update of missing streamer = %v, want ErrEntryNotFound", err)
	}
}

func TestSetEntryPaused(t *testing.T) {
	repo := newTestRepo(t)
	seedEntry(t, repo, "g1", "c1", "alice")

	if err := repo.SetEntryPaused("g1", "alice", true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	entries, _ := repo.ListEntriesForStreamer("g1", "alice")
	if !entries[0].Paused {
		t.Error("entry should be paused")
	}
	if err := repo.SetEntryPaused("g1", "ghost", true); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("pausing missing streamer = %v, want ErrEntryNotFound", err)
	}
}

func TestSetEntryLiveness(t *testing.T) {
	repo := newTestRepo(t)
	seedEntry(t, repo, "g1", "c1", "alice")

	// Tracking without notification leaves the timestamp empty.
	if err := repo.SetEntryLiveness("g1", "c1", "alice", true, nil); err != nil {
		t.Fatalf("set live: %v", err)
	}
	entries, _ := repo.ListEntriesForStreamer("g1", "alice")
	if !entries[0].IsLive || entries[0].LastNotifiedAt != nil {
		t.Errorf("entry = %+v, want live with nil LastNotifiedAt", entries[0])
	}

	now := time.Now().UTC()
	if err := repo.SetEntryLiveness("g1", "c1", "alice", true, &now); err != nil {
		t.Fatalf("set live with timestamp: %v", err)
	}
	entries, _ = repo.ListEntriesForStreamer("g1", "alice")
	if entries[0].LastNotifiedAt == nil {
		t.Fatal("LastNotifiedAt should be recorded after notification")
	}

	// Going offline keeps the last notification timestamp.
	if err := repo.SetEntryLiveness("g1", "c1", "alice", false, nil); err != nil {
		t.Fatalf("set offline: %v", err)
	}
	entries, _ = repo.ListEntriesForStreamer("g1", "alice")
	if entries[0].IsLive || entries[0].LastNotifiedAt == nil {
		t.Errorf("entry = %+v, want offline with timestamp preserved", entries[0])
	}
}

func TestSetEntryStreamerID(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.InsertEntry(&models.WatchEntry{GuildID: "g1", ChannelID: "c1", StreamerLogin: "alice"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.SetEntryStreamerID("g1", "c1", "alice", "1234"); err != nil {
		t.Fatalf("backfill: %v", err)
	}
	entries, _ := repo.ListEntriesForStreamer("g1", "alice")
	if entries[0].StreamerID != "1234" {
		t.Errorf("StreamerID = %q", entries[0].StreamerID)
	}
}

func TestCountEntries(t *testing.T) {
	repo := newTestRepo(t)
	seedEntry(t, repo, "g1", "c1", "alice")
	seedEntry(t, repo, "g2", "c1", "alice")

	count, err := repo.CountEntries()
	if err != nil || count != 2 {
		t.Errorf("CountEntries() = %d, %v, want 2", count, err)
	}
}

func TestGuildSettingsLifecycle(t *testing.T) {
	repo := newTestRepo(t)

	s, err := repo.GetGuildSettings("g1")
	if err != nil || s != nil {
		t.Fatalf("absent settings = %+v, %v, want nil row", s, err)
	}

	color := 0xFF0000
	s, err = repo.UpsertGuildSettings("g1", SettingsPatch{Color: &color})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if s.Color != 0xFF0000 {
		t.Errorf("Color = %#x", s.Color)
	}
	if !s.IncludeGame || !s.IncludePreview {
		t.Error("untouched settings must keep their defaults on first write")
	}

	// A later patch must not disturb unrelated fields.
	mention := "<@&123>"
	s, err = repo.UpsertGuildSettings("g1", SettingsPatch{MentionTarget: &mention})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if s.Color != 0xFF0000 || s.MentionTarget != "<@&123>" {
		t.Errorf("settings after patch = %+v", s)
	}

	stored, err := repo.GetGuildSettings("g1")
	if err != nil || stored == nil {
		t.Fatalf("reading back: %+v, %v", stored, err)
	}
	if stored.Color != 0xFF0000 || stored.MentionTarget != "<@&123>" {
		t.Errorf("stored settings = %+v", stored)
	}
}

func TestUpsertGuildSettingsKeepsBlackColor(t *testing.T) {
	repo := newTestRepo(t)

	color := 0x000000
	if _, err := repo.UpsertGuildSettings("g1", SettingsPatch{Color: &color}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	stored, err := repo.GetGuildSettings("g1")
	if err != nil || stored == nil {
		t.Fatalf("reading back: %+v, %v", stored, err)
	}
	if got := models.Effective(stored).Color; got != 0x000000 {
		t.Errorf("effective color = %#x, want black preserved", got)
	}
}

func TestResetGuildSettingsKeepsPause(t *testing.T) {
	repo := newTestRepo(t)

	color := 0xFF0000
	if _, err := repo.UpsertGuildSettings("g1", SettingsPatch{Color: &color}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.SetGuildPaused("g1", true); err != nil {
		t.Fatalf("pause guild: %v", err)
	}

	s, err := repo.ResetGuildSettings("g1")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if s.Color != models.DefaultColor || s.MentionTarget != "" {
		t.Errorf("settings after reset = %+v", s)
	}
	stored, _ := repo.GetGuildSettings("g1")
	if !stored.Paused {
		t.Error("reset must not clear the guild pause flag")
	}
}

func TestSetGuildPausedCreatesRow(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.SetGuildPaused("g1", true); err != nil {
		t.Fatalf("pause without prior settings: %v", err)
	}
	s, err := repo.GetGuildSettings("g1")
	if err != nil || s == nil {
		t.Fatalf("settings = %+v, %v", s, err)
	}
	if !s.Paused {
		t.Error("Paused should be set")
	}
	if s.Color != models.DefaultColor {
		t.Errorf("Color = %#x, pause must materialize defaults", s.Color)
	}
}
