// Package watcher implements the live-stream monitoring core: a polling
// scheduler that detects offline/live transitions for every watched
// streamer and dispatches at most one notification per transition.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/frostholt/discord-twitch-notify/api"
	"github.com/frostholt/discord-twitch-notify/internal/models"
	"github.com/frostholt/discord-twitch-notify/internal/telemetry"
)

// Registry is the slice of the watch registry the sweep needs.
type Registry interface {
	ListAllEntries() ([]models.WatchEntry, error)
	GetGuildSettings(guildID string) (*models.GuildSettings, error)
	SetEntryLiveness(guildID, channelID, login string, isLive bool, notifiedAt *time.Time) error
	SetEntryStreamerID(guildID, channelID, login, streamerID string) error
}

// StreamAPI is the slice of the platform client the sweep needs.
type StreamAPI interface {
	GetUserByLogin(ctx context.Context, login string) (*api.User, error)
	GetUserByID(ctx context.Context, id string) (*api.User, error)
	GetStream(ctx context.Context, userID string) (*api.StreamSnapshot, error)
}

// Notifier delivers one rendered payload to a channel.
type Notifier interface {
	Send(channelID string, p *Payload) error
}

const sweepBackoff = time.Minute

// Watcher runs the polling loop over all watch entries.
type Watcher struct {
	registry     Registry
	streams      StreamAPI
	notifier     Notifier
	log          *zap.Logger
	interval     time.Duration
	concurrency  int
	entryTimeout time.Duration

	now func() time.Time
}

func New(registry Registry, streams StreamAPI, notifier Notifier, log *zap.Logger, interval time.Duration, concurrency int, requestTimeout time.Duration) *Watcher {
	return &Watcher{
		registry:    registry,
		streams:     streams,
		notifier:    notifier,
		log:         log,
		interval:    interval,
		concurrency: concurrency,
		// Budget for one entry: user resolve, stream query, delivery.
		entryTimeout: 4 * requestTimeout,
		now:          time.Now,
	}
}

// Run executes sweeps on a fixed cadence until ctx is cancelled. A failed
// sweep logs and backs off; the loop itself never terminates early.
func (w *Watcher) Run(ctx context.Context) {
	w.log.Info("stream watcher started",
		zap.Duration("interval", w.interval),
		zap.Int("concurrency", w.concurrency),
	)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("stream watcher stopped")
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.log.Error("sweep failed", zap.Error(err))
				select {
				case <-ctx.Done():
					w.log.Info("stream watcher stopped")
					return
				case <-time.After(sweepBackoff):
				}
			}
		}
	}
}

// Sweep processes every watch entry once. Entries fail independently; only
// a registry read failure aborts the whole pass. The registry and settings
// reads complete before any of the sweep's own writes start.
func (w *Watcher) Sweep(ctx context.Context) error {
	start := w.now()

	entries, err := w.registry.ListAllEntries()
	if err != nil {
		return fmt.Errorf("list watch entries: %w", err)
	}
	telemetry.SetWatchedEntries(len(entries))
	if len(entries) == 0 {
		return nil
	}

	settings := make(map[string]models.EffectiveSettings)
	for _, e := range entries {
		if _, ok := settings[e.GuildID]; ok {
			continue
		}
		row, err := w.registry.GetGuildSettings(e.GuildID)
		if err != nil {
			w.log.Warn("loading guild settings, using defaults",
				zap.String("guild_id", e.GuildID), zap.Error(err))
			row = nil
		}
		settings[e.GuildID] = models.Effective(row)
	}

	// An auth failure is fatal for the whole sweep: the first one cancels
	// the group so remaining entries skip instead of re-hitting the token
	// endpoint one by one.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return w.processEntry(gctx, entry, settings[entry.GuildID])
		})
	}
	sweepErr := g.Wait()

	telemetry.ObserveSweep(w.now().Sub(start))
	w.log.Debug("sweep completed",
		zap.Int("entries", len(entries)),
		zap.Duration("elapsed", w.now().Sub(start)),
	)
	if sweepErr != nil && !errors.Is(sweepErr, context.Canceled) {
		return sweepErr
	}
	return ctx.Err()
}

func (w *Watcher) processEntry(ctx context.Context, entry models.WatchEntry, settings models.EffectiveSettings) error {
	ctx, cancel := context.WithTimeout(ctx, w.entryTimeout)
	defer cancel()

	log := w.log.With(
		zap.String("guild_id", entry.GuildID),
		zap.String("channel_id", entry.ChannelID),
		zap.String("streamer", entry.StreamerLogin),
	)

	// Entries added before the platform id was resolved get backfilled here.
	if entry.StreamerID == "" {
		user, err := w.streams.GetUserByLogin(ctx, entry.StreamerLogin)
		if err != nil {
			return w.queryFailure(log, err)
		}
		entry.StreamerID = user.ID
		if err := w.registry.SetEntryStreamerID(entry.GuildID, entry.ChannelID, entry.StreamerLogin, user.ID); err != nil {
			log.Warn("persisting streamer id", zap.Error(err))
		}
	}

	snap, queryErr := w.streams.GetStream(ctx, entry.StreamerID)
	transition := Classify(entry.IsLive, snap, queryErr, entry.Paused, settings.Paused)

	switch transition {
	case WentLive:
		return w.notifyLive(ctx, log, entry, snap, settings)
	case SuppressedLive:
		log.Info("went live while paused, suppressing notification")
		if err := w.registry.SetEntryLiveness(entry.GuildID, entry.ChannelID, entry.StreamerLogin, true, nil); err != nil {
			log.Error("persisting liveness", zap.Error(err))
		}
	case WentOffline:
		log.Info("went offline")
		if err := w.registry.SetEntryLiveness(entry.GuildID, entry.ChannelID, entry.StreamerLogin, false, nil); err != nil {
			log.Error("persisting liveness", zap.Error(err))
		}
	case Inconclusive:
		return w.queryFailure(log, queryErr)
	}
	return nil
}

func (w *Watcher) notifyLive(ctx context.Context, log *zap.Logger, entry models.WatchEntry, snap *api.StreamSnapshot, settings models.EffectiveSettings) error {
	user, err := w.streams.GetUserByID(ctx, entry.StreamerID)
	if err != nil {
		// Without display name and avatar there is no payload to render;
		// liveness stays recorded as offline so the next sweep retries.
		return w.queryFailure(log, err)
	}

	payload := BuildPayload(entry, user, snap, settings, w.now())
	if err := w.notifier.Send(entry.ChannelID, payload); err != nil {
		telemetry.IncNotificationFailed()
		log.Warn("notification delivery failed, will retry next sweep", zap.Error(err))
		return nil
	}

	now := w.now().UTC()
	if err := w.registry.SetEntryLiveness(entry.GuildID, entry.ChannelID, entry.StreamerLogin, true, &now); err != nil {
		log.Error("persisting liveness after notification", zap.Error(err))
	}
	telemetry.IncNotificationSent()
	log.Info("live notification sent", zap.Int("viewers", snap.ViewerCount))
	return nil
}

// queryFailure logs a per-entry query failure. Auth failures come back as
// the error so the sweep aborts; everything else is retried next sweep with
// the entry's state untouched.
func (w *Watcher) queryFailure(log *zap.Logger, err error) error {
	telemetry.IncQueryFailed()
	var authErr *api.AuthError
	switch {
	case errors.As(err, &authErr):
		log.Error("twitch auth failed, aborting sweep", zap.Error(err))
		return err
	case errors.Is(err, api.ErrUserNotFound):
		log.Warn("streamer no longer exists on twitch")
	default:
		log.Debug("transient query failure, state preserved", zap.Error(err))
	}
	return nil
}
