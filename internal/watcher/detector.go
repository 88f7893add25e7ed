package watcher

import "github.com/frostholt/discord-twitch-notify/api"

// Transition classifies what one sweep observed for one entry.
type Transition int

const (
	// NoChange: observed liveness matches the recorded state.
	NoChange Transition = iota
	// WentLive: offline -> live edge; the only transition that notifies.
	WentLive
	// WentOffline: live -> offline edge; state update, never a notification.
	WentOffline
	// SuppressedLive: offline -> live edge while the entry or guild is
	// paused. Liveness is still recorded so the next offline edge and a
	// later unpause behave correctly.
	SuppressedLive
	// Inconclusive: the query failed; persisted state must stay untouched.
	Inconclusive
)

func (t Transition) String() string {
	switch t {
	case WentLive:
		return "went_live"
	case WentOffline:
		return "went_offline"
	case SuppressedLive:
		return "suppressed_live"
	case Inconclusive:
		return "inconclusive"
	default:
		return "no_change"
	}
}

// Classify compares recorded liveness against a freshly queried snapshot.
// A query failure is never mistaken for "went offline" and never produces a
// duplicate "went live".
func Classify(wasLive bool, snap *api.StreamSnapshot, queryErr error, entryPaused, guildPaused bool) Transition {
	if queryErr != nil {
		return Inconclusive
	}
	liveNow := snap != nil && snap.LiveNow
	switch {
	case !wasLive && liveNow:
		if entryPaused || guildPaused {
			return SuppressedLive
		}
		return WentLive
	case wasLive && !liveNow:
		return WentOffline
	default:
		return NoChange
	}
}
