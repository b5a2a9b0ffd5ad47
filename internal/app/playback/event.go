package playback

import (
	"time"

	"github.com/osa030/19cast/internal/domain/track"
)

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted EventType = iota // Track opened at offset 0
	EventTrackEnded                    // Zero-length read, track closed
	EventTrackFailed                   // Open or read failed, track skipped
	EventStateChanged                  // Playback state changed (play/pause)
	EventQueueEmpty                    // Nothing left to play, forced to paused
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackFailed:
		return "track_failed"
	case EventStateChanged:
		return "state_changed"
	case EventQueueEmpty:
		return "queue_empty"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type   EventType
	Track  track.Track // Affected track (zero for state events)
	State  State       // Playback state after the event
	Offset int64       // Bytes delivered from Track so far
	Err    error       // Cause for EventTrackFailed
	At     time.Time
}
