// Package playback provides the broadcast scheduler and its playback state.
package playback

// State represents the playback state.
type State int

const (
	StatePaused  State = iota // Nothing is broadcast; initial state
	StatePlaying              // Chunks are read and broadcast every tick
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}
