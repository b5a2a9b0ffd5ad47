package playback

import (
	"time"

	"github.com/osa030/19cast/internal/domain/listener"
)

// CommandKind is the closed set of operations the scheduler accepts.
type CommandKind int

const (
	CommandPlay     CommandKind = iota // state <- playing
	CommandPause                       // state <- paused
	CommandSchedule                    // append Track to the playlist
	CommandList                        // enumerate the library
	CommandStatus                      // snapshot of the scheduler
)

// String returns the string representation of the command kind.
func (k CommandKind) String() string {
	switch k {
	case CommandPlay:
		return "play"
	case CommandPause:
		return "pause"
	case CommandSchedule:
		return "schedule"
	case CommandList:
		return "list"
	case CommandStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Command is one request to the scheduler.
type Command struct {
	Kind  CommandKind
	Track string // Only for CommandSchedule
}

// Play returns a play command.
func Play() Command { return Command{Kind: CommandPlay} }

// Pause returns a pause command.
func Pause() Command { return Command{Kind: CommandPause} }

// Schedule returns a schedule command for name.
func Schedule(name string) Command { return Command{Kind: CommandSchedule, Track: name} }

// List returns a list command.
func List() Command { return Command{Kind: CommandList} }

// QueryStatus returns a status command.
func QueryStatus() Command { return Command{Kind: CommandStatus} }

// Result carries the reply of a command.
type Result struct {
	Tracks []string // CommandList
	Status *Status  // CommandStatus
}

// Status is a snapshot of the scheduler state.
type Status struct {
	State     State
	Track     string        // Current track, empty if none is open
	Offset    int64         // Bytes delivered from the current track
	Size      int64         // Size of the current track
	Position  time.Duration // Estimated position in the current track
	Duration  time.Duration // Measured duration of the current track
	Queue     []string      // Playlist in play order
	Listeners []listener.Session
}
