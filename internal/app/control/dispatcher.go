package control

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19cast/internal/app/playback"
)

// Replies
const (
	ReplyUnknownCommand = "Unknown command\n"
	ReplyLineTooLong    = "Line too long\n"
	ReplyMissingName    = "Missing track name\n"
	ListTerminator      = "."
)

// Player is the internal command surface of the scheduler.
type Player interface {
	Do(ctx context.Context, cmd playback.Command) (playback.Result, error)
}

// Dispatcher applies control lines to a Player and renders the replies.
type Dispatcher struct {
	player Player
}

// NewDispatcher creates a dispatcher for player.
func NewDispatcher(player Player) *Dispatcher {
	return &Dispatcher{player: player}
}

// Dispatch handles one line and returns the reply to send, which is empty
// for commands that only change state.
func (d *Dispatcher) Dispatch(ctx context.Context, line string) string {
	cmd, err := Parse(line)
	if err != nil {
		zlog.Debug().Msgf("control: rejected line: line=%q err=%v", line, err)
		return ProtocolReply(err)
	}

	res, err := d.player.Do(ctx, cmd)
	if err != nil {
		return errorReply(cmd, err)
	}

	switch cmd.Kind {
	case playback.CommandList:
		return FormatList(res.Tracks)
	case playback.CommandStatus:
		return FormatStatus(*res.Status)
	default:
		return ""
	}
}

// ProtocolReply renders a protocol error.
func ProtocolReply(err error) string {
	switch {
	case errors.Is(err, ErrLineTooLong):
		return ReplyLineTooLong
	case errors.Is(err, ErrMissingArgument):
		return ReplyMissingName
	default:
		return ReplyUnknownCommand
	}
}

func errorReply(cmd playback.Command, err error) string {
	var rejected *playback.RejectedError
	if errors.As(err, &rejected) {
		return "Rejected: " + rejected.Code + "\n"
	}
	if errors.Is(err, playback.ErrListing) {
		zlog.Error().Err(err).Msg("control: listing failed")
	} else {
		zlog.Warn().Err(err).Msgf("control: command failed: command=%s", cmd.Kind)
	}
	return "ERR " + oneLine(err.Error()) + "\n"
}

// FormatList renders track names one per line followed by the terminator line.
func FormatList(names []string) string {
	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('\n')
	}
	b.WriteString(ListTerminator + "\n")
	return b.String()
}

// FormatStatus renders the /status reply.
func FormatStatus(st playback.Status) string {
	name := st.Track
	if name == "" {
		name = "-"
	}
	return fmt.Sprintf("state=%s track=%s offset=%d queue=%d listeners=%d\n",
		st.State, name, st.Offset, len(st.Queue), len(st.Listeners))
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
