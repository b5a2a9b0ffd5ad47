package control

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/19cast/internal/app/playback"
)

// Errors. Each protocol error is returned marked with ErrProtocol.
var (
	ErrProtocol        = errors.New("protocol error")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrLineTooLong     = errors.New("line too long")
	ErrMissingArgument = errors.New("missing track name")
)

func protocolError(err error) error {
	return errors.Mark(err, ErrProtocol)
}

// Protocol command words.
const (
	CmdList     = "/list"
	CmdPlay     = "/play"
	CmdPause    = "/pause"
	CmdSchedule = "/schedule"
	CmdStatus   = "/status"
)

// Parse maps a control line to a scheduler command. The track name of
// /schedule is the remainder of the line after the first space.
func Parse(line string) (playback.Command, error) {
	word, rest, hasArg := strings.Cut(line, " ")
	switch word {
	case CmdSchedule:
		if !hasArg || rest == "" {
			return playback.Command{}, protocolError(ErrMissingArgument)
		}
		return playback.Schedule(rest), nil
	case CmdList:
		if !hasArg {
			return playback.List(), nil
		}
	case CmdPlay:
		if !hasArg {
			return playback.Play(), nil
		}
	case CmdPause:
		if !hasArg {
			return playback.Pause(), nil
		}
	case CmdStatus:
		if !hasArg {
			return playback.QueryStatus(), nil
		}
	}
	return playback.Command{}, protocolError(ErrUnknownCommand)
}

// Format renders cmd back into its control line.
func Format(cmd playback.Command) string {
	switch cmd.Kind {
	case playback.CommandList:
		return CmdList
	case playback.CommandPlay:
		return CmdPlay
	case playback.CommandPause:
		return CmdPause
	case playback.CommandSchedule:
		return CmdSchedule + " " + cmd.Track
	case playback.CommandStatus:
		return CmdStatus
	default:
		return ""
	}
}
