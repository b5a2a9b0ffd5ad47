package control

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/osa030/19cast/internal/app/playback"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line    string
		want    playback.Command
		wantErr error
	}{
		{line: "/list", want: playback.List()},
		{line: "/play", want: playback.Play()},
		{line: "/pause", want: playback.Pause()},
		{line: "/status", want: playback.QueryStatus()},
		{line: "/schedule a.mp3", want: playback.Schedule("a.mp3")},
		{line: "/schedule my song.mp3", want: playback.Schedule("my song.mp3")},
		{line: "/schedule", wantErr: ErrMissingArgument},
		{line: "/schedule ", wantErr: ErrMissingArgument},
		{line: "/play now", wantErr: ErrUnknownCommand},
		{line: "/PLAY", wantErr: ErrUnknownCommand},
		{line: "play", wantErr: ErrUnknownCommand},
		{line: "", wantErr: ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "Parse(%q) error = %v", tt.line, err)
				assert.True(t, errors.Is(err, ErrProtocol))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProtocolReply(t *testing.T) {
	_, unknown := Parse("bogus")
	_, missing := Parse("/schedule")

	assert.Equal(t, ReplyUnknownCommand, ProtocolReply(unknown))
	assert.Equal(t, ReplyMissingName, ProtocolReply(missing))
	assert.Equal(t, ReplyLineTooLong, ProtocolReply(protocolError(ErrLineTooLong)))

	assert.False(t, errors.Is(ErrUnknownCommand, ErrLineTooLong))
	assert.False(t, errors.Is(unknown, ErrLineTooLong))
	assert.False(t, errors.Is(missing, ErrUnknownCommand))
}

func TestFormat(t *testing.T) {
	for _, cmd := range []playback.Command{
		playback.List(), playback.Play(), playback.Pause(), playback.QueryStatus(), playback.Schedule("a b.mp3"),
	} {
		got, err := Parse(Format(cmd))
		assert.NoError(t, err)
		assert.Equal(t, cmd, got)
	}
}
