package control

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/osa030/19cast/internal/app/playback"
	"github.com/osa030/19cast/internal/domain/listener"
)

type fakePlayer struct {
	mu       sync.Mutex
	commands []playback.Command
	tracks   []string
	status   playback.Status
	err      error
}

func (p *fakePlayer) Do(_ context.Context, cmd playback.Command) (playback.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = append(p.commands, cmd)
	if p.err != nil {
		return playback.Result{}, p.err
	}
	switch cmd.Kind {
	case playback.CommandList:
		return playback.Result{Tracks: p.tracks}, nil
	case playback.CommandStatus:
		st := p.status
		return playback.Result{Status: &st}, nil
	}
	return playback.Result{}, nil
}

func (p *fakePlayer) received() []playback.Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]playback.Command(nil), p.commands...)
}

func TestDispatcher_Dispatch(t *testing.T) {
	tests := []struct {
		name    string
		player  *fakePlayer
		line    string
		want    string
		applied bool
	}{
		{
			name:    "play has no reply",
			player:  &fakePlayer{},
			line:    "/play",
			want:    "",
			applied: true,
		},
		{
			name:    "schedule has no reply",
			player:  &fakePlayer{},
			line:    "/schedule a.mp3",
			want:    "",
			applied: true,
		},
		{
			name:    "list",
			player:  &fakePlayer{tracks: []string{"a.mp3", "b.mp3"}},
			line:    "/list",
			want:    "a.mp3\nb.mp3\n.\n",
			applied: true,
		},
		{
			name:    "empty list",
			player:  &fakePlayer{},
			line:    "/list",
			want:    ".\n",
			applied: true,
		},
		{
			name:    "unknown command",
			player:  &fakePlayer{},
			line:    "/stop",
			want:    "Unknown command\n",
			applied: false,
		},
		{
			name:    "missing name",
			player:  &fakePlayer{},
			line:    "/schedule",
			want:    "Missing track name\n",
			applied: false,
		},
		{
			name:    "listing failure",
			player:  &fakePlayer{err: errors.Mark(errors.New("open tracks: permission denied"), playback.ErrListing)},
			line:    "/list",
			want:    "ERR open tracks: permission denied\n",
			applied: true,
		},
		{
			name:    "rejected",
			player:  &fakePlayer{err: &playback.RejectedError{Track: "a.wav", Code: "invalid_extension"}},
			line:    "/schedule a.wav",
			want:    "Rejected: invalid_extension\n",
			applied: true,
		},
		{
			name: "status",
			player: &fakePlayer{status: playback.Status{
				State:     playback.StatePlaying,
				Track:     "a.mp3",
				Offset:    8192,
				Queue:     []string{"b.mp3"},
				Listeners: []listener.Session{{ID: "1"}, {ID: "2"}},
			}},
			line:    "/status",
			want:    "state=playing track=a.mp3 offset=8192 queue=1 listeners=2\n",
			applied: true,
		},
		{
			name:    "idle status",
			player:  &fakePlayer{},
			line:    "/status",
			want:    "state=paused track=- offset=0 queue=0 listeners=0\n",
			applied: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(tt.player)
			got := d.Dispatch(context.Background(), tt.line)
			assert.Equal(t, tt.want, got)
			if tt.applied {
				assert.Len(t, tt.player.received(), 1)
			} else {
				assert.Empty(t, tt.player.received())
			}
		})
	}
}

func TestDispatcher_PauseIsIdempotent(t *testing.T) {
	p := &fakePlayer{}
	d := NewDispatcher(p)

	assert.Empty(t, d.Dispatch(context.Background(), "/pause"))
	assert.Empty(t, d.Dispatch(context.Background(), "/pause"))
	assert.Equal(t, []playback.Command{playback.Pause(), playback.Pause()}, p.received())
}
