package automation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19cast/internal/app/playback"
)

type recordingPlayer struct {
	mu       sync.Mutex
	commands []playback.Command
	err      error
}

func (p *recordingPlayer) Do(_ context.Context, cmd playback.Command) (playback.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = append(p.commands, cmd)
	if cmd.Kind == playback.CommandStatus {
		return playback.Result{Status: &playback.Status{}}, p.err
	}
	return playback.Result{}, p.err
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		wantErr string
	}{
		{
			name: "valid",
			entries: []Entry{
				{Schedule: "0 9 * * *", Command: "/schedule opening.mp3"},
				{Schedule: "@hourly", Command: "/status"},
			},
		},
		{
			name:    "bad schedule",
			entries: []Entry{{Schedule: "every day", Command: "/play"}},
			wantErr: "invalid schedule",
		},
		{
			name:    "bad command",
			entries: []Entry{{Schedule: "* * * * *", Command: "/stop"}},
			wantErr: "invalid command",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.entries, &recordingPlayer{})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.entries), r.Len())
		})
	}
}

func TestRunner_Fire(t *testing.T) {
	player := &recordingPlayer{}
	r, err := New(nil, player)
	require.NoError(t, err)

	r.fire(context.Background(), playback.Schedule("opening.mp3"))
	r.fire(context.Background(), playback.QueryStatus())

	player.err = errors.New("scheduler is not running")
	r.fire(context.Background(), playback.Play())

	assert.Equal(t, []playback.Command{
		playback.Schedule("opening.mp3"),
		playback.QueryStatus(),
		playback.Play(),
	}, player.commands)
}

func TestRunner_RunStops(t *testing.T) {
	r, err := New([]Entry{{Schedule: "0 0 1 1 *", Command: "/play"}}, &recordingPlayer{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}
