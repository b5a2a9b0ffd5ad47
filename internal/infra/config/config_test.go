package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "")
	t.Setenv("JUKEBOX_TRACKS_DIR", "")

	cfg, err := Parse([]byte("admin:\n  token: secret\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ":3000", cfg.Control.Addr)
	assert.Equal(t, 4096, cfg.MaxLineBytes())
	assert.Equal(t, "tracks", cfg.Library.Dir)
	assert.Equal(t, ".mp3", cfg.Library.Extension)
	assert.True(t, cfg.WatchLibrary())
	assert.True(t, cfg.MeasureDuration())
	assert.Equal(t, 100*time.Millisecond, cfg.TickInterval())
	assert.Equal(t, 4096, cfg.Playback.ChunkSize)
	assert.Equal(t, 4, cfg.Broadcast.SinkQueueChunks)
	assert.Equal(t, 5*time.Second, cfg.BroadcastWriteTimeout())
	assert.False(t, cfg.Broadcast.WebSocket)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestParse_ExplicitValues(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "")
	t.Setenv("JUKEBOX_TRACKS_DIR", "")

	yaml := `
admin:
  token: secret
control:
  max_line_bytes: 0
library:
  watch: false
broadcast:
  websocket: true
automation:
  - schedule: "0 9 * * *"
    command: /play
filters:
  queue_limit_filter:
    enabled: true
    settings:
      max_tracks: 10
`
	cfg, err := Parse([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.MaxLineBytes(), "explicit zero disables the limit")
	assert.False(t, cfg.WatchLibrary())
	assert.True(t, cfg.Broadcast.WebSocket)
	require.Len(t, cfg.Automation, 1)
	assert.Equal(t, "/play", cfg.Automation[0].Command)
	assert.True(t, cfg.IsFilterEnabled("queue_limit_filter"))
	assert.False(t, cfg.IsFilterEnabled("extension_filter"))
	assert.Equal(t, 10, cfg.Filters["queue_limit_filter"].Settings["max_tracks"])
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "from-env")
	t.Setenv("JUKEBOX_TRACKS_DIR", "/srv/music")

	cfg, err := Parse([]byte("admin:\n  token: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Admin.Token)
	assert.Equal(t, "/srv/music", cfg.Library.Dir)
}

func TestConfig_Validate(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "")
	t.Setenv("JUKEBOX_TRACKS_DIR", "")

	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "missing admin token",
			yaml:    "server:\n  addr: :9000\n",
			wantErr: true,
			errMsg:  "Token",
		},
		{
			name:    "tick interval too small",
			yaml:    "admin:\n  token: x\nplayback:\n  tick_interval_ms: 1\n",
			wantErr: true,
			errMsg:  "TickIntervalMs",
		},
		{
			name:    "extension without dot",
			yaml:    "admin:\n  token: x\nlibrary:\n  extension: mp3\n",
			wantErr: true,
			errMsg:  "Extension",
		},
		{
			name:    "invalid cron",
			yaml:    "admin:\n  token: x\nautomation:\n  - schedule: every day\n    command: /play\n",
			wantErr: true,
			errMsg:  "invalid schedule",
		},
		{
			name:    "automation command without slash",
			yaml:    "admin:\n  token: x\nautomation:\n  - schedule: \"* * * * *\"\n    command: play\n",
			wantErr: true,
			errMsg:  "Command",
		},
		{
			name:    "invalid log level",
			yaml:    "admin:\n  token: x\nlog:\n  level: loud\n",
			wantErr: true,
			errMsg:  "Level",
		},
		{
			name:    "valid",
			yaml:    "admin:\n  token: x\nlog:\n  level: debug\n",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "")
	t.Setenv("JUKEBOX_TRACKS_DIR", "")

	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("admin:\n  token: secret\nserver:\n  addr: :9090\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
