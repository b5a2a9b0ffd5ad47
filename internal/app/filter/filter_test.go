package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionFilter_Check(t *testing.T) {
	tests := []struct {
		name         string
		settings     map[string]any
		track        string
		wantAccepted bool
		wantCode     string
	}{
		{
			name:         "default extension accepted",
			settings:     nil,
			track:        "intro.mp3",
			wantAccepted: true,
		},
		{
			name:         "default extension rejects wav",
			settings:     nil,
			track:        "intro.wav",
			wantAccepted: false,
			wantCode:     "invalid_extension",
		},
		{
			name:         "custom extensions",
			settings:     map[string]any{"extensions": []any{".ogg", ".MP3"}},
			track:        "intro.mp3",
			wantAccepted: true,
		},
		{
			name:         "path traversal",
			settings:     nil,
			track:        "../etc/passwd.mp3",
			wantAccepted: false,
			wantCode:     "invalid_name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewExtensionFilter()
			require.NoError(t, f.ValidateConfig(tt.settings))

			result := f.Check(context.Background(), Request{Track: tt.track})

			assert.Equal(t, tt.wantAccepted, result.Accepted,
				"ExtensionFilter.Check() accepted status mismatch")
			if !tt.wantAccepted {
				assert.Equal(t, tt.wantCode, result.Code,
					"ExtensionFilter.Check() rejection code mismatch")
			}
		})
	}
}

func TestExtensionFilter_ValidateConfig(t *testing.T) {
	f := NewExtensionFilter()
	assert.Error(t, f.ValidateConfig(map[string]any{"extensions": []any{"mp3"}}),
		"extensions must start with a dot")
	assert.Error(t, f.ValidateConfig(map[string]any{"extensions": []any{"./mp3"}}))
}

func TestQueueLimitFilter_Check(t *testing.T) {
	tests := []struct {
		name         string
		maxTracks    int
		queueLength  int
		wantAccepted bool
	}{
		{name: "room left", maxTracks: 3, queueLength: 2, wantAccepted: true},
		{name: "at limit", maxTracks: 3, queueLength: 3, wantAccepted: false},
		{name: "empty queue", maxTracks: 1, queueLength: 0, wantAccepted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewQueueLimitFilter()
			require.NoError(t, f.ValidateConfig(map[string]any{"max_tracks": tt.maxTracks}))

			result := f.Check(context.Background(), Request{Track: "a.mp3", QueueLength: tt.queueLength})

			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "queue_full", result.Code)
			}
		})
	}
}

func TestQueueLimitFilter_Defaults(t *testing.T) {
	f := NewQueueLimitFilter()
	require.NoError(t, f.ValidateConfig(nil))
	assert.Equal(t, 50, f.config.MaxTracks)

	assert.Error(t, NewQueueLimitFilter().ValidateConfig(map[string]any{"max_tracks": -1}))
}

func TestQueueLimitFilter_Unconfigured(t *testing.T) {
	f := NewQueueLimitFilter()
	result := f.Check(context.Background(), Request{Track: "a.mp3", QueueLength: 1000})
	assert.True(t, result.Accepted)
}

func TestChain_Execute(t *testing.T) {
	chain, err := NewChainFromConfig(map[string]Settings{
		"extension_filter":   {Enabled: true},
		"queue_limit_filter": {Enabled: true, Settings: map[string]any{"max_tracks": 1}},
	})
	require.NoError(t, err)
	require.Len(t, chain.Filters(), 2)

	ctx := context.Background()
	assert.True(t, chain.Execute(ctx, Request{Track: "a.mp3"}).Accepted)
	assert.Equal(t, "invalid_extension", chain.Execute(ctx, Request{Track: "a.txt"}).Code)
	assert.Equal(t, "queue_full", chain.Execute(ctx, Request{Track: "a.mp3", QueueLength: 1}).Code)
}

func TestChain_DisabledAndUnknown(t *testing.T) {
	chain, err := NewChainFromConfig(map[string]Settings{
		"extension_filter": {Enabled: false},
	})
	require.NoError(t, err)
	assert.Empty(t, chain.Filters())
	assert.True(t, chain.Execute(context.Background(), Request{Track: "anything"}).Accepted)

	_, err = NewChainFromConfig(map[string]Settings{
		"no_such_filter": {Enabled: true},
	})
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	registered := GetRegistered()
	assert.Contains(t, registered, "extension_filter")
	assert.Contains(t, registered, "queue_limit_filter")

	for name, factory := range registered {
		f := factory()
		assert.Equal(t, name, f.Name())
		assert.NotEmpty(t, f.Description())
		assert.NotEmpty(t, f.ReturnCodes())
	}
}
