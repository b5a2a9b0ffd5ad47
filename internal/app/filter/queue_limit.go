package filter

import (
	"context"

	zlog "github.com/rs/zerolog/log"
)

// QueueLimitConfig represents the configuration for QueueLimitFilter.
type QueueLimitConfig struct {
	MaxTracks int `yaml:"max_tracks" mapstructure:"max_tracks" default:"50" validate:"gte=1"`
}

// QueueLimitFilter rejects requests once the playlist holds MaxTracks tracks.
type QueueLimitFilter struct {
	config *QueueLimitConfig
}

// NewQueueLimitFilter creates a new queue limit filter.
func NewQueueLimitFilter() *QueueLimitFilter {
	return &QueueLimitFilter{}
}

func (f *QueueLimitFilter) Name() string {
	return "queue_limit_filter"
}

func (f *QueueLimitFilter) Description() string {
	return "Rejects requests when the playlist is full"
}

func (f *QueueLimitFilter) ReturnCodes() []string {
	return []string{"queue_full"}
}

func (f *QueueLimitFilter) ValidateConfig(settings map[string]any) error {
	var config QueueLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = &config
	zlog.Info().Msgf("queue limit filter config: %+v", config)
	return nil
}

func (f *QueueLimitFilter) Check(ctx context.Context, req Request) Result {
	// If config is not set, accept all requests
	if f.config == nil {
		return Accept()
	}
	if req.QueueLength >= f.config.MaxTracks {
		return Reject("queue_full")
	}
	return Accept()
}

func init() {
	Register("queue_limit_filter", func() Filter {
		return &QueueLimitFilter{}
	})
}
