package filter

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19cast/internal/domain/track"
)

// ExtensionConfig represents the configuration for ExtensionFilter.
type ExtensionConfig struct {
	Extensions []string `yaml:"extensions" mapstructure:"extensions" default:"[\".mp3\"]" validate:"min=1,dive,startswith=."`
}

// ExtensionFilter rejects track names without an allowed extension or
// names that would address a file outside the library.
type ExtensionFilter struct {
	config *ExtensionConfig
}

// NewExtensionFilter creates a new extension filter.
func NewExtensionFilter() *ExtensionFilter {
	return &ExtensionFilter{}
}

func (f *ExtensionFilter) Name() string {
	return "extension_filter"
}

func (f *ExtensionFilter) Description() string {
	return "Rejects track names that are not plain file names with an allowed extension"
}

func (f *ExtensionFilter) ReturnCodes() []string {
	return []string{"invalid_extension", "invalid_name"}
}

func (f *ExtensionFilter) ValidateConfig(settings map[string]any) error {
	var config ExtensionConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	for i, ext := range config.Extensions {
		if strings.ContainsAny(ext, `/\`) {
			return errors.Newf("extension %q must not contain path separators", ext)
		}
		config.Extensions[i] = strings.ToLower(ext)
	}
	f.config = &config
	zlog.Info().Msgf("extension filter config: %+v", config)
	return nil
}

func (f *ExtensionFilter) Check(ctx context.Context, req Request) Result {
	if !track.ValidName(req.Track) {
		return Reject("invalid_name")
	}
	if f.config == nil {
		return Accept()
	}
	for _, ext := range f.config.Extensions {
		if track.HasExtension(req.Track, ext) {
			return Accept()
		}
	}
	return Reject("invalid_extension")
}

func init() {
	Register("extension_filter", func() Filter {
		return &ExtensionFilter{}
	})
}
