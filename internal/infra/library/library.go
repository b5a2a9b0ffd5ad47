// Package library provides the directory-backed track library.
package library

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/hajimehoshi/go-mp3"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19cast/internal/app/playback"
	"github.com/osa030/19cast/internal/domain/track"
)

// Errors
var (
	ErrInvalidName = errors.New("invalid track name")
	ErrNotFound    = errors.New("track not found")
)

// Config holds library configuration.
type Config struct {
	Dir           string // Directory holding the tracks
	Extension     string // Listed extension, matched case-insensitively
	MeasureDuration bool   // Measure the MP3 duration on open
}

// Library is a flat directory of tracks.
type Library struct {
	config Config

	mu       sync.Mutex
	cache    []string
	cached   bool
	gen      uint64 // Bumped on every invalidation
	watching bool

	afterScan func() // Test hook, runs between scan and cache store
}

// New creates a library over config.Dir, which must exist.
func New(config Config) (*Library, error) {
	info, err := os.Stat(config.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "stat tracks dir %s", config.Dir)
	}
	if !info.IsDir() {
		return nil, errors.Newf("tracks path is not a directory: %s", config.Dir)
	}
	return &Library{config: config}, nil
}

// file is an opened track.
type file struct {
	*os.File
	info track.Track
}

func (f *file) Info() track.Track {
	return f.info
}

// Open opens the named track. Names are plain file names inside the
// library directory; anything that could escape it is rejected.
func (l *Library) Open(ctx context.Context, name string) (playback.TrackFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !track.ValidName(name) {
		return nil, errors.Mark(errors.Wrapf(ErrInvalidName, "open %q", name), playback.ErrTrackIO)
	}

	path := filepath.Join(l.config.Dir, name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Mark(errors.Wrapf(ErrNotFound, "open %q", name), playback.ErrTrackIO)
		}
		return nil, errors.Mark(errors.Wrapf(err, "open %q", name), playback.ErrTrackIO)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Mark(errors.Wrapf(err, "stat %q", name), playback.ErrTrackIO)
	}
	if !stat.Mode().IsRegular() {
		_ = f.Close()
		return nil, errors.Mark(errors.Wrapf(ErrNotFound, "%q is not a regular file", name), playback.ErrTrackIO)
	}

	info := track.Track{Name: name, Size: stat.Size()}
	if l.config.MeasureDuration {
		d, err := measureDuration(f, stat.Size())
		if err != nil {
			zlog.Warn().Err(err).Msgf("library: duration measurement failed: track=%s", name)
		}
		info.Duration = d
	}
	return &file{File: f, info: info}, nil
}

// measureDuration decodes the MP3 frame headers to compute the duration.
func measureDuration(r io.ReaderAt, size int64) (time.Duration, error) {
	dec, err := mp3.NewDecoder(io.NewSectionReader(r, 0, size))
	if err != nil {
		return 0, errors.Wrap(err, "decode mp3 header")
	}
	if dec.SampleRate() <= 0 || dec.Length() <= 0 {
		return 0, errors.New("mp3 length unknown")
	}
	// Decoded output is 16-bit stereo: 4 bytes per sample.
	samples := dec.Length() / 4
	return time.Duration(samples) * time.Second / time.Duration(dec.SampleRate()), nil
}

// List returns the sorted names of the regular files carrying the
// configured extension. While Watch runs the result is cached.
func (l *Library) List(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	if l.cached {
		names := append([]string(nil), l.cache...)
		l.mu.Unlock()
		return names, nil
	}
	gen := l.gen
	l.mu.Unlock()

	names, err := l.scan(ctx)
	if err != nil {
		return nil, err
	}
	if l.afterScan != nil {
		l.afterScan()
	}

	// A change seen during the scan may not be in names
	l.mu.Lock()
	if l.watching && l.gen == gen {
		l.cache = append([]string(nil), names...)
		l.cached = true
	}
	l.mu.Unlock()
	return names, nil
}

func (l *Library) scan(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.config.Dir)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read tracks dir %s", l.config.Dir), playback.ErrListing)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		if !track.HasExtension(entry.Name(), l.config.Extension) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (l *Library) invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.cache = nil
	l.cached = false
}

// Watch caches listings and invalidates the cache whenever a matching
// file changes, until ctx is cancelled.
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create fsnotify watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(l.config.Dir); err != nil {
		return errors.Wrapf(err, "watch tracks dir %s", l.config.Dir)
	}

	l.mu.Lock()
	l.watching = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.watching = false
		l.mu.Unlock()
		l.invalidate()
	}()

	zlog.Info().Msgf("library: watching tracks dir: dir=%s", l.config.Dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !track.HasExtension(event.Name, l.config.Extension) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				zlog.Debug().Msgf("library: listing invalidated: op=%s file=%s", event.Op, filepath.Base(event.Name))
				l.invalidate()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			zlog.Warn().Err(err).Msg("library: watcher error")
			l.invalidate()
		}
	}
}
