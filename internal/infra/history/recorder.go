package history

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19cast/internal/app/playback"
)

// Recorder turns scheduler events into plays.
type Recorder struct {
	store   *Store
	current *Play
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

// Handle applies one event. Events other than track lifecycle events
// are ignored.
func (r *Recorder) Handle(ctx context.Context, ev playback.Event) error {
	switch ev.Type {
	case playback.EventTrackStarted:
		r.current = &Play{Track: ev.Track.Name, StartedAt: ev.At}
		return nil

	case playback.EventTrackEnded:
		return r.finish(ctx, ev, OutcomeCompleted)

	case playback.EventTrackFailed:
		return r.finish(ctx, ev, OutcomeFailed)

	default:
		return nil
	}
}

func (r *Recorder) finish(ctx context.Context, ev playback.Event, outcome Outcome) error {
	play := r.current
	r.current = nil
	if play == nil || play.Track != ev.Track.Name {
		// Failed before it started, e.g. the file could not be opened.
		play = &Play{Track: ev.Track.Name, StartedAt: ev.At}
	}
	play.EndedAt = ev.At
	play.Bytes = ev.Offset
	play.Outcome = outcome
	if ev.Err != nil {
		play.Error = ev.Err.Error()
	}
	return r.store.Add(ctx, play)
}

// Run records events until the channel is closed or ctx is cancelled.
func (r *Recorder) Run(ctx context.Context, events <-chan playback.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := r.Handle(ctx, ev); err != nil {
				zlog.Error().Err(err).Msgf("history: failed to record event: type=%s track=%s", ev.Type, ev.Track.Name)
			}
		}
	}
}
