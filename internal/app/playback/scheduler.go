package playback

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19cast/internal/app/broadcast"
	"github.com/osa030/19cast/internal/app/filter"
	"github.com/osa030/19cast/internal/domain/listener"
	"github.com/osa030/19cast/internal/domain/playlist"
	"github.com/osa030/19cast/internal/domain/track"
)

const (
	DefaultTickInterval = 100 * time.Millisecond
	DefaultChunkSize    = 4096
	DefaultEventBuffer  = 32

	inboxSize = 64
)

// Library opens and enumerates tracks.
type Library interface {
	Open(ctx context.Context, name string) (TrackFile, error)
	List(ctx context.Context) ([]string, error)
}

// Config holds scheduler configuration.
type Config struct {
	TickInterval time.Duration    // Period between chunk reads
	ChunkSize    int              // Bytes requested per read
	EventBuffer  int              // Capacity of the event channel
	Ticks        <-chan time.Time // Replaces the internal ticker when set
}

// Scheduler drives playback. All of its state is owned by the goroutine
// running Run; other goroutines talk to it through messages.
type Scheduler struct {
	config  Config
	library Library
	filters *filter.Chain

	// Owned by the Run goroutine
	state    State
	playlist *playlist.Playlist
	cursor   Cursor
	hub      *broadcast.Hub
	busy     bool   // An open or read is in flight
	opening  string // Track being opened

	inbox   chan any
	results chan any
	events  chan Event
	done    chan struct{}
	running atomic.Bool
}

type commandRequest struct {
	cmd   Command
	reply chan commandReply
}

type commandReply struct {
	result Result
	err    error
}

type attachRequest struct {
	sink    broadcast.Sink
	session *listener.Session
}

type detachRequest struct {
	id string
}

type openResult struct {
	name string
	file TrackFile
	err  error
}

type readResult struct {
	gen    uint64
	offset int64
	data   []byte
	err    error
}

type listResult struct {
	reply chan commandReply
	names []string
	err   error
}

// NewScheduler creates a paused scheduler with an empty playlist.
// A nil filter chain accepts every request.
func NewScheduler(config Config, library Library, filters *filter.Chain) *Scheduler {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = DefaultEventBuffer
	}
	if filters == nil {
		filters = filter.NewChain()
	}
	return &Scheduler{
		config:   config,
		library:  library,
		filters:  filters,
		state:    StatePaused,
		playlist: playlist.New(),
		hub:      broadcast.NewHub(),
		inbox:    make(chan any, inboxSize),
		results:  make(chan any, inboxSize),
		events:   make(chan Event, config.EventBuffer),
		done:     make(chan struct{}),
	}
}

// Events returns the event channel. It is closed when Run returns.
func (s *Scheduler) Events() <-chan Event {
	return s.events
}

// Done is closed when Run returns.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Run processes ticks and messages until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.shutdown()

	ticks := s.config.Ticks
	if ticks == nil {
		ticker := time.NewTicker(s.config.TickInterval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	zlog.Info().Msgf("playback: scheduler started: tick=%v chunk=%d", s.config.TickInterval, s.config.ChunkSize)
	for {
		select {
		case <-ctx.Done():
			zlog.Info().Msg("playback: scheduler stopping")
			return nil
		case <-ticks:
			s.tick(ctx)
		case msg := <-s.inbox:
			s.handle(ctx, msg)
		case msg := <-s.results:
			s.handle(ctx, msg)
		}
	}
}

func (s *Scheduler) shutdown() {
	if err := s.cursor.Close(); err != nil {
		zlog.Warn().Err(err).Msg("playback: failed to close track on shutdown")
	}
	close(s.done)
	close(s.events)
}

// Do submits cmd and waits for its reply.
func (s *Scheduler) Do(ctx context.Context, cmd Command) (Result, error) {
	req := commandRequest{cmd: cmd, reply: make(chan commandReply, 1)}
	if err := s.post(ctx, req); err != nil {
		return Result{}, err
	}
	select {
	case r := <-req.reply:
		return r.result, r.err
	case <-s.done:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Play switches to the playing state.
func (s *Scheduler) Play(ctx context.Context) error {
	_, err := s.Do(ctx, Play())
	return err
}

// Pause switches to the paused state.
func (s *Scheduler) Pause(ctx context.Context) error {
	_, err := s.Do(ctx, Pause())
	return err
}

// Schedule appends name to the playlist.
func (s *Scheduler) Schedule(ctx context.Context, name string) error {
	_, err := s.Do(ctx, Schedule(name))
	return err
}

// List enumerates the track library.
func (s *Scheduler) List(ctx context.Context) ([]string, error) {
	res, err := s.Do(ctx, List())
	if err != nil {
		return nil, err
	}
	return res.Tracks, nil
}

// Status returns a snapshot of the scheduler.
func (s *Scheduler) Status(ctx context.Context) (Status, error) {
	res, err := s.Do(ctx, QueryStatus())
	if err != nil {
		return Status{}, err
	}
	return *res.Status, nil
}

// Attach registers sink with the broadcast hub.
func (s *Scheduler) Attach(ctx context.Context, sink broadcast.Sink, session *listener.Session) error {
	return s.post(ctx, attachRequest{sink: sink, session: session})
}

// Detach unregisters the sink with the given id. It does not block once
// the scheduler has stopped.
func (s *Scheduler) Detach(id string) {
	select {
	case s.inbox <- detachRequest{id: id}:
	case <-s.done:
	}
}

func (s *Scheduler) post(ctx context.Context, msg any) error {
	select {
	case s.inbox <- msg:
		return nil
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// spawn runs fn off the loop and posts its result back. Results that
// arrive after shutdown are released.
func (s *Scheduler) spawn(fn func() any) {
	go func() {
		msg := fn()
		select {
		case s.results <- msg:
		case <-s.done:
			if r, ok := msg.(openResult); ok && r.file != nil {
				_ = r.file.Close()
			}
		}
	}()
}

func (s *Scheduler) handle(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case commandRequest:
		s.apply(ctx, m)
	case attachRequest:
		s.hub.Add(m.sink, m.session)
		zlog.Info().Msgf("playback: listener attached: id=%s listeners=%d", m.sink.ID(), s.hub.Len())
	case detachRequest:
		if s.hub.Remove(m.id) {
			zlog.Info().Msgf("playback: listener detached: id=%s listeners=%d", m.id, s.hub.Len())
		}
	case openResult:
		s.onOpened(ctx, m)
	case readResult:
		s.onRead(m)
	case listResult:
		if m.err != nil {
			m.reply <- commandReply{err: m.err}
			return
		}
		m.reply <- commandReply{result: Result{Tracks: m.names}}
	default:
		zlog.Warn().Msgf("playback: unexpected message: %T", msg)
	}
}

func (s *Scheduler) apply(ctx context.Context, req commandRequest) {
	switch req.cmd.Kind {
	case CommandPlay:
		s.setState(StatePlaying)
		req.reply <- commandReply{}

	case CommandPause:
		s.setState(StatePaused)
		req.reply <- commandReply{}

	case CommandSchedule:
		req.reply <- commandReply{err: s.schedule(ctx, req.cmd.Track)}

	case CommandList:
		reply := req.reply
		s.spawn(func() any {
			names, err := s.library.List(ctx)
			if err != nil && !errors.Is(err, ErrListing) {
				err = errors.Mark(err, ErrListing)
			}
			return listResult{reply: reply, names: names, err: err}
		})

	case CommandStatus:
		status := s.status()
		req.reply <- commandReply{result: Result{Status: &status}}

	default:
		req.reply <- commandReply{err: errors.Newf("unknown command kind: %d", req.cmd.Kind)}
	}
}

func (s *Scheduler) schedule(ctx context.Context, name string) error {
	result := s.filters.Execute(ctx, filter.Request{Track: name, QueueLength: s.playlist.Len()})
	if !result.Accepted {
		zlog.Info().Msgf("playback: schedule rejected: track=%s code=%s", name, result.Code)
		return &RejectedError{Track: name, Code: result.Code}
	}

	// An empty playlist while paused starts playback, even with a track open
	wasEmpty := s.playlist.IsEmpty()
	s.playlist.Push(name)
	zlog.Info().Msgf("playback: track scheduled: track=%s queue=%d", name, s.playlist.Len())

	if wasEmpty && s.state == StatePaused {
		s.setState(StatePlaying)
	}
	return nil
}

func (s *Scheduler) status() Status {
	info := s.cursor.Track()
	return Status{
		State:     s.state,
		Track:     info.Name,
		Offset:    s.cursor.Offset(),
		Size:      info.Size,
		Position:  info.PositionAt(s.cursor.Offset()),
		Duration:  info.Duration,
		Queue:     s.playlist.Names(),
		Listeners: s.hub.Listeners(),
	}
}

func (s *Scheduler) setState(state State) {
	if s.state == state {
		return
	}
	zlog.Info().Msgf("playback: state changed: %s -> %s", s.state, state)
	s.state = state
	s.sendEvent(Event{Type: EventStateChanged})
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.state != StatePlaying {
		return
	}
	if s.busy {
		zlog.Debug().Msg("playback: previous i/o still in flight, skipping tick")
		return
	}

	if s.cursor.Active() {
		s.readNext(ctx)
		return
	}

	name, ok := s.playlist.Pop()
	if !ok {
		zlog.Info().Msg("playback: playlist exhausted, pausing")
		s.setState(StatePaused)
		s.sendEvent(Event{Type: EventQueueEmpty})
		return
	}
	s.openTrack(ctx, name)
}

func (s *Scheduler) openTrack(ctx context.Context, name string) {
	s.busy = true
	s.opening = name
	zlog.Debug().Msgf("playback: opening track: track=%s", name)
	s.spawn(func() any {
		f, err := s.library.Open(ctx, name)
		if err != nil && !errors.Is(err, ErrTrackIO) {
			err = errors.Mark(err, ErrTrackIO)
		}
		return openResult{name: name, file: f, err: err}
	})
}

func (s *Scheduler) onOpened(ctx context.Context, r openResult) {
	s.busy = false
	s.opening = ""

	if r.err != nil {
		zlog.Error().Err(r.err).Msgf("playback: failed to open track: track=%s", r.name)
		s.sendEvent(Event{Type: EventTrackFailed, Track: track.Track{Name: r.name}, Err: r.err})
		return
	}

	s.cursor.Open(r.file)
	info := s.cursor.Track()
	zlog.Info().Msgf("playback: track started: track=%s size=%d duration=%v", info.Name, info.Size, info.Duration)
	s.sendEvent(Event{Type: EventTrackStarted, Track: info})

	if s.state == StatePlaying {
		s.readNext(ctx)
	}
}

func (s *Scheduler) readNext(ctx context.Context) {
	s.busy = true
	file := s.cursor.file
	gen := s.cursor.Generation()
	offset := s.cursor.Offset()
	size := s.config.ChunkSize
	s.spawn(func() any {
		data, err := readChunk(file, offset, size)
		return readResult{gen: gen, offset: offset, data: data, err: err}
	})
}

func (s *Scheduler) onRead(r readResult) {
	s.busy = false

	if !s.cursor.Active() || r.gen != s.cursor.Generation() || r.offset != s.cursor.Offset() {
		zlog.Debug().Msg("playback: discarding stale read")
		return
	}

	info := s.cursor.Track()
	if r.err != nil {
		zlog.Error().Err(r.err).Msgf("playback: read failed, skipping track: track=%s offset=%d", info.Name, r.offset)
		s.sendEvent(Event{Type: EventTrackFailed, Track: info, Offset: r.offset, Err: r.err})
		s.closeTrack()
		return
	}

	if len(r.data) == 0 {
		zlog.Info().Msgf("playback: track ended: track=%s bytes=%d", info.Name, r.offset)
		s.sendEvent(Event{Type: EventTrackEnded, Track: info, Offset: r.offset})
		s.closeTrack()
		return
	}

	if s.state != StatePlaying {
		zlog.Debug().Msgf("playback: paused while reading, chunk discarded: track=%s offset=%d", info.Name, r.offset)
		return
	}

	s.cursor.Advance(len(r.data))
	stats := s.hub.Broadcast(r.data)
	if stats.Dropped > 0 || stats.Evicted > 0 {
		zlog.Debug().Msgf("playback: chunk fan-out: delivered=%d dropped=%d evicted=%d",
			stats.Delivered, stats.Dropped, stats.Evicted)
	}
}

func (s *Scheduler) closeTrack() {
	if err := s.cursor.Close(); err != nil {
		zlog.Warn().Err(err).Msg("playback: failed to close track")
	}
}

func (s *Scheduler) sendEvent(event Event) {
	event.State = s.state
	if event.At.IsZero() {
		event.At = time.Now()
	}
	select {
	case s.events <- event:
	default:
		zlog.Warn().Msgf("playback: event channel full, dropping event: type=%s", event.Type)
	}
}

// readChunk reads up to size bytes at offset. An empty slice means the
// track is exhausted.
func readChunk(f io.ReaderAt, offset int64, size int) ([]byte, error) {
	buf := make([]byte, size)
	n, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Mark(errors.Wrapf(err, "read at offset %d", offset), ErrTrackIO)
	}
	return buf[:n], nil
}
