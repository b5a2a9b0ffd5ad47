package connect

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/19cast/internal/app/playback"
	"github.com/osa030/19cast/internal/infra/history"
)

// Procedure paths of the ControlService.
const (
	ControlServiceName = "jukebox.v1.ControlService"

	PlayProcedure     = "/" + ControlServiceName + "/Play"
	PauseProcedure    = "/" + ControlServiceName + "/Pause"
	ScheduleProcedure = "/" + ControlServiceName + "/Schedule"
	ListProcedure     = "/" + ControlServiceName + "/List"
	StatusProcedure   = "/" + ControlServiceName + "/Status"
	HistoryProcedure  = "/" + ControlServiceName + "/History"

	// RejectCodeHeader carries the filter code of a rejected schedule.
	RejectCodeHeader = "X-Reject-Code"

	defaultHistoryLimit = 20
)

// Player is the scheduler's command surface.
type Player interface {
	Do(ctx context.Context, cmd playback.Command) (playback.Result, error)
}

// HistorySource returns recent plays.
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]history.Play, error)
}

// ControlService implements the ControlService RPC.
type ControlService struct {
	player       Player
	history      HistorySource
	historyLimit int
}

// NewControlService creates a ControlService. history may be nil when the
// play history is disabled.
func NewControlService(player Player, history HistorySource) *ControlService {
	return &ControlService{
		player:       player,
		history:      history,
		historyLimit: defaultHistoryLimit,
	}
}

// SetHistoryLimit sets the number of plays History returns when the
// request does not name a limit.
func (s *ControlService) SetHistoryLimit(limit int) {
	if limit > 0 {
		s.historyLimit = limit
	}
}

type scheduleArgs struct {
	Track string `mapstructure:"track"`
}

type historyArgs struct {
	Limit int `mapstructure:"limit"`
}

// NewControlServiceHandler builds an HTTP handler serving every procedure
// and returns the path prefix to mount it on.
func NewControlServiceHandler(svc *ControlService, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(PlayProcedure, connect.NewUnaryHandler(PlayProcedure, svc.Play, opts...))
	mux.Handle(PauseProcedure, connect.NewUnaryHandler(PauseProcedure, svc.Pause, opts...))
	mux.Handle(ScheduleProcedure, connect.NewUnaryHandler(ScheduleProcedure, svc.Schedule, opts...))
	mux.Handle(ListProcedure, connect.NewUnaryHandler(ListProcedure, svc.List, opts...))
	mux.Handle(StatusProcedure, connect.NewUnaryHandler(StatusProcedure, svc.Status, opts...))
	mux.Handle(HistoryProcedure, connect.NewUnaryHandler(HistoryProcedure, svc.History, opts...))
	return "/" + ControlServiceName + "/", mux
}

// Play starts playback.
func (s *ControlService) Play(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[emptypb.Empty], error) {
	if _, err := s.player.Do(ctx, playback.Play()); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// Pause pauses playback.
func (s *ControlService) Pause(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[emptypb.Empty], error) {
	if _, err := s.player.Do(ctx, playback.Pause()); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// Schedule appends {"track": name} to the playlist.
func (s *ControlService) Schedule(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[emptypb.Empty], error) {
	var args scheduleArgs
	if err := decodeArgs(req.Msg, &args); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if args.Track == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("track is required"))
	}

	if _, err := s.player.Do(ctx, playback.Schedule(args.Track)); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// List returns the library's track names.
func (s *ControlService) List(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.ListValue], error) {
	res, err := s.player.Do(ctx, playback.List())
	if err != nil {
		return nil, toConnectError(err)
	}

	values := make([]any, len(res.Tracks))
	for i, name := range res.Tracks {
		values[i] = name
	}
	list, err := structpb.NewList(values)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(list), nil
}

// Status returns a snapshot of the scheduler.
func (s *ControlService) Status(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	res, err := s.player.Do(ctx, playback.QueryStatus())
	if err != nil {
		return nil, toConnectError(err)
	}

	msg, err := structpb.NewStruct(statusMap(*res.Status))
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// History returns recent plays, newest first.
func (s *ControlService) History(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.ListValue], error) {
	if s.history == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("play history is disabled"))
	}

	args := historyArgs{Limit: s.historyLimit}
	if err := decodeArgs(req.Msg, &args); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if args.Limit <= 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("limit must be positive"))
	}

	plays, err := s.history.Recent(ctx, args.Limit)
	if err != nil {
		zlog.Error().Err(err).Msg("connect: failed to read play history")
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	values := make([]any, len(plays))
	for i, p := range plays {
		values[i] = map[string]any{
			"id":         p.ID,
			"track":      p.Track,
			"started_at": p.StartedAt.Format(time.RFC3339),
			"ended_at":   p.EndedAt.Format(time.RFC3339),
			"bytes":      p.Bytes,
			"outcome":    string(p.Outcome),
			"error":      p.Error,
		}
	}
	list, err := structpb.NewList(values)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(list), nil
}

func decodeArgs(msg *structpb.Struct, out any) error {
	if msg == nil {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return errors.Wrap(err, "create argument decoder")
	}
	if err := decoder.Decode(msg.AsMap()); err != nil {
		return errors.Wrap(err, "decode arguments")
	}
	return nil
}

func statusMap(st playback.Status) map[string]any {
	queue := make([]any, len(st.Queue))
	for i, name := range st.Queue {
		queue[i] = name
	}
	listeners := make([]any, len(st.Listeners))
	for i, l := range st.Listeners {
		listeners[i] = map[string]any{
			"id":             l.ID,
			"transport":      string(l.Transport),
			"remote_addr":    l.RemoteAddr,
			"joined_at":      l.JoinedAt.Format(time.RFC3339),
			"chunks_sent":    l.ChunksSent,
			"chunks_dropped": l.ChunksDropped,
			"bytes_sent":     l.BytesSent,
		}
	}
	return map[string]any{
		"state":       st.State.String(),
		"track":       st.Track,
		"offset":      st.Offset,
		"size":        st.Size,
		"position_ms": st.Position.Milliseconds(),
		"duration_ms": st.Duration.Milliseconds(),
		"queue":       queue,
		"listeners":   listeners,
	}
}

// toConnectError maps scheduler errors to Connect codes.
func toConnectError(err error) error {
	var rejected *playback.RejectedError
	switch {
	case errors.As(err, &rejected):
		cerr := connect.NewError(connect.CodeFailedPrecondition, err)
		cerr.Meta().Set(RejectCodeHeader, rejected.Code)
		return cerr
	case errors.Is(err, playback.ErrListing):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, playback.ErrStopped):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
