package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ControlClient is a client for the ControlService.
type ControlClient struct {
	play     *connect.Client[emptypb.Empty, emptypb.Empty]
	pause    *connect.Client[emptypb.Empty, emptypb.Empty]
	schedule *connect.Client[structpb.Struct, emptypb.Empty]
	list     *connect.Client[emptypb.Empty, structpb.ListValue]
	status   *connect.Client[emptypb.Empty, structpb.Struct]
	history  *connect.Client[structpb.Struct, structpb.ListValue]
}

// NewControlClient creates a client for the server at baseURL.
func NewControlClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ControlClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &ControlClient{
		play:     connect.NewClient[emptypb.Empty, emptypb.Empty](httpClient, baseURL+PlayProcedure, opts...),
		pause:    connect.NewClient[emptypb.Empty, emptypb.Empty](httpClient, baseURL+PauseProcedure, opts...),
		schedule: connect.NewClient[structpb.Struct, emptypb.Empty](httpClient, baseURL+ScheduleProcedure, opts...),
		list:     connect.NewClient[emptypb.Empty, structpb.ListValue](httpClient, baseURL+ListProcedure, opts...),
		status:   connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+StatusProcedure, opts...),
		history:  connect.NewClient[structpb.Struct, structpb.ListValue](httpClient, baseURL+HistoryProcedure, opts...),
	}
}

// Play starts playback.
func (c *ControlClient) Play(ctx context.Context) error {
	_, err := c.play.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	return err
}

// Pause pauses playback.
func (c *ControlClient) Pause(ctx context.Context) error {
	_, err := c.pause.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	return err
}

// Schedule appends name to the playlist.
func (c *ControlClient) Schedule(ctx context.Context, name string) error {
	args, err := structpb.NewStruct(map[string]any{"track": name})
	if err != nil {
		return err
	}
	_, err = c.schedule.CallUnary(ctx, connect.NewRequest(args))
	return err
}

// List returns the library's track names.
func (c *ControlClient) List(ctx context.Context) ([]string, error) {
	resp, err := c.list.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Msg.GetValues()))
	for _, v := range resp.Msg.GetValues() {
		names = append(names, v.GetStringValue())
	}
	return names, nil
}

// Status returns the scheduler snapshot as a generic map.
func (c *ControlClient) Status(ctx context.Context) (map[string]any, error) {
	resp, err := c.status.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.AsMap(), nil
}

// History returns up to limit recent plays.
func (c *ControlClient) History(ctx context.Context, limit int) ([]map[string]any, error) {
	args, err := structpb.NewStruct(map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}
	resp, err := c.history.CallUnary(ctx, connect.NewRequest(args))
	if err != nil {
		return nil, err
	}
	plays := make([]map[string]any, 0, len(resp.Msg.GetValues()))
	for _, v := range resp.Msg.GetValues() {
		plays = append(plays, v.GetStructValue().AsMap())
	}
	return plays, nil
}

// RejectCode returns the filter code carried by a rejected Schedule call.
func RejectCode(err error) string {
	var cerr *connect.Error
	if !errors.As(err, &cerr) || cerr.Code() != connect.CodeFailedPrecondition {
		return ""
	}
	return cerr.Meta().Get(RejectCodeHeader)
}
