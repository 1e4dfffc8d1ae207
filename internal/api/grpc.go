package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"backtester/internal/domain"
	"backtester/internal/engine"
	"backtester/internal/events"
)

// serviceName is the fully-qualified gRPC service name.
const serviceName = "backtester.v1.Backtester"

// BacktesterServer is the gRPC service contract. Messages are
// google.protobuf.Struct values carrying the same JSON shape as the HTTP API.
type BacktesterServer interface {
	Run(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListStrategies(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	WatchRuns(req *structpb.Struct, stream grpc.ServerStream) error
}

var backtesterServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*BacktesterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: unaryHandler("Run", BacktesterServer.Run)},
		{MethodName: "ListStrategies", Handler: unaryHandler("ListStrategies", BacktesterServer.ListStrategies)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchRuns", Handler: watchRunsHandler, ServerStreams: true},
	},
	Metadata: "backtester/v1/backtester.proto",
}

func registerBacktesterServer(s grpc.ServiceRegistrar, srv BacktesterServer) {
	s.RegisterService(&backtesterServiceDesc, srv)
}

type structMethod func(BacktesterServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a Struct-to-Struct method to grpc.MethodDesc.
func unaryHandler(method string, call structMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + serviceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BacktesterServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BacktesterServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchRunsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(BacktesterServer).WatchRuns(in, stream)
}

// ---------------------------------------------------------------------------
// Service implementation
// ---------------------------------------------------------------------------

// Compile-time interface check.
var _ BacktesterServer = (*grpcService)(nil)

type grpcService struct {
	engine  *engine.Engine
	feed    *events.Broadcaster
	timeout time.Duration
	log     *slog.Logger
}

// Run decodes a backtest request, runs it and returns the response.
func (g *grpcService) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req engine.Request
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decoding request: %v", err)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.engine.Run(ctx, req)
	if err != nil {
		return nil, status.Error(codeFor(err), err.Error())
	}
	out, err := toStruct(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return out, nil
}

// ListStrategies returns {"strategies": [...]}.
func (g *grpcService) ListStrategies(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	out, err := toStruct(map[string]any{"strategies": g.engine.Strategies()})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return out, nil
}

// WatchRuns streams each completed run until the client disconnects. An
// optional "symbol" field restricts the stream to one symbol.
func (g *grpcService) WatchRuns(in *structpb.Struct, stream grpc.ServerStream) error {
	if g.feed == nil {
		return status.Error(codes.Unimplemented, "run feed not configured")
	}
	symbol := strings.ToUpper(in.GetFields()["symbol"].GetStringValue())

	subID, ch := g.feed.Subscribe(64)
	defer g.feed.Unsubscribe(subID)
	g.log.Info("grpc client watching runs", "subID", subID, "symbol", symbol, "subscribers", g.feed.Subscribers())

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			g.log.Info("grpc client disconnected", "subID", subID)
			return nil
		case run, ok := <-ch:
			if !ok {
				return nil
			}
			if symbol != "" && run.Symbol != symbol {
				continue
			}
			out, err := toStruct(run)
			if err != nil {
				return status.Errorf(codes.Internal, "encoding run: %v", err)
			}
			if err := stream.SendMsg(out); err != nil {
				return err
			}
		}
	}
}

// codeFor maps engine errors to gRPC status codes.
func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidStrategy):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrDataUnavailable):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}

// fromStruct decodes a Struct into v through its JSON form.
func fromStruct(in *structpb.Struct, v any) error {
	data, err := json.Marshal(in.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// toStruct encodes v into a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("building struct: %w", err)
	}
	return s, nil
}
