package tweets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"clima-relay/internal/logging"
)

const (
	ServiceName     = "tweet.TweetService"
	sendTweetMethod = "/" + ServiceName + "/SendTweet"

	// RequestIDMetadata carries the HTTP request id across the gRPC hop.
	RequestIDMetadata = "x-request-id"

	maxMsgSize = 10 << 20
)

type TweetServiceServer interface {
	SendTweet(ctx context.Context, req *TweetRequest) (*TweetResponse, error)
}

func RegisterTweetServiceServer(s grpc.ServiceRegistrar, srv TweetServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TweetServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendTweet", Handler: sendTweetHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tweet.proto",
}

func sendTweetHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TweetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TweetServiceServer).SendTweet(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: sendTweetMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TweetServiceServer).SendTweet(ctx, req.(*TweetRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServerCodec makes a grpc.Server decode the tweet messages.
func ServerCodec() grpc.ServerOption {
	return grpc.ForceServerCodec(codec{})
}

type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) SendTweet(ctx context.Context, in *TweetRequest, opts ...grpc.CallOption) (*TweetResponse, error) {
	out := new(TweetResponse)
	opts = append([]grpc.CallOption{grpc.ForceCodec(codec{})}, opts...)
	if err := c.cc.Invoke(ctx, sendTweetMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Receiver logs every tweet it is sent.
type Receiver struct {
	logger *slog.Logger
}

func NewReceiver(logger *slog.Logger) *Receiver {
	return &Receiver{logger: logger}
}

func (r *Receiver) SendTweet(ctx context.Context, req *TweetRequest) (*TweetResponse, error) {
	if req.Description == "" || req.Country == "" || req.Weather == "" {
		r.logger.WarnContext(ctx, "incomplete tweet rejected",
			"country", req.Country,
			"weather", req.Weather,
		)
		return nil, status.Error(codes.InvalidArgument, "description, country and weather are required")
	}

	r.logger.InfoContext(ctx, "tweet received",
		"country", req.Country,
		"weather", req.Weather,
		"description", req.Description,
	)
	return &TweetResponse{
		Status: fmt.Sprintf("Tweet de %s recibido y procesado correctamente", req.Country),
	}, nil
}

// NewServer builds a gRPC server with the tweet service, health checks and
// reflection registered. The health server starts out SERVING.
func NewServer(logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{
		ServerCodec(),
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
		grpc.ChainUnaryInterceptor(requestLogger(logger)),
	}, opts...)
	srv := grpc.NewServer(opts...)

	RegisterTweetServiceServer(srv, NewReceiver(logger))

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(srv)
	return srv, healthSrv
}

// requestLogger lifts x-request-id into the context and logs one line per call.
func requestLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(RequestIDMetadata); len(ids) > 0 && ids[0] != "" {
				ctx = logging.WithRequestID(ctx, ids[0])
			}
		}

		resp, err := handler(ctx, req)

		logger.InfoContext(ctx, "grpc request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// OutgoingContext attaches the request id in ctx, if any, as gRPC metadata.
func OutgoingContext(ctx context.Context) context.Context {
	if id := logging.RequestID(ctx); id != "" {
		return metadata.AppendToOutgoingContext(ctx, RequestIDMetadata, id)
	}
	return ctx
}
