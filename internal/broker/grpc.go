package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"clima-relay/internal/config"
	"clima-relay/internal/modules/clima/types"
	"clima-relay/internal/tweets"
)

// GRPCPublisher turns each observation into a tweet for the TweetService.
type GRPCPublisher struct {
	conn    *grpc.ClientConn
	client  *tweets.Client
	target  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewGRPCPublisher prepares a connection to cfg.GRPCServerAddr. The
// connection is made lazily on the first Publish.
func NewGRPCPublisher(cfg config.BrokerConfig, logger *slog.Logger, opts ...grpc.DialOption) (*GRPCPublisher, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(cfg.GRPCServerAddr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", cfg.GRPCServerAddr, err)
	}
	return &GRPCPublisher{
		conn:    conn,
		client:  tweets.NewClient(conn),
		target:  cfg.GRPCServerAddr,
		timeout: cfg.GRPCTimeout,
		logger:  logger,
	}, nil
}

func (p *GRPCPublisher) Publish(ctx context.Context, obs types.Observation) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := p.client.SendTweet(tweets.OutgoingContext(ctx), tweets.FromObservation(obs))
	if err != nil {
		return fmt.Errorf("send tweet to %s: %w", p.target, err)
	}

	p.logger.InfoContext(ctx, "observation published",
		"broker", "grpc",
		"name", obs.Name,
		"reply", resp.Status,
	)
	return nil
}

func (p *GRPCPublisher) Close() error {
	return p.conn.Close()
}
