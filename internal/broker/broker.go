package broker

import (
	"context"
	"fmt"
	"log/slog"

	"clima-relay/internal/config"
	"clima-relay/internal/modules/clima/types"
)

// Publisher hands an observation to a message broker.
type Publisher interface {
	Publish(ctx context.Context, obs types.Observation) error
	Close() error
}

// Handler is called once per decoded observation.
type Handler func(ctx context.Context, obs types.Observation) error

// Consumer delivers observations to a Handler until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, h Handler) error
	Close() error
}

func NewPublisher(ctx context.Context, cfg config.BrokerConfig, logger *slog.Logger) (Publisher, error) {
	switch cfg.Kind {
	case "log":
		return NewLogPublisher(logger), nil
	case "mqtt":
		c := NewMQTTClient(cfg, logger)
		if err := c.Connect(ctx); err != nil {
			c.Close()
			return nil, err
		}
		return c, nil
	case "kafka":
		return NewKafkaPublisher(cfg, logger), nil
	case "grpc":
		return NewGRPCPublisher(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown broker %q", cfg.Kind)
	}
}

func NewConsumer(ctx context.Context, cfg config.BrokerConfig, logger *slog.Logger) (Consumer, error) {
	switch cfg.Kind {
	case "mqtt":
		c := NewMQTTClient(cfg, logger)
		if err := c.Connect(ctx); err != nil {
			c.Close()
			return nil, err
		}
		return c, nil
	case "kafka":
		return NewKafkaConsumer(cfg, logger), nil
	default:
		return nil, fmt.Errorf("broker %q cannot be consumed", cfg.Kind)
	}
}

// dispatch decodes one payload and passes it on. Undecodable payloads are
// logged and dropped.
func dispatch(ctx context.Context, logger *slog.Logger, source string, payload []byte, h Handler) {
	obs, err := types.ParseObservation(payload)
	if err != nil {
		logger.Warn("failed to parse observation message",
			"source", source,
			"error", err,
			"payload", string(payload),
		)
		return
	}
	if err := h(ctx, obs); err != nil {
		logger.Error("message handler failed",
			"source", source,
			"name", obs.Name,
			"error", err,
		)
	}
}
