package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"clima-relay/internal/config"
	"clima-relay/internal/modules/clima/types"
)

// KafkaPublisher writes one message per observation, keyed by place name.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafkaPublisher(cfg config.BrokerConfig, logger *slog.Logger) *KafkaPublisher {
	logger = logger.With("broker", "kafka")
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.KafkaBrokers...),
			Topic:                  cfg.KafkaTopic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
				logger.Error(fmt.Sprintf(msg, args...))
			}),
		},
		logger: logger,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, obs types.Observation) error {
	data, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("marshal observation: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(obs.Name),
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("write to %s: %w", p.writer.Topic, err)
	}
	p.logger.Debug("published observation", "topic", p.writer.Topic, "name", obs.Name)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaConsumer reads the topic as part of a consumer group.
type KafkaConsumer struct {
	reader *kafka.Reader
	logger *slog.Logger
}

func NewKafkaConsumer(cfg config.BrokerConfig, logger *slog.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  cfg.KafkaGroupID,
			Topic:    cfg.KafkaTopic,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  500 * time.Millisecond,
		}),
		logger: logger.With("broker", "kafka"),
	}
}

// Consume commits each message after the handler has seen it.
func (c *KafkaConsumer) Consume(ctx context.Context, h Handler) error {
	cfg := c.reader.Config()
	c.logger.Info("consuming kafka topic", "topic", cfg.Topic, "group_id", cfg.GroupID)
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("kafka reader closed: %w", err)
			}
			c.logger.Warn("read message failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		dispatch(ctx, c.logger, fmt.Sprintf("%s/%d@%d", m.Topic, m.Partition, m.Offset), m.Value, h)
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
