package app

import (
	"context"
	"log/slog"
	"time"

	"clima-relay/internal/broker"
	"clima-relay/internal/config"
	"clima-relay/internal/modules/clima/types"
)

const brokerConnectTimeout = 5 * time.Second

func RunConsumer(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"broker", cfg.Broker.Kind,
		"mqttTopic", cfg.Broker.MQTTTopic,
		"kafkaTopic", cfg.Broker.KafkaTopic,
		"kafkaGroupID", cfg.Broker.KafkaGroupID,
	)

	connectCtx, cancel := context.WithTimeout(ctx, brokerConnectTimeout)
	consumer, err := broker.NewConsumer(connectCtx, cfg.Broker, slog.Default())
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			slog.Error("broker close", "error", err)
		}
	}()

	return consumer.Consume(ctx, logObservation)
}

func logObservation(_ context.Context, obs types.Observation) error {
	slog.Info("observation consumed",
		"name", obs.Name,
		"temperatura", obs.Temperatura,
		"humedad", obs.Humedad,
		"clima", obs.Clima,
	)
	return nil
}
