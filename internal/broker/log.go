package broker

import (
	"context"
	"log/slog"

	"clima-relay/internal/modules/clima/types"
)

// LogPublisher only records what it would have published.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, obs types.Observation) error {
	p.logger.Info("observation published",
		"broker", "log",
		"name", obs.Name,
		"temperatura", obs.Temperatura,
		"humedad", obs.Humedad,
		"clima", obs.Clima,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
