package app

import (
	"context"
	"log/slog"
	"net/http"

	"clima-relay/internal/broker"
	"clima-relay/internal/config"
	"clima-relay/internal/httpapi"
	"clima-relay/internal/modules/clima"
	"clima-relay/internal/modules/clima/forwarder"
)

func RunRelay(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"goServiceURL", cfg.Forward.BaseURL,
		"forwardTimeout", cfg.Forward.Timeout,
	)

	fwd := forwarder.New(cfg.Forward, &http.Client{}, slog.Default())
	slog.Info("forwarding observations", "target", fwd.Target())

	mux := httpapi.NewMux(nil)
	clima.RegisterForwarding(mux, fwd)

	return serveHTTP(ctx, cfg, mux, fwd.Wait)
}

func RunEcho(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
	)

	mux := httpapi.NewMux(nil)
	clima.RegisterEcho(mux)

	return serveHTTP(ctx, cfg, mux, nil)
}

func RunSink(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"broker", cfg.Broker.Kind,
	)

	publisher, err := connectPublisher(ctx, cfg.Broker)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Error("broker close", "error", err)
		}
	}()

	mux := httpapi.NewMux(nil)
	clima.RegisterSink(mux, publisher)

	return serveHTTP(ctx, cfg, mux, nil)
}

func connectPublisher(ctx context.Context, cfg config.BrokerConfig) (broker.Publisher, error) {
	connectCtx, cancel := context.WithTimeout(ctx, brokerConnectTimeout)
	defer cancel()
	return broker.NewPublisher(connectCtx, cfg, slog.Default())
}
