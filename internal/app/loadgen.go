package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"clima-relay/internal/config"
	"clima-relay/internal/loadgen"
)

func RunLoadgen(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"targetURL", cfg.Loadgen.TargetURL,
		"rate", cfg.Loadgen.Rate,
		"burst", cfg.Loadgen.Burst,
		"count", cfg.Loadgen.Count,
	)

	client := &http.Client{Timeout: 10 * time.Second}
	gen := loadgen.NewGenerator(uint64(time.Now().UnixNano()))
	runner := loadgen.NewRunner(cfg.Loadgen, client, gen, slog.Default())

	start := time.Now()
	res, err := runner.Run(ctx)
	slog.Info("load run finished",
		"sent", res.Sent,
		"failed", res.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if err != nil {
		return err
	}
	return ctx.Err()
}
