package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"clima-relay/internal/config"
	"clima-relay/internal/httpapi"
)

const shutdownTimeout = 10 * time.Second

// serveHTTP runs the server until ctx is done, then shuts it down. drain, if
// set, runs inside the shutdown window after the listener has stopped.
func serveHTTP(ctx context.Context, cfg config.Config, handler http.Handler, drain func(context.Context) error) error {
	srv := httpapi.NewServer(cfg, handler)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if drain != nil {
		if err := drain(shutdownCtx); err != nil {
			slog.Warn("drain incomplete", "error", err)
		}
	}

	err := <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
