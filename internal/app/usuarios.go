package app

import (
	"context"
	"errors"
	"log/slog"

	"clima-relay/internal/config"
	db "clima-relay/internal/db"
	"clima-relay/internal/httpapi"
	"clima-relay/internal/migrate"
	"clima-relay/internal/modules/usuarios"
	"clima-relay/internal/modules/usuarios/repository"
	"clima-relay/internal/modules/usuarios/types"
)

func RunUsuarios(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"usersStore", cfg.Users.Store,
		"usersPersistCreates", cfg.Users.PersistCreates,
	)

	var (
		repo   repository.UserRepository
		pinger httpapi.Pinger
	)
	switch cfg.Users.Store {
	case "sqlite":
		slog.Info("opening database",
			"driver", cfg.DB.Driver,
			"path", cfg.DB.Path,
			"maxOpenConns", cfg.DB.MaxOpenConns,
			"maxIdleConns", cfg.DB.MaxIdleConns,
			"connMaxLifetime", cfg.DB.ConnMaxLifetime,
		)
		dbConn, err := db.Open(cfg.DB, slog.Default())
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := db.Close(dbConn); closeErr != nil {
				slog.Error("db close", "error", closeErr)
			}
		}()

		applied, err := migrate.Run(ctx, dbConn)
		if err != nil {
			return err
		}
		slog.Info("database ready", "migrationsApplied", applied)

		repo = repository.NewSQLiteRepository(dbConn)
		pinger = dbConn
	case "memory":
		repo = repository.NewMemoryRepository(types.SeedUsers())
	default:
		return errors.New("unknown users store " + cfg.Users.Store)
	}

	if !cfg.Users.PersistCreates {
		slog.Warn("created usuarios are not stored; lists keep showing the seeded set")
		repo = repository.NewSnapshotRepository(repo)
	}

	mux := httpapi.NewMux(pinger)
	usuarios.RegisterFeature(mux, repo)

	return serveHTTP(ctx, cfg, mux, nil)
}
