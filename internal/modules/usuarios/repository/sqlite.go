package repository

import (
	"context"
	"database/sql"
	"fmt"

	"clima-relay/internal/modules/usuarios/types"
)

type sqliteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository expects the usuarios table created and seeded by the
// embedded migrations.
func NewSQLiteRepository(db *sql.DB) UserRepository {
	return &sqliteRepository{db: db}
}

func (r *sqliteRepository) List(ctx context.Context) ([]types.User, error) {
	return listUsers(ctx, r.db)
}

func (r *sqliteRepository) Append(ctx context.Context, u types.User) ([]types.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO usuarios (id, nombre, email) VALUES (?, ?, ?)`,
		u.ID, u.Nombre, u.Email,
	)
	if err != nil {
		return nil, fmt.Errorf("insert usuario: %w", err)
	}

	users, err := listUsers(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return users, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listUsers(ctx context.Context, q queryer) ([]types.User, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, nombre, email FROM usuarios ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("select usuarios: %w", err)
	}
	defer rows.Close()

	users := []types.User{}
	for rows.Next() {
		var u types.User
		if err := rows.Scan(&u.ID, &u.Nombre, &u.Email); err != nil {
			return nil, fmt.Errorf("scan usuario: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usuarios: %w", err)
	}
	return users, nil
}
