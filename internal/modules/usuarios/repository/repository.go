package repository

import (
	"context"
	"sync"

	"clima-relay/internal/modules/usuarios/types"
)

type UserRepository interface {
	// List returns every user in insertion order.
	List(ctx context.Context) ([]types.User, error)
	// Append adds u unconditionally and returns the collection including it.
	Append(ctx context.Context, u types.User) ([]types.User, error)
}

type memoryRepository struct {
	mu    sync.RWMutex
	users []types.User
}

// NewMemoryRepository starts from a copy of seed.
func NewMemoryRepository(seed []types.User) UserRepository {
	return &memoryRepository{users: append([]types.User(nil), seed...)}
}

func (r *memoryRepository) List(_ context.Context) ([]types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append(make([]types.User, 0, len(r.users)), r.users...), nil
}

func (r *memoryRepository) Append(_ context.Context, u types.User) ([]types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, u)
	return append(make([]types.User, 0, len(r.users)), r.users...), nil
}

type snapshotRepository struct {
	base UserRepository
}

// NewSnapshotRepository wraps base so that Append answers with base's
// collection plus u without storing u. Later calls to List never show it.
func NewSnapshotRepository(base UserRepository) UserRepository {
	return &snapshotRepository{base: base}
}

func (r *snapshotRepository) List(ctx context.Context) ([]types.User, error) {
	return r.base.List(ctx)
}

func (r *snapshotRepository) Append(ctx context.Context, u types.User) ([]types.User, error) {
	users, err := r.base.List(ctx)
	if err != nil {
		return nil, err
	}
	return append(users, u), nil
}
