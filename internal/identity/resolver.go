package identity

import (
	"context"
	"fmt"

	"haven/internal/database/sqlitestore"
)

// Resolver answers identity lookups through the cache, falling back to the
// synced users table and refilling the cache on a miss.
type Resolver struct {
	cache *Cache
	store *sqlitestore.Store
}

// NewResolver creates a resolver over the given cache and store. A nil
// cache disables caching and every lookup hits the store.
func NewResolver(cache *Cache, store *sqlitestore.Store) *Resolver {
	return &Resolver{cache: cache, store: store}
}

// Resolve returns the identity snapshot for a user, or nil when the user is
// unknown or no longer active.
func (r *Resolver) Resolve(ctx context.Context, userID string) (*Snapshot, error) {
	if r.cache != nil {
		snap, err := r.cache.Get(userID)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			return snap, nil
		}
	}

	user, err := sqlitestore.GetUser(ctx, r.store.DB(), userID)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, nil
	}

	snap := Snapshot{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        user.Role,
	}
	if r.cache != nil {
		if err := r.cache.Put(snap); err != nil {
			return nil, err
		}
	}
	return &snap, nil
}

// Role returns the user's role, empty when the user cannot be resolved
func (r *Resolver) Role(ctx context.Context, userID string) (string, error) {
	snap, err := r.Resolve(ctx, userID)
	if err != nil {
		return "", err
	}
	if snap == nil {
		return "", nil
	}
	return snap.Role, nil
}
