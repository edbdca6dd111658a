// Package service holds the domain state machines: the in-memory user
// repository and the product loading lifecycle.
package service

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/apphud/apphud-go/internal/domain/entity"
	"github.com/apphud/apphud-go/internal/infrastructure/logging"
	"github.com/apphud/apphud-go/internal/infrastructure/store"
)

// UserRepository owns the single authoritative User. Reads are lock-free;
// all mutation is serialized through a mutex and mirrored to the cache when
// requested.
type UserRepository struct {
	current atomic.Pointer[entity.User]

	mu     sync.Mutex
	cache  *store.Cache
	logger *zap.Logger
}

func NewUserRepository(cache *store.Cache) *UserRepository {
	return &UserRepository{
		cache:  cache,
		logger: logging.WithComponent("user"),
	}
}

// CurrentUser returns the in-memory user, nil before the first resolve.
// The returned value must be treated as read-only.
func (r *UserRepository) CurrentUser() *entity.User {
	return r.current.Load()
}

// SetCurrentUser replaces the authoritative user and reports whether the
// user id changed relative to the previous one.
func (r *UserRepository) SetCurrentUser(user *entity.User, saveToCache bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.current.Load()
	r.current.Store(user)

	if saveToCache {
		if err := r.cache.SetUser(user); err != nil {
			r.logger.Error("failed to persist user", zap.Error(err))
		}
	}

	return previous != nil && previous.UserID != user.UserID
}

// UpdateUser installs the user only when nothing is held yet or the user id
// differs; a same-id update is ignored so a concurrent richer snapshot is
// not clobbered by a stale one.
func (r *UserRepository) UpdateUser(user *entity.User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.current.Load()
	if current != nil && current.UserID == user.UserID {
		return
	}
	r.current.Store(user)
}

// ClearUser drops the in-memory user and its cached copy. Used on logout.
func (r *UserRepository) ClearUser() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.current.Store(nil)
	return r.cache.DeleteUser()
}

// LoadFromCache installs the cached user, if any, without touching an
// already present in-memory user.
func (r *UserRepository) LoadFromCache() (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, err := r.cache.GetUser()
	if err != nil || user == nil {
		return nil, err
	}
	if r.current.Load() == nil {
		r.current.Store(user)
	}
	return user, nil
}

// IsCacheExpired reports whether the persisted registration is stale.
func (r *UserRepository) IsCacheExpired() bool {
	return r.cache.CacheExpired()
}

// HasPurchases reports whether the current user carries any entitlement
// records, active or not.
func (r *UserRepository) HasPurchases() bool {
	user := r.current.Load()
	return user != nil && user.HasPurchases()
}
