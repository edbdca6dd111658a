package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphud/apphud-go/internal/domain/entity"
	"github.com/apphud/apphud-go/internal/domain/service"
	"github.com/apphud/apphud-go/internal/infrastructure/store"
)

func newTestCache(t *testing.T) *store.Cache {
	t.Helper()
	backend, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store.NewCache(backend, 25*time.Hour)
}

func TestUserRepository(t *testing.T) {
	t.Run("empty before any set", func(t *testing.T) {
		repo := service.NewUserRepository(newTestCache(t))

		assert.Nil(t, repo.CurrentUser())
		assert.False(t, repo.HasPurchases())
	})

	t.Run("set persists and reports user id change", func(t *testing.T) {
		cache := newTestCache(t)
		repo := service.NewUserRepository(cache)

		first := &entity.User{UserID: "u1", DeviceID: "d1"}
		changed := repo.SetCurrentUser(first, true)
		assert.False(t, changed)

		second := &entity.User{UserID: "u2", DeviceID: "d1"}
		changed = repo.SetCurrentUser(second, true)
		assert.True(t, changed)

		cached, err := cache.GetUser()
		require.NoError(t, err)
		assert.Equal(t, "u2", cached.UserID)
	})

	t.Run("set without persistence leaves cache untouched", func(t *testing.T) {
		cache := newTestCache(t)
		repo := service.NewUserRepository(cache)

		repo.SetCurrentUser(&entity.User{UserID: "u1"}, false)

		cached, err := cache.GetUser()
		require.NoError(t, err)
		assert.Nil(t, cached)
	})

	t.Run("update ignores same user id", func(t *testing.T) {
		repo := service.NewUserRepository(newTestCache(t))

		rich := &entity.User{UserID: "u1", Paywalls: []entity.Paywall{{Identifier: "main"}}}
		repo.SetCurrentUser(rich, false)

		repo.UpdateUser(&entity.User{UserID: "u1"})
		assert.Len(t, repo.CurrentUser().Paywalls, 1)

		repo.UpdateUser(&entity.User{UserID: "u2"})
		assert.Equal(t, "u2", repo.CurrentUser().UserID)
	})

	t.Run("load from cache installs only when nothing held", func(t *testing.T) {
		cache := newTestCache(t)
		require.NoError(t, cache.SetUser(&entity.User{UserID: "cached"}))

		repo := service.NewUserRepository(cache)
		user, err := repo.LoadFromCache()
		require.NoError(t, err)
		assert.Equal(t, "cached", user.UserID)
		assert.Equal(t, "cached", repo.CurrentUser().UserID)

		repo.SetCurrentUser(&entity.User{UserID: "live"}, false)
		_, err = repo.LoadFromCache()
		require.NoError(t, err)
		assert.Equal(t, "live", repo.CurrentUser().UserID)
	})

	t.Run("clear drops memory and cache", func(t *testing.T) {
		cache := newTestCache(t)
		repo := service.NewUserRepository(cache)

		repo.SetCurrentUser(&entity.User{UserID: "u1"}, true)
		require.NoError(t, repo.ClearUser())

		assert.Nil(t, repo.CurrentUser())
		cached, err := cache.GetUser()
		require.NoError(t, err)
		assert.Nil(t, cached)
	})

	t.Run("has purchases considers inactive records", func(t *testing.T) {
		repo := service.NewUserRepository(newTestCache(t))

		repo.SetCurrentUser(&entity.User{
			UserID: "u1",
			Subscriptions: []entity.Subscription{
				{ProductID: "p", Status: entity.StatusExpired},
			},
		}, false)

		assert.True(t, repo.HasPurchases())
	})
}
