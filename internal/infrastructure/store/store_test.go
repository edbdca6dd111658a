package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphud/apphud-go/internal/domain/entity"
	"github.com/apphud/apphud-go/internal/infrastructure/store"
)

func TestFileStore(t *testing.T) {
	t.Run("roundtrip and reopen", func(t *testing.T) {
		dir := t.TempDir()

		fs, err := store.NewFileStore(dir)
		require.NoError(t, err)
		require.NoError(t, fs.Set("key", []byte("value")))

		reopened, err := store.NewFileStore(dir)
		require.NoError(t, err)
		raw, ok, err := reopened.Get("key")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("value"), raw)
	})

	t.Run("missing key", func(t *testing.T) {
		fs, err := store.NewFileStore(t.TempDir())
		require.NoError(t, err)

		_, ok, err := fs.Get("missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		fs, err := store.NewFileStore(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, fs.Set("key", []byte("value")))
		require.NoError(t, fs.Delete("key"))
		require.NoError(t, fs.Delete("key"))

		_, ok, err := fs.Get("key")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("corrupted file treated as empty", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "storage.json"), []byte("{not json"), 0o600))

		fs, err := store.NewFileStore(dir)
		require.NoError(t, err)

		_, ok, err := fs.Get("key")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCache(t *testing.T) {
	t.Run("user roundtrip", func(t *testing.T) {
		cache, _ := newCache(t)

		require.NoError(t, cache.SetUser(&entity.User{UserID: "u1", DeviceID: "d1"}))
		user, err := cache.GetUser()
		require.NoError(t, err)
		assert.Equal(t, "u1", user.UserID)
		assert.Equal(t, "d1", user.DeviceID)
	})

	t.Run("delete user also drops user id", func(t *testing.T) {
		cache, _ := newCache(t)

		require.NoError(t, cache.SetUser(&entity.User{UserID: "u1"}))
		require.NoError(t, cache.SetUserID("u1"))
		require.NoError(t, cache.DeleteUser())

		user, err := cache.GetUser()
		require.NoError(t, err)
		assert.Nil(t, user)
		assert.Empty(t, cache.UserID())
	})

	t.Run("staleness window", func(t *testing.T) {
		backend, err := store.NewFileStore(t.TempDir())
		require.NoError(t, err)
		cache := store.NewCache(backend, time.Hour)

		assert.True(t, cache.CacheExpired())

		require.NoError(t, cache.SetLastRegistration(time.Now()))
		assert.False(t, cache.CacheExpired())

		require.NoError(t, cache.SetLastRegistration(time.Now().Add(-2*time.Hour)))
		assert.True(t, cache.CacheExpired())
	})

	t.Run("clear wipes credentials and user", func(t *testing.T) {
		cache, _ := newCache(t)

		require.NoError(t, cache.SetUser(&entity.User{UserID: "u1"}))
		require.NoError(t, cache.SetUserID("u1"))
		require.NoError(t, cache.SetDeviceID("d1"))
		require.NoError(t, cache.Clear())

		user, err := cache.GetUser()
		require.NoError(t, err)
		assert.Nil(t, user)
		assert.Empty(t, cache.UserID())
		assert.Empty(t, cache.DeviceID())
	})
}

func TestNeedSendProperty(t *testing.T) {
	t.Run("new property is sent", func(t *testing.T) {
		cache, _ := newCache(t)
		assert.True(t, cache.NeedSendProperty(store.UserProperty{Key: "plan", Value: "pro"}))
	})

	t.Run("unchanged value is skipped", func(t *testing.T) {
		cache, _ := newCache(t)
		require.True(t, cache.NeedSendProperty(store.UserProperty{Key: "plan", Value: "pro"}))
		assert.False(t, cache.NeedSendProperty(store.UserProperty{Key: "plan", Value: "pro"}))
	})

	t.Run("changed value is sent", func(t *testing.T) {
		cache, _ := newCache(t)
		require.True(t, cache.NeedSendProperty(store.UserProperty{Key: "plan", Value: "pro"}))
		assert.True(t, cache.NeedSendProperty(store.UserProperty{Key: "plan", Value: "premium"}))
	})

	t.Run("set once is never overwritten", func(t *testing.T) {
		cache, _ := newCache(t)
		require.True(t, cache.NeedSendProperty(store.UserProperty{Key: "source", Value: "organic", SetOnce: true}))
		assert.False(t, cache.NeedSendProperty(store.UserProperty{Key: "source", Value: "paid"}))
		assert.False(t, cache.NeedSendProperty(store.UserProperty{Key: "source", Value: "paid", Increment: true}))
	})

	t.Run("increment always resends", func(t *testing.T) {
		cache, _ := newCache(t)
		assert.True(t, cache.NeedSendProperty(store.UserProperty{Key: "opens", Value: 1, Increment: true}))
		assert.True(t, cache.NeedSendProperty(store.UserProperty{Key: "opens", Value: 1, Increment: true}))
	})

	t.Run("nil value removes only when present", func(t *testing.T) {
		cache, _ := newCache(t)
		assert.False(t, cache.NeedSendProperty(store.UserProperty{Key: "plan", Value: nil}))

		require.True(t, cache.NeedSendProperty(store.UserProperty{Key: "plan", Value: "pro"}))
		assert.True(t, cache.NeedSendProperty(store.UserProperty{Key: "plan", Value: nil}))
		assert.True(t, cache.NeedSendProperty(store.UserProperty{Key: "plan", Value: "pro"}))
	})
}
