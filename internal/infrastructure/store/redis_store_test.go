package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcwait "github.com/testcontainers/testcontainers-go/wait"

	"github.com/apphud/apphud-go/internal/domain/entity"
	"github.com/apphud/apphud-go/internal/infrastructure/store"
)

func setupRedis(ctx context.Context, t *testing.T) *redis.Client {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   tcwait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", host, mappedPort.Port()),
	})
	require.NoError(t, client.Ping(ctx).Err())
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := context.Background()
	client := setupRedis(ctx, t)
	rs := store.NewRedisStore(client, "test:")

	t.Run("roundtrip", func(t *testing.T) {
		require.NoError(t, rs.Set("key", []byte("value")))

		raw, ok, err := rs.Get("key")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("value"), raw)
	})

	t.Run("missing key", func(t *testing.T) {
		_, ok, err := rs.Get("missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, rs.Set("doomed", []byte("value")))
		require.NoError(t, rs.Delete("doomed"))

		_, ok, err := rs.Get("doomed")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("prefix isolates stores", func(t *testing.T) {
		other := store.NewRedisStore(client, "other:")
		require.NoError(t, rs.Set("shared", []byte("mine")))

		_, ok, err := other.Get("shared")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("backs the full cache and migration path", func(t *testing.T) {
		cache := store.NewCache(store.NewRedisStore(client, "cache:"), 25*time.Hour)

		current, err := cache.ValidateCaches()
		require.NoError(t, err)
		assert.False(t, current)

		require.NoError(t, cache.SetUser(&entity.User{UserID: "u1"}))
		user, err := cache.GetUser()
		require.NoError(t, err)
		assert.Equal(t, "u1", user.UserID)

		current, err = cache.ValidateCaches()
		require.NoError(t, err)
		assert.True(t, current)
	})
}
