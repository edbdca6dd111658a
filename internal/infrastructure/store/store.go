// Package store provides the durable key/value cache behind the SDK: the
// serialized user, resolved credentials, registration timestamps and the
// schema version used for forward migration.
package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/apphud/apphud-go/internal/domain/entity"
	"github.com/apphud/apphud-go/internal/infrastructure/logging"
)

// Store is raw durable key/value storage. Implementations must support
// concurrent reads during writes.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Storage keys. Legacy keys exist only to be migrated away from.
const (
	userKey             = "apphud_user"
	userIDKey           = "user_id"
	deviceIDKey         = "device_id"
	lastRegistrationKey = "last_registration"
	cacheVersionKey     = "apphud_cache_version"
	propertiesKey       = "properties"

	legacyPaywallsKey   = "paywalls"
	legacyPlacementsKey = "placements"
)

// Cache wraps a Store with typed accessors for everything the SDK persists.
type Cache struct {
	store  Store
	window time.Duration
	logger *zap.Logger
}

// NewCache creates a typed cache over the given backend. The staleness
// window bounds how long a registration result stays fresh.
func NewCache(s Store, stalenessWindow time.Duration) *Cache {
	return &Cache{
		store:  s,
		window: stalenessWindow,
		logger: logging.WithComponent("store"),
	}
}

// GetUser returns the cached user, or nil when absent or unreadable.
func (c *Cache) GetUser() (*entity.User, error) {
	raw, ok, err := c.store.Get(userKey)
	if err != nil || !ok {
		return nil, err
	}
	var user entity.User
	if err := json.Unmarshal(raw, &user); err != nil {
		c.logger.Warn("dropping unreadable cached user", zap.Error(err))
		return nil, nil
	}
	return &user, nil
}

// SetUser persists the user.
func (c *Cache) SetUser(user *entity.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	return c.store.Set(userKey, raw)
}

// DeleteUser removes the cached user and the persisted user id.
func (c *Cache) DeleteUser() error {
	if err := c.store.Delete(userKey); err != nil {
		return err
	}
	return c.store.Delete(userIDKey)
}

// UserID returns the persisted user id, empty when absent.
func (c *Cache) UserID() string { return c.getString(userIDKey) }

// SetUserID persists the resolved user id.
func (c *Cache) SetUserID(id string) error { return c.store.Set(userIDKey, []byte(id)) }

// DeviceID returns the persisted device id, empty when absent.
func (c *Cache) DeviceID() string { return c.getString(deviceIDKey) }

// SetDeviceID persists the resolved device id.
func (c *Cache) SetDeviceID(id string) error { return c.store.Set(deviceIDKey, []byte(id)) }

// LastRegistration returns the time of the last successful registration,
// zero when never registered.
func (c *Cache) LastRegistration() time.Time {
	raw := c.getString(lastRegistrationKey)
	if raw == "" {
		return time.Time{}
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(millis)
}

// SetLastRegistration stamps the last successful registration time.
func (c *Cache) SetLastRegistration(t time.Time) error {
	return c.store.Set(lastRegistrationKey, []byte(strconv.FormatInt(t.UnixMilli(), 10)))
}

// CacheExpired reports whether the staleness window has elapsed since the
// last successful registration.
func (c *Cache) CacheExpired() bool {
	last := c.LastRegistration()
	expired := time.Since(last) > c.window
	if expired {
		c.logger.Info("cached user found, but cache expired")
	} else {
		c.logger.Info("using cached user")
	}
	return expired
}

// Clear wipes everything. Used on logout.
func (c *Cache) Clear() error {
	keys := []string{
		userKey, userIDKey, deviceIDKey, lastRegistrationKey,
		propertiesKey, legacyPaywallsKey, legacyPlacementsKey,
	}
	for _, key := range keys {
		if err := c.store.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) getString(key string) string {
	raw, ok, err := c.store.Get(key)
	if err != nil || !ok {
		return ""
	}
	return string(raw)
}

func (c *Cache) cacheVersion() int {
	raw := c.getString(cacheVersionKey)
	if raw == "" {
		return 0
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return version
}

func (c *Cache) setCacheVersion(version int) error {
	return c.store.Set(cacheVersionKey, []byte(strconv.Itoa(version)))
}
