// Package command holds the SDK use cases: credential resolution, user
// registration and the rule screen pipeline.
package command

import (
	"go.uber.org/zap"

	"github.com/google/uuid"

	"github.com/apphud/apphud-go/internal/infrastructure/logging"
	"github.com/apphud/apphud-go/internal/infrastructure/store"
)

// Credentials is the identity pair the SDK operates under plus whether the
// resolution changed anything compared to what was persisted.
type Credentials struct {
	UserID   string
	DeviceID string
	// Changed reports that at least one id was generated or overridden, so
	// the next registration must not be skipped.
	Changed bool
}

// ResolveCredentials establishes the user and device ids. The caller may
// supply an explicit user id; missing ids are generated. A single freshly
// generated value seeds both ids when neither exists, so a brand-new
// install starts with user id == device id.
type ResolveCredentials struct {
	cache  *store.Cache
	logger *zap.Logger
}

func NewResolveCredentials(cache *store.Cache) *ResolveCredentials {
	return &ResolveCredentials{
		cache:  cache,
		logger: logging.WithComponent("credentials"),
	}
}

// Execute resolves and persists the credential pair. Persisted values are
// only rewritten when they actually changed.
func (c *ResolveCredentials) Execute(inputUserID string) (Credentials, error) {
	storedUserID := c.cache.UserID()
	storedDeviceID := c.cache.DeviceID()

	userID := storedUserID
	deviceID := storedDeviceID
	generated := uuid.NewString()

	if inputUserID != "" {
		userID = inputUserID
	}
	if userID == "" {
		userID = generated
	}
	if deviceID == "" {
		deviceID = generated
	}

	changed := userID != storedUserID || deviceID != storedDeviceID

	if userID != storedUserID {
		if err := c.cache.SetUserID(userID); err != nil {
			return Credentials{}, err
		}
	}
	if deviceID != storedDeviceID {
		if err := c.cache.SetDeviceID(deviceID); err != nil {
			return Credentials{}, err
		}
	}

	if changed {
		c.logger.Info("credentials resolved",
			zap.String("user_id", userID),
			zap.String("device_id", deviceID),
		)
	}

	return Credentials{UserID: userID, DeviceID: deviceID, Changed: changed}, nil
}
