package store

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/apphud/apphud-go/internal/domain/entity"
)

// currentCacheVersion is the schema version this build writes. Version 3
// nests paywalls and placements inside the user object; versions up to 2
// stored them as separate top-level keys.
const currentCacheVersion = 3

// ValidateCaches runs schema migration on cold start. It returns true when
// the cache is already current and nothing was touched, false whenever a
// migration step actually ran — a signal that cached entitlement data may
// be stale and a fresh registration should be preferred.
//
// Migration is a one-way ratchet: it never downgrades and running it twice
// from the current version is a no-op.
func (c *Cache) ValidateCaches() (bool, error) {
	version := c.cacheVersion()
	if version == currentCacheVersion {
		return true, nil
	}

	c.logger.Info("cache version outdated, migrating",
		zap.Int("from", version),
		zap.Int("to", currentCacheVersion),
	)

	if version <= 2 {
		if err := c.migrateLegacyMerchandising(); err != nil {
			return false, err
		}
	}

	if err := c.setCacheVersion(currentCacheVersion); err != nil {
		return false, err
	}
	return false, nil
}

// migrateLegacyMerchandising moves the legacy top-level paywalls and
// placements keys into the user object. A user that already carries
// paywalls keeps them; the legacy keys are removed regardless, even when
// there is no user to migrate into.
func (c *Cache) migrateLegacyMerchandising() error {
	user, err := c.GetUser()
	if err != nil {
		return err
	}

	if user != nil {
		changed := false

		if len(user.Paywalls) == 0 {
			if paywalls := c.legacyPaywalls(); len(paywalls) > 0 {
				user.Paywalls = paywalls
				changed = true
			}
		}
		if len(user.Placements) == 0 {
			if placements := c.legacyPlacements(); len(placements) > 0 {
				user.Placements = placements
				changed = true
			}
		}

		if changed {
			c.logger.Info("migrated legacy paywalls/placements into user",
				zap.Int("paywalls", len(user.Paywalls)),
				zap.Int("placements", len(user.Placements)),
			)
			if err := c.SetUser(user); err != nil {
				return err
			}
		}
	}

	if err := c.store.Delete(legacyPaywallsKey); err != nil {
		return err
	}
	return c.store.Delete(legacyPlacementsKey)
}

func (c *Cache) legacyPaywalls() []entity.Paywall {
	raw, ok, err := c.store.Get(legacyPaywallsKey)
	if err != nil || !ok {
		return nil
	}
	var paywalls []entity.Paywall
	if err := json.Unmarshal(raw, &paywalls); err != nil {
		c.logger.Warn("dropping unreadable legacy paywalls", zap.Error(err))
		return nil
	}
	return paywalls
}

func (c *Cache) legacyPlacements() []entity.Placement {
	raw, ok, err := c.store.Get(legacyPlacementsKey)
	if err != nil || !ok {
		return nil
	}
	var placements []entity.Placement
	if err := json.Unmarshal(raw, &placements); err != nil {
		c.logger.Warn("dropping unreadable legacy placements", zap.Error(err))
		return nil
	}
	return placements
}
