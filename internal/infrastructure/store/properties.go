package store

import (
	"encoding/json"

	"go.uber.org/zap"
)

// UserProperty is a custom attribute attached to the user. SetOnce
// properties are never overwritten; Increment properties always resend.
type UserProperty struct {
	Key       string `json:"key"`
	Value     any    `json:"value"`
	SetOnce   bool   `json:"set_once"`
	Increment bool   `json:"increment"`
}

// NeedSendProperty decides whether a property should go to the server and
// records it locally when it should. Unchanged values and attempts to
// overwrite set-once properties are skipped to avoid needless traffic.
func (c *Cache) NeedSendProperty(property UserProperty) bool {
	properties := c.properties()
	existing, exists := properties[property.Key]

	if property.Value == nil {
		// nil value removes the property; nothing to send if it was
		// never set.
		if !exists {
			return false
		}
		delete(properties, property.Key)
		c.setProperties(properties)
		return true
	}

	if property.Increment {
		if exists {
			if existing.SetOnce {
				c.logger.Info("skipping property send, previously marked as not updatable",
					zap.String("key", property.Key))
				return false
			}
			delete(properties, property.Key)
			c.setProperties(properties)
		}
		return true
	}

	if exists {
		if existing.SetOnce {
			c.logger.Info("skipping property send, previously marked as not updatable",
				zap.String("key", property.Key))
			return false
		}
		if existing.Value == property.Value {
			c.logger.Info("skipping property send, value unchanged",
				zap.String("key", property.Key))
			return false
		}
	}

	properties[property.Key] = property
	c.setProperties(properties)
	return true
}

func (c *Cache) properties() map[string]UserProperty {
	raw, ok, err := c.store.Get(propertiesKey)
	if err != nil || !ok {
		return make(map[string]UserProperty)
	}
	var properties map[string]UserProperty
	if err := json.Unmarshal(raw, &properties); err != nil {
		return make(map[string]UserProperty)
	}
	return properties
}

func (c *Cache) setProperties(properties map[string]UserProperty) {
	raw, err := json.Marshal(properties)
	if err != nil {
		return
	}
	if err := c.store.Set(propertiesKey, raw); err != nil {
		c.logger.Warn("failed to persist properties", zap.Error(err))
	}
}
