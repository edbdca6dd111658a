package command

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/apphud/apphud-go/internal/domain/entity"
	"github.com/apphud/apphud-go/internal/infrastructure/logging"
	"github.com/apphud/apphud-go/internal/infrastructure/network"
	"github.com/apphud/apphud-go/internal/infrastructure/rulescache"
)

// FetchRuleScreens pulls pending rules for the device, renders and caches
// each screen that is not cached yet, and acknowledges delivery so the
// backend stops re-sending the rule.
type FetchRuleScreens struct {
	api      *network.RemoteAPI
	screens  *rulescache.Cache
	deviceID func() string
	logger   *zap.Logger
}

func NewFetchRuleScreens(api *network.RemoteAPI, screens *rulescache.Cache, deviceID func() string) *FetchRuleScreens {
	return &FetchRuleScreens{
		api:      api,
		screens:  screens,
		deviceID: deviceID,
		logger:   logging.WithComponent("rules"),
	}
}

// Execute runs one fetch cycle. A failure on one rule does not stop the
// others; the first error is returned after the cycle so the caller can
// schedule a retry.
func (f *FetchRuleScreens) Execute(ctx context.Context) error {
	deviceID := f.deviceID()
	rules, err := f.api.Notifications(ctx, deviceID)
	if err != nil {
		return err
	}

	var firstErr error
	for _, rule := range rules {
		if err := f.fetchOne(ctx, rule, deviceID); err != nil {
			f.logger.Warn("failed to fetch rule screen",
				zap.String("rule_id", rule.ID),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (f *FetchRuleScreens) fetchOne(ctx context.Context, rule entity.Rule, deviceID string) error {
	if _, ok, err := f.screens.Get(rule.ID); err != nil {
		return err
	} else if ok {
		// Already rendered; just re-acknowledge in case the first ack was lost.
		return f.api.ReadNotifications(ctx, rule.ID, deviceID)
	}

	html, err := f.api.ScreenHTML(ctx, rule.ScreenID, deviceID)
	if err != nil {
		return err
	}

	screen := entity.RuleScreen{
		CreatedAt:  time.Now().UnixMilli(),
		Rule:       rule,
		HTMLScreen: html,
	}
	if err := f.screens.Save(screen); err != nil {
		return err
	}

	f.logger.Info("rule screen cached",
		zap.String("rule_id", rule.ID),
		zap.String("screen_id", rule.ScreenID),
	)
	return f.api.ReadNotifications(ctx, rule.ID, deviceID)
}

// MostActualRuleScreen returns the newest cached screen, if any.
func (f *FetchRuleScreens) MostActualRuleScreen() (entity.RuleScreen, bool, error) {
	return f.screens.MostActual()
}

// DeleteRuleScreen removes a cached screen after it has been shown.
func (f *FetchRuleScreens) DeleteRuleScreen(ruleID string) error {
	return f.screens.Delete(ruleID)
}
