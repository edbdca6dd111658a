package apphud

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/apphud/apphud-go/internal/domain/entity"
	apphuderr "github.com/apphud/apphud-go/internal/domain/errors"
	"github.com/apphud/apphud-go/internal/infrastructure/executor"
	"github.com/apphud/apphud-go/internal/infrastructure/network"
	"github.com/apphud/apphud-go/internal/infrastructure/store"
)

// UserID returns the resolved user id, empty before Start.
func (s *SDK) UserID() string {
	if user := s.repo.CurrentUser(); user != nil {
		return user.UserID
	}
	return s.credentials().UserID
}

// DeviceID returns the resolved device id, empty before Start.
func (s *SDK) DeviceID() string {
	return s.credentials().DeviceID
}

// CurrentUser returns the authoritative user snapshot, nil before the
// first resolve. Treat as read-only.
func (s *SDK) CurrentUser() *entity.User {
	return s.repo.CurrentUser()
}

// HasPremiumAccess reports whether the user holds at least one active
// entitlement. Answers from the in-memory user without touching the
// network.
func (s *SDK) HasPremiumAccess() bool {
	user := s.repo.CurrentUser()
	return user != nil && user.HasPremiumAccess()
}

// HasPurchases reports whether the user carries any entitlement records at
// all, active or not.
func (s *SDK) HasPurchases() bool {
	return s.repo.HasPurchases()
}

// Paywalls returns the current paywalls, nil when not yet registered.
func (s *SDK) Paywalls() []entity.Paywall {
	if user := s.repo.CurrentUser(); user != nil {
		return user.Paywalls
	}
	return nil
}

// Placements returns the current placements, nil when not yet registered.
func (s *SDK) Placements() []entity.Placement {
	if user := s.repo.CurrentUser(); user != nil {
		return user.Placements
	}
	return nil
}

// Placement returns the placement with the given identifier.
func (s *SDK) Placement(identifier string) (*entity.Placement, bool) {
	user := s.repo.CurrentUser()
	if user == nil {
		return nil, false
	}
	for i := range user.Placements {
		if user.Placements[i].Identifier == identifier {
			return &user.Placements[i], true
		}
	}
	return nil, false
}

// RefreshUserData forces a registration round trip and returns the fresh
// user. This is the restore-purchases path: the server re-derives
// entitlements and the result replaces the in-memory user.
func (s *SDK) RefreshUserData(ctx context.Context) (*entity.User, error) {
	user, err := s.register.Execute(ctx, s.credentials(), true)
	if err != nil {
		return nil, apphuderr.From(err)
	}
	s.notify(user)
	return user, nil
}

// SyncSubscription verifies a subscription purchase token against the
// store and merges the resulting record into the current user, replacing
// any previous record for the same product.
func (s *SDK) SyncSubscription(ctx context.Context, productID, token string) (*entity.User, error) {
	if s.verifier == nil {
		return nil, apphuderr.New("purchase verification is not configured")
	}
	sub, err := s.verifier.VerifySubscription(ctx, productID, token)
	if err != nil {
		return nil, apphuderr.From(err)
	}
	return s.mergePurchase(func(u *entity.User) {
		for i := range u.Subscriptions {
			if u.Subscriptions[i].ProductID == sub.ProductID {
				u.Subscriptions[i] = *sub
				return
			}
		}
		u.Subscriptions = append(u.Subscriptions, *sub)
	})
}

// SyncPurchase verifies a one-time purchase token against the store and
// merges the resulting record into the current user.
func (s *SDK) SyncPurchase(ctx context.Context, productID, token string) (*entity.User, error) {
	if s.verifier == nil {
		return nil, apphuderr.New("purchase verification is not configured")
	}
	purchase, err := s.verifier.VerifyProduct(ctx, productID, token)
	if err != nil {
		return nil, apphuderr.From(err)
	}
	return s.mergePurchase(func(u *entity.User) {
		for i := range u.Purchases {
			if u.Purchases[i].ProductID == purchase.ProductID {
				u.Purchases[i] = *purchase
				return
			}
		}
		u.Purchases = append(u.Purchases, *purchase)
	})
}

// mergePurchase applies a verified entitlement to a copy of the current
// user, installs the copy and notifies listeners.
func (s *SDK) mergePurchase(apply func(*entity.User)) (*entity.User, error) {
	current := s.repo.CurrentUser()
	if current == nil {
		return nil, apphuderr.New("no current user to attach the purchase to")
	}

	user := *current
	user.Subscriptions = append([]entity.Subscription(nil), current.Subscriptions...)
	user.Purchases = append([]entity.NonRenewingPurchase(nil), current.Purchases...)
	apply(&user)

	s.repo.SetCurrentUser(&user, true)
	s.notify(&user)
	return &user, nil
}

// PreloadPaywall warms the screen of the paywall with the given identifier
// for the locale.
func (s *SDK) PreloadPaywall(ctx context.Context, identifier, locale string) error {
	for _, p := range s.Paywalls() {
		if p.Identifier == identifier {
			return s.preloader.Preload(ctx, &p, locale)
		}
	}
	return apphuderr.New("paywall not found: " + identifier)
}

// PreloadedPaywall returns the prefetched screen data for a paywall id when
// still valid.
func (s *SDK) PreloadedPaywall(paywallID string) (entity.PreloadedPaywallData, bool) {
	return s.preloader.Get(paywallID)
}

// ProductsState returns a snapshot of the product loading lifecycle.
func (s *SDK) ProductsState() ProductsState {
	state := s.products.State()
	return ProductsState{
		Phase:       state.Phase.String(),
		Products:    state.Products,
		FailureCode: state.FailureCode,
	}
}

// ProductsState is the public view of the product loading lifecycle.
type ProductsState struct {
	Phase       string
	Products    map[string]entity.ProductDetails
	FailureCode int
}

// SetAttribution forwards provider attribution data to the backend.
func (s *SDK) SetAttribution(ctx context.Context, provider string, rawData json.RawMessage, attributionID string) error {
	err := s.api.Attribution(ctx, network.AttributionBody{
		DeviceID:      s.credentials().DeviceID,
		Provider:      provider,
		RawData:       rawData,
		AttributionID: attributionID,
	})
	return apphuderr.From(err)
}

// GrantPromotional grants a promotional entitlement for the given number
// of days, scoped to a product or product group when provided.
func (s *SDK) GrantPromotional(ctx context.Context, daysCount int, productID, productGroupID string) error {
	creds := s.credentials()
	user, err := s.api.GrantPromotional(ctx, network.GrantPromotionalBody{
		Duration:       daysCount,
		UserID:         creds.UserID,
		DeviceID:       creds.DeviceID,
		ProductID:      productID,
		ProductGroupID: productGroupID,
	})
	if err != nil {
		return apphuderr.From(err)
	}
	s.repo.SetCurrentUser(user, true)
	s.notify(user)
	return nil
}

// TrackPaywallEvent reports a paywall interaction such as paywall_shown or
// paywall_closed.
func (s *SDK) TrackPaywallEvent(ctx context.Context, name string, paywall *entity.Paywall) error {
	creds := s.credentials()
	properties := map[string]any{}
	if paywall != nil {
		properties["paywall_id"] = paywall.ID
		if paywall.PlacementIdentifier != "" {
			properties["placement_identifier"] = paywall.PlacementIdentifier
		}
		if paywall.VariationName != "" {
			properties["variation_name"] = paywall.VariationName
		}
	}

	err := s.api.PaywallEvent(ctx, network.EventBody{
		Name:        name,
		UserID:      creds.UserID,
		DeviceID:    creds.DeviceID,
		Environment: s.cfg.Environment,
		Timestamp:   time.Now().UnixMilli(),
		Properties:  properties,
	})
	return apphuderr.From(err)
}

// SubmitPushToken registers the device push token with the backend.
func (s *SDK) SubmitPushToken(ctx context.Context, token string) error {
	err := s.api.PushToken(ctx, network.PushTokenBody{
		Token:    token,
		DeviceID: s.credentials().DeviceID,
	})
	return apphuderr.From(err)
}

// SetUserProperty sets a custom user property. With setOnce the first
// written value sticks. Passing a nil value removes the property.
func (s *SDK) SetUserProperty(ctx context.Context, key string, value any, setOnce bool) error {
	return s.sendProperty(ctx, store.UserProperty{Key: key, Value: value, SetOnce: setOnce})
}

// IncrementUserProperty increments a numeric user property server-side.
func (s *SDK) IncrementUserProperty(ctx context.Context, key string, by any) error {
	return s.sendProperty(ctx, store.UserProperty{Key: key, Value: by, Increment: true})
}

func (s *SDK) sendProperty(ctx context.Context, property store.UserProperty) error {
	if !s.cache.NeedSendProperty(property) {
		return nil
	}
	err := s.api.SendProperties(ctx, network.PropertiesBody{
		DeviceID: s.credentials().DeviceID,
		Properties: []network.PropertyDTO{{
			Name:      property.Key,
			Value:     property.Value,
			SetOnce:   property.SetOnce,
			Increment: property.Increment,
		}},
	})
	return apphuderr.From(err)
}

// MostActualRuleScreen returns the newest pending rule screen, if any.
func (s *SDK) MostActualRuleScreen() (entity.RuleScreen, bool, error) {
	return s.rules.MostActualRuleScreen()
}

// DeleteRuleScreen removes a cached rule screen after it has been shown.
func (s *SDK) DeleteRuleScreen(ruleID string) error {
	return s.rules.DeleteRuleScreen(ruleID)
}

// Logout wipes local state and restarts as a fresh anonymous install: new
// credentials are generated and a registration is scheduled.
func (s *SDK) Logout() error {
	if err := s.repo.ClearUser(); err != nil {
		return err
	}
	if err := s.cache.Clear(); err != nil {
		return err
	}
	if err := s.screens.Clear(); err != nil {
		return err
	}
	s.preloader.Clear()

	creds, err := s.resolve.Execute("")
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()

	s.logger.Info("logged out, re-registering", zap.String("user_id", creds.UserID))

	s.exec.Submit(executor.Task{
		Name:     "registration",
		Priority: executor.PriorityRegistration,
		Run: func(ctx context.Context) error {
			user, err := s.register.Execute(ctx, creds, true)
			if err != nil {
				return err
			}
			s.notify(user)
			return nil
		},
	})
	return nil
}
