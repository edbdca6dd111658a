package network

import (
	"time"

	"go.uber.org/zap"

	"github.com/apphud/apphud-go/internal/domain/entity"
)

// apiDateLayout is the timestamp format the backend emits.
const apiDateLayout = "2006-01-02T15:04:05.000Z07:00"

// mapCustomer converts a customer payload into a domain User. The server
// does not echo the device id, so the caller supplies the one the request
// was made with.
func mapCustomer(dto *customerDTO, deviceID string, logger *zap.Logger) *entity.User {
	user := &entity.User{
		UserID:        dto.UserID,
		DeviceID:      deviceID,
		Subscriptions: []entity.Subscription{},
		Purchases:     []entity.NonRenewingPurchase{},
		Paywalls:      mapPaywalls(dto.Paywalls, ""),
		Placements:    mapPlacements(dto.Placements),
	}
	if dto.Currency != nil {
		user.CurrencyCode = dto.Currency.Code
		user.CountryCode = dto.Currency.CountryCode
	}

	for i := range dto.Subscriptions {
		s := &dto.Subscriptions[i]
		if entity.MapKind(s.Kind) == entity.KindAutoRenewable {
			sub, ok := mapSubscription(s, logger)
			if ok {
				user.Subscriptions = append(user.Subscriptions, sub)
			}
			continue
		}
		user.Purchases = append(user.Purchases, mapPurchase(s))
	}

	return user
}

// mapSubscription converts one auto-renewable record. A record whose
// expires_at cannot be parsed is dropped entirely rather than kept with a
// zero expiry, since expiry drives entitlement checks.
func mapSubscription(dto *subscriptionDTO, logger *zap.Logger) (entity.Subscription, bool) {
	expiresAt, err := time.Parse(apiDateLayout, dto.ExpiresAt)
	if err != nil {
		logger.Warn("dropping subscription with malformed expires_at",
			zap.String("product_id", dto.ProductID),
			zap.String("expires_at", dto.ExpiresAt),
		)
		return entity.Subscription{}, false
	}

	sub := entity.Subscription{
		ProductID:               dto.ProductID,
		Kind:                    entity.KindAutoRenewable,
		Status:                  entity.MapSubscriptionStatus(dto.Status),
		ExpiresAt:               expiresAt,
		PurchaseToken:           dto.OriginalTransactionID,
		IsInRetryBilling:        dto.InRetryBilling,
		IsAutoRenewEnabled:      dto.AutorenewEnabled,
		IsIntroductoryActivated: dto.IntroductoryActivated,
		GroupID:                 dto.GroupID,
	}
	if t, err := time.Parse(apiDateLayout, dto.StartedAt); err == nil {
		sub.StartedAt = t
	}
	if t, err := time.Parse(apiDateLayout, dto.CancelledAt); err == nil {
		sub.CancelledAt = &t
	}
	return sub, true
}

func mapPurchase(dto *subscriptionDTO) entity.NonRenewingPurchase {
	p := entity.NonRenewingPurchase{
		ProductID:     dto.ProductID,
		PurchaseToken: dto.OriginalTransactionID,
		IsConsumable:  dto.IsConsumable,
	}
	if t, err := time.Parse(apiDateLayout, dto.StartedAt); err == nil {
		p.PurchasedAt = t
	}
	if t, err := time.Parse(apiDateLayout, dto.CancelledAt); err == nil {
		p.CanceledAt = &t
	}
	return p
}

func mapPaywalls(dtos []paywallDTO, placementIdentifier string) []entity.Paywall {
	paywalls := make([]entity.Paywall, 0, len(dtos))
	for i := range dtos {
		paywalls = append(paywalls, mapPaywall(&dtos[i], placementIdentifier))
	}
	return paywalls
}

func mapPaywall(dto *paywallDTO, placementIdentifier string) entity.Paywall {
	p := entity.Paywall{
		ID:                      dto.ID,
		Identifier:              dto.Identifier,
		Name:                    dto.Name,
		Default:                 dto.Default,
		JSON:                    dto.JSON,
		Products:                mapProducts(dto.Items),
		ExperimentName:          dto.ExperimentName,
		VariationName:           dto.VariationName,
		ParentPaywallIdentifier: dto.FromPaywall,
		PlacementIdentifier:     placementIdentifier,
	}
	if dto.Screen != nil {
		p.Screen = &entity.PaywallScreen{
			DefaultLocale: dto.Screen.DefaultLocale,
			URLs:          dto.Screen.URLs,
		}
	}
	return p
}

func mapPlacements(dtos []placementDTO) []entity.Placement {
	placements := make([]entity.Placement, 0, len(dtos))
	for i := range dtos {
		d := &dtos[i]
		placements = append(placements, entity.Placement{
			ID:             d.ID,
			Identifier:     d.Identifier,
			ExperimentName: d.ExperimentName,
			Paywalls:       mapPaywalls(d.Paywalls, d.Identifier),
		})
	}
	return placements
}

func mapProducts(dtos []productDTO) []entity.Product {
	if len(dtos) == 0 {
		return nil
	}
	products := make([]entity.Product, 0, len(dtos))
	for _, d := range dtos {
		store := entity.Store(d.Store)
		if store != entity.StorePlay {
			store = entity.StoreUnknown
		}
		products = append(products, entity.Product{
			ID:         d.ID,
			ProductID:  d.ProductID,
			Name:       d.Name,
			Store:      store,
			BasePlanID: d.BasePlanID,
		})
	}
	return products
}

func mapRules(dtos []notificationDTO) []entity.Rule {
	rules := make([]entity.Rule, 0, len(dtos))
	for i := range dtos {
		d := &dtos[i]
		if d.Rule == nil {
			continue
		}
		rules = append(rules, entity.Rule{
			ID:         d.Rule.ID,
			ScreenID:   d.Rule.ScreenID,
			RuleName:   d.Rule.RuleName,
			ScreenName: d.Rule.ScreenName,
		})
	}
	return rules
}
