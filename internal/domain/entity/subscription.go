package entity

import "time"

// SubscriptionStatus describes the single state a subscription is in at any
// moment.
type SubscriptionStatus string

const (
	StatusNone     SubscriptionStatus = "none"
	StatusTrial    SubscriptionStatus = "trial"
	StatusIntro    SubscriptionStatus = "intro"
	StatusPromo    SubscriptionStatus = "promo"
	StatusRegular  SubscriptionStatus = "regular"
	StatusGrace    SubscriptionStatus = "grace"
	StatusRefunded SubscriptionStatus = "refunded"
	StatusExpired  SubscriptionStatus = "expired"
)

// MapSubscriptionStatus converts a raw server status string into a
// SubscriptionStatus, defaulting to StatusNone for unknown values.
func MapSubscriptionStatus(raw string) SubscriptionStatus {
	switch SubscriptionStatus(raw) {
	case StatusTrial, StatusIntro, StatusPromo, StatusRegular, StatusGrace, StatusRefunded, StatusExpired:
		return SubscriptionStatus(raw)
	default:
		return StatusNone
	}
}

// Kind distinguishes auto-renewable subscriptions from one-time purchases.
type Kind string

const (
	KindAutoRenewable Kind = "autorenewable"
	KindNonRenewing   Kind = "nonrenewing"
)

// MapKind converts a raw server kind string into a Kind, defaulting to
// KindNonRenewing for unknown values.
func MapKind(raw string) Kind {
	if Kind(raw) == KindAutoRenewable {
		return KindAutoRenewable
	}
	return KindNonRenewing
}

// Subscription is an auto-renewable entitlement.
type Subscription struct {
	ProductID               string             `json:"product_id"`
	Kind                    Kind               `json:"kind"`
	Status                  SubscriptionStatus `json:"status"`
	ExpiresAt               time.Time          `json:"expires_at"`
	StartedAt               time.Time          `json:"started_at"`
	CancelledAt             *time.Time         `json:"cancelled_at,omitempty"`
	PurchaseToken           string             `json:"purchase_token"`
	IsInRetryBilling        bool               `json:"is_in_retry_billing"`
	IsAutoRenewEnabled      bool               `json:"is_auto_renew_enabled"`
	IsIntroductoryActivated bool               `json:"is_introductory_activated"`
	GroupID                 string             `json:"group_id"`

	// IsTemporary marks an entitlement granted locally before the server
	// confirmed it.
	IsTemporary bool `json:"is_temporary,omitempty"`
}

// IsActive reports whether the subscription grants premium access right now.
func (s *Subscription) IsActive() bool {
	switch s.Status {
	case StatusTrial, StatusIntro, StatusPromo, StatusRegular, StatusGrace:
		if s.IsTemporary {
			return time.Now().Before(s.ExpiresAt)
		}
		return true
	default:
		return false
	}
}

// NonRenewingPurchase is a one-time entitlement.
type NonRenewingPurchase struct {
	ProductID     string     `json:"product_id"`
	PurchasedAt   time.Time  `json:"purchased_at"`
	CanceledAt    *time.Time `json:"canceled_at,omitempty"`
	PurchaseToken string     `json:"purchase_token"`
	IsConsumable  bool       `json:"is_consumable"`
}

// IsActive reports whether the purchase still grants access, i.e. it was
// never refunded.
func (p *NonRenewingPurchase) IsActive() bool {
	return p.CanceledAt == nil
}
