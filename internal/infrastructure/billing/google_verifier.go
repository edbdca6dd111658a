package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/awa/go-iap/playstore"

	"github.com/apphud/apphud-go/internal/domain/entity"
)

// Play payment states, per the Android Publisher API.
const (
	paymentPending   = 0
	paymentReceived  = 1
	paymentFreeTrial = 2
	paymentDeferred  = 3
)

// GoogleVerifier checks Play purchase tokens against the Android Publisher
// API using a service account.
type GoogleVerifier struct {
	client      *playstore.Client
	packageName string
}

func NewGoogleVerifier(serviceAccountJSON []byte, packageName string) (*GoogleVerifier, error) {
	client, err := playstore.New(serviceAccountJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to create play store client: %w", err)
	}
	return &GoogleVerifier{client: client, packageName: packageName}, nil
}

// VerifySubscription resolves a subscription purchase token into an
// entitlement record.
func (v *GoogleVerifier) VerifySubscription(ctx context.Context, productID, token string) (*entity.Subscription, error) {
	purchase, err := v.client.VerifySubscription(ctx, v.packageName, productID, token)
	if err != nil {
		return nil, fmt.Errorf("failed to verify subscription token: %w", err)
	}

	expiresAt := time.UnixMilli(purchase.ExpiryTimeMillis)
	sub := &entity.Subscription{
		ProductID:          productID,
		Kind:               entity.KindAutoRenewable,
		Status:             subscriptionStatus(purchase.PaymentState, expiresAt),
		ExpiresAt:          expiresAt,
		StartedAt:          time.UnixMilli(purchase.StartTimeMillis),
		PurchaseToken:      token,
		IsAutoRenewEnabled: purchase.AutoRenewing,
	}
	if purchase.UserCancellationTimeMillis > 0 {
		cancelled := time.UnixMilli(purchase.UserCancellationTimeMillis)
		sub.CancelledAt = &cancelled
	}
	return sub, nil
}

// VerifyProduct resolves a one-time purchase token into an entitlement
// record.
func (v *GoogleVerifier) VerifyProduct(ctx context.Context, productID, token string) (*entity.NonRenewingPurchase, error) {
	purchase, err := v.client.VerifyProduct(ctx, v.packageName, productID, token)
	if err != nil {
		return nil, fmt.Errorf("failed to verify product token: %w", err)
	}

	return &entity.NonRenewingPurchase{
		ProductID:     productID,
		PurchasedAt:   time.UnixMilli(purchase.PurchaseTimeMillis),
		PurchaseToken: token,
	}, nil
}

func subscriptionStatus(paymentState *int64, expiresAt time.Time) entity.SubscriptionStatus {
	if time.Now().After(expiresAt) {
		return entity.StatusExpired
	}
	if paymentState == nil {
		return entity.StatusNone
	}
	switch *paymentState {
	case paymentFreeTrial:
		return entity.StatusTrial
	case paymentReceived, paymentDeferred:
		return entity.StatusRegular
	case paymentPending:
		return entity.StatusGrace
	default:
		return entity.StatusNone
	}
}
