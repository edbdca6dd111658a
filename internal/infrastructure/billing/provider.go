// Package billing talks to the platform store: product metadata queries
// feeding the product loading state machine, and Play purchase token
// verification through the Android Publisher API.
package billing

import (
	"context"

	"github.com/apphud/apphud-go/internal/domain/entity"
	"github.com/apphud/apphud-go/internal/domain/service"
)

// Provider supplies live store metadata for SKUs. Implementations return
// the loaded details together with a billing response code; a non-zero
// code means the query failed and details must be ignored.
type Provider interface {
	QueryProductDetails(ctx context.Context, productIDs []string) ([]entity.ProductDetails, int)
}

// PurchaseVerifier resolves store purchase tokens into entitlement
// records. GoogleVerifier is the production implementation.
type PurchaseVerifier interface {
	VerifySubscription(ctx context.Context, productID, token string) (*entity.Subscription, error)
	VerifyProduct(ctx context.Context, productID, token string) (*entity.NonRenewingPurchase, error)
}

// Unavailable is the provider used when no store credentials are
// configured. Every query fails with a non-transient code so the state
// machine settles in failed without burning retries.
type Unavailable struct{}

func (Unavailable) QueryProductDetails(context.Context, []string) ([]entity.ProductDetails, int) {
	return nil, service.BillingFeatureUnsupported
}
