package apphud_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphud "github.com/apphud/apphud-go"
	"github.com/apphud/apphud-go/internal/domain/entity"
	"github.com/apphud/apphud-go/internal/infrastructure/config"
)

type stubProvider struct{}

func (stubProvider) QueryProductDetails(_ context.Context, productIDs []string) ([]entity.ProductDetails, int) {
	details := make([]entity.ProductDetails, 0, len(productIDs))
	for _, id := range productIDs {
		details = append(details, entity.ProductDetails{
			ProductID:    id,
			Title:        "Premium",
			PriceMicros:  4990000,
			CurrencyCode: "USD",
		})
	}
	return details, 0
}

type stubVerifier struct{}

func (stubVerifier) VerifySubscription(_ context.Context, productID, token string) (*entity.Subscription, error) {
	return &entity.Subscription{
		ProductID:     productID,
		Kind:          entity.KindAutoRenewable,
		Status:        entity.StatusRegular,
		ExpiresAt:     time.Now().Add(24 * time.Hour),
		PurchaseToken: token,
	}, nil
}

func (stubVerifier) VerifyProduct(_ context.Context, productID, token string) (*entity.NonRenewingPurchase, error) {
	return &entity.NonRenewingPurchase{
		ProductID:     productID,
		PurchasedAt:   time.Now(),
		PurchaseToken: token,
	}, nil
}

func newStubBackend(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()

	var registrations int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/customers", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&registrations, 1)
		w.Write([]byte(`{
			"data": {
				"results": {
					"user_id": "u1",
					"currency": {"code": "USD", "country_code": "US"},
					"subscriptions": [],
					"paywalls": [{"id": "pw1", "identifier": "main", "name": "Main", "default": true,
						"items": [{"id": "p1", "product_id": "com.example.monthly", "store": "play_store"}]}],
					"placements": [{"id": "plc1", "identifier": "onboarding",
						"paywalls": [{"id": "pw1", "identifier": "main"}]}]
				}
			}
		}`))
	})
	mux.HandleFunc("/v2/products", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"data": {
				"results": [{
					"id": "grp1", "name": "premium",
					"products": [{"id": "p1", "product_id": "com.example.monthly", "store": "play_store"}]
				}]
			}
		}`))
	})
	mux.HandleFunc("/v1/notifications", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"results":[]}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &registrations
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	return &config.Config{
		APIKey:      "test-api-key",
		Environment: "development",
		API: config.APIConfig{
			BaseURL:                 baseURL,
			ConnectTimeout:          2 * time.Second,
			RegistrationReadTimeout: 7 * time.Second,
			ReadTimeout:             5 * time.Second,
		},
		Cache: config.CacheConfig{
			Dir:             t.TempDir(),
			StalenessWindow: 25 * time.Hour,
		},
	}
}

func TestSDKBootstrap(t *testing.T) {
	srv, registrations := newStubBackend(t)

	sdk, err := apphud.New(testConfig(t, srv.URL), apphud.WithBillingProvider(stubProvider{}))
	require.NoError(t, err)
	defer sdk.Close()

	var updates int32
	sdk.OnUserUpdated(func(u *entity.User) { atomic.AddInt32(&updates, 1) })

	require.NoError(t, sdk.Start(""))

	require.Eventually(t, func() bool {
		return sdk.CurrentUser() != nil && !sdk.CurrentUser().IsTemporary
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, "u1", sdk.UserID())
	assert.NotEmpty(t, sdk.DeviceID())
	assert.False(t, sdk.HasPremiumAccess())
	require.Len(t, sdk.Paywalls(), 1)

	placement, ok := sdk.Placement("onboarding")
	require.True(t, ok)
	assert.Equal(t, "main", placement.Paywall().Identifier)

	require.Eventually(t, func() bool {
		return sdk.ProductsState().Phase == "success"
	}, 5*time.Second, 20*time.Millisecond)
	state := sdk.ProductsState()
	assert.Contains(t, state.Products, "com.example.monthly")

	assert.Equal(t, int32(1), atomic.LoadInt32(registrations))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&updates), int32(1))

	t.Run("second start is a no-op", func(t *testing.T) {
		require.NoError(t, sdk.Start(""))
		assert.Equal(t, int32(1), atomic.LoadInt32(registrations))
	})

	t.Run("refresh forces another registration", func(t *testing.T) {
		user, err := sdk.RefreshUserData(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "u1", user.UserID)
		assert.Equal(t, int32(2), atomic.LoadInt32(registrations))
	})
}

func TestSDKPurchaseSync(t *testing.T) {
	srv, _ := newStubBackend(t)

	sdk, err := apphud.New(testConfig(t, srv.URL),
		apphud.WithBillingProvider(stubProvider{}),
		apphud.WithPurchaseVerifier(stubVerifier{}))
	require.NoError(t, err)
	defer sdk.Close()

	require.NoError(t, sdk.Start(""))
	require.Eventually(t, func() bool {
		return sdk.CurrentUser() != nil && !sdk.CurrentUser().IsTemporary
	}, 5*time.Second, 20*time.Millisecond)
	require.False(t, sdk.HasPremiumAccess())

	user, err := sdk.SyncSubscription(context.Background(), "com.example.monthly", "token-1")
	require.NoError(t, err)
	require.Len(t, user.Subscriptions, 1)
	assert.True(t, sdk.HasPremiumAccess())

	t.Run("same product replaces the record instead of duplicating", func(t *testing.T) {
		user, err := sdk.SyncSubscription(context.Background(), "com.example.monthly", "token-2")
		require.NoError(t, err)
		require.Len(t, user.Subscriptions, 1)
		assert.Equal(t, "token-2", user.Subscriptions[0].PurchaseToken)
	})

	t.Run("one-time purchase merges alongside", func(t *testing.T) {
		user, err := sdk.SyncPurchase(context.Background(), "com.example.lifetime", "token-3")
		require.NoError(t, err)
		require.Len(t, user.Subscriptions, 1)
		require.Len(t, user.Purchases, 1)
		assert.Equal(t, "com.example.lifetime", user.Purchases[0].ProductID)
	})

	t.Run("without a verifier configured", func(t *testing.T) {
		bare, err := apphud.New(testConfig(t, srv.URL))
		require.NoError(t, err)
		defer bare.Close()

		_, err = bare.SyncSubscription(context.Background(), "com.example.monthly", "t")
		require.Error(t, err)
	})
}
