package entity

// Store identifies the platform store a product is sold through.
type Store string

const (
	StorePlay    Store = "play_store"
	StoreUnknown Store = "unknown"
)

// ProductDetails is live store metadata for a product, populated
// asynchronously from the billing provider rather than from the
// registration response.
type ProductDetails struct {
	ProductID     string `json:"product_id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	PriceMicros   int64  `json:"price_micros"`
	CurrencyCode  string `json:"currency_code"`
	BillingPeriod string `json:"billing_period,omitempty"`
	BasePlanID    string `json:"base_plan_id,omitempty"`
}

// ProductGroup is a dashboard-configured permission group of products.
type ProductGroup struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Products []Product `json:"products"`
}

// Product is a paywall product reference. Details stays nil until the
// billing provider delivers store metadata for the SKU.
type Product struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Name       string `json:"name,omitempty"`
	Store      Store  `json:"store"`
	BasePlanID string `json:"base_plan_id,omitempty"`

	Details *ProductDetails `json:"-"`
}
