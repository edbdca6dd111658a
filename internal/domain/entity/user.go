package entity

// User is the identity and entitlement snapshot for the current install.
// At most one authoritative User exists in memory at a time; all mutation
// goes through the user repository.
type User struct {
	UserID        string                `json:"user_id"`
	DeviceID      string                `json:"device_id"`
	CurrencyCode  string                `json:"currency_code,omitempty"`
	CountryCode   string                `json:"country_code,omitempty"`
	Subscriptions []Subscription        `json:"subscriptions"`
	Purchases     []NonRenewingPurchase `json:"purchases"`
	Paywalls      []Paywall             `json:"paywalls"`
	Placements    []Placement           `json:"placements"`

	// IsTemporary marks a locally generated placeholder that exists before
	// the first successful registration.
	IsTemporary bool `json:"is_temporary"`
}

// NewTemporaryUser creates a placeholder user from resolved credentials.
// It is replaced wholesale by the server response on successful registration.
func NewTemporaryUser(userID, deviceID string) *User {
	return &User{
		UserID:      userID,
		DeviceID:    deviceID,
		IsTemporary: true,
	}
}

// HasPurchases returns true if the user has any subscriptions or
// non-renewing purchases of any status.
func (u *User) HasPurchases() bool {
	return len(u.Subscriptions) > 0 || len(u.Purchases) > 0
}

// HasPremiumAccess returns true if the user has at least one active
// subscription or one active non-renewing purchase.
func (u *User) HasPremiumAccess() bool {
	for i := range u.Subscriptions {
		if u.Subscriptions[i].IsActive() {
			return true
		}
	}
	for i := range u.Purchases {
		if u.Purchases[i].IsActive() {
			return true
		}
	}
	return false
}
