package network

import "encoding/json"

// Wire DTOs for the backend API. Kept separate from the domain entities so
// server format changes stay inside this package.

type customerDTO struct {
	UserID        string            `json:"user_id"`
	Currency      *currencyDTO      `json:"currency,omitempty"`
	Subscriptions []subscriptionDTO `json:"subscriptions"`
	Paywalls      []paywallDTO      `json:"paywalls"`
	Placements    []placementDTO    `json:"placements"`
}

type currencyDTO struct {
	Code        string `json:"code"`
	CountryCode string `json:"country_code"`
}

type subscriptionDTO struct {
	ProductID             string `json:"product_id"`
	Kind                  string `json:"kind"`
	Status                string `json:"status"`
	ExpiresAt             string `json:"expires_at"`
	StartedAt             string `json:"started_at"`
	CancelledAt           string `json:"cancelled_at"`
	OriginalTransactionID string `json:"original_transaction_id"`
	InRetryBilling        bool   `json:"in_retry_billing"`
	AutorenewEnabled      bool   `json:"autorenew_enabled"`
	IntroductoryActivated bool   `json:"introductory_activated"`
	GroupID               string `json:"group_id"`
	IsConsumable          bool   `json:"is_consumable"`
}

type paywallDTO struct {
	ID                      string            `json:"id"`
	Identifier              string            `json:"identifier"`
	Name                    string            `json:"name"`
	Default                 bool              `json:"default"`
	JSON                    map[string]any    `json:"json,omitempty"`
	Items                   []productDTO      `json:"items,omitempty"`
	ExperimentName          string            `json:"experiment_name,omitempty"`
	VariationName           string            `json:"variation_name,omitempty"`
	FromPaywall             string            `json:"from_paywall,omitempty"`
	Screen                  *paywallScreenDTO `json:"screen,omitempty"`
}

type paywallScreenDTO struct {
	DefaultLocale string            `json:"default_locale,omitempty"`
	URLs          map[string]string `json:"urls,omitempty"`
}

type productDTO struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Name       string `json:"name,omitempty"`
	Store      string `json:"store"`
	BasePlanID string `json:"base_plan_id,omitempty"`
}

type placementDTO struct {
	ID             string       `json:"id"`
	Identifier     string       `json:"identifier"`
	ExperimentName string       `json:"experiment_name,omitempty"`
	Paywalls       []paywallDTO `json:"paywalls,omitempty"`
}

type productGroupDTO struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Products []productDTO `json:"products"`
}

type notificationDTO struct {
	ID        string   `json:"id"`
	CreatedAt string   `json:"created_at"`
	Rule      *ruleDTO `json:"rule,omitempty"`
}

type ruleDTO struct {
	ID         string `json:"id"`
	ScreenID   string `json:"screen_id"`
	RuleName   string `json:"rule_name"`
	ScreenName string `json:"screen_name"`
}

// RegistrationBody is the /v1/customers request payload.
type RegistrationBody struct {
	Locale         string `json:"locale,omitempty"`
	SDKVersion     string `json:"sdk_version"`
	AppVersion     string `json:"app_version,omitempty"`
	DeviceFamily   string `json:"device_family,omitempty"`
	Platform       string `json:"platform"`
	DeviceType     string `json:"device_type,omitempty"`
	OSVersion      string `json:"os_version,omitempty"`
	UserID         string `json:"user_id"`
	DeviceID       string `json:"device_id"`
	TimeZone       string `json:"time_zone,omitempty"`
	IsSandbox      bool   `json:"is_sandbox"`
	IsNew          bool   `json:"is_new"`
	NeedPaywalls   bool   `json:"need_paywalls"`
	NeedPlacements bool   `json:"need_placements"`
	InstallSource  string `json:"install_source,omitempty"`
	ObserverMode   bool   `json:"observer_mode"`
	Email          string `json:"email,omitempty"`
}

// AttributionBody is the /v1/attribution request payload; provider-shaped
// sub-objects are opaque to the SDK.
type AttributionBody struct {
	DeviceID      string          `json:"device_id"`
	Provider      string          `json:"provider"`
	RawData       json.RawMessage `json:"raw_data,omitempty"`
	AttributionID string          `json:"attribution_id,omitempty"`
}

// GrantPromotionalBody is the /v1/promotions request payload.
type GrantPromotionalBody struct {
	Duration       int    `json:"duration"`
	UserID         string `json:"user_id,omitempty"`
	DeviceID       string `json:"device_id"`
	ProductID      string `json:"product_id,omitempty"`
	ProductGroupID string `json:"product_group_id,omitempty"`
}

// EventBody is the /v1/events request payload.
type EventBody struct {
	Name        string         `json:"name"`
	UserID      string         `json:"user_id,omitempty"`
	DeviceID    string         `json:"device_id,omitempty"`
	Environment string         `json:"environment"`
	Timestamp   int64          `json:"timestamp"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// PropertiesBody is the user properties payload.
type PropertiesBody struct {
	DeviceID   string        `json:"device_id"`
	Properties []PropertyDTO `json:"properties"`
}

// PropertyDTO is one property entry. A nil value removes the property
// server-side.
type PropertyDTO struct {
	Name      string `json:"name"`
	Value     any    `json:"value"`
	SetOnce   bool   `json:"set_once"`
	Increment bool   `json:"increment"`
}

// PushTokenBody is the push token registration payload.
type PushTokenBody struct {
	Token    string `json:"token"`
	DeviceID string `json:"device_id"`
}
