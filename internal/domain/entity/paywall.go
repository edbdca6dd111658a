package entity

// PaywallScreen is an HTML-based paywall descriptor. URLs are keyed by
// lowercase locale code, with "en" as the conventional default.
type PaywallScreen struct {
	DefaultLocale string            `json:"default_locale,omitempty"`
	URLs          map[string]string `json:"urls,omitempty"`
}

// URLForLocale returns the screen URL for the given locale, falling back to
// the default locale and then to any available URL.
func (s *PaywallScreen) URLForLocale(locale string) string {
	if u, ok := s.URLs[locale]; ok {
		return u
	}
	if u, ok := s.URLs[s.DefaultLocale]; ok {
		return u
	}
	for _, u := range s.URLs {
		return u
	}
	return ""
}

// Paywall is a merchandising configuration unit. The JSON field is an opaque
// document configured in the dashboard; the SDK never interprets it, only
// the rendering layer does.
type Paywall struct {
	ID                      string         `json:"id"`
	Identifier              string         `json:"identifier"`
	Name                    string         `json:"name"`
	Default                 bool           `json:"default"`
	JSON                    map[string]any `json:"json,omitempty"`
	Products                []Product      `json:"products,omitempty"`
	ExperimentName          string         `json:"experiment_name,omitempty"`
	VariationName           string         `json:"variation_name,omitempty"`
	ParentPaywallIdentifier string         `json:"parent_paywall_identifier,omitempty"`
	PlacementIdentifier     string         `json:"placement_identifier,omitempty"`
	Screen                  *PaywallScreen `json:"screen,omitempty"`
}

// Placement binds a paywall to a named slot in the app.
type Placement struct {
	ID             string   `json:"id"`
	Identifier     string   `json:"identifier"`
	ExperimentName string   `json:"experiment_name,omitempty"`
	Paywalls       []Paywall `json:"paywalls,omitempty"`
}

// Paywall returns the first paywall bound to this placement, or nil.
func (p *Placement) Paywall() *Paywall {
	if len(p.Paywalls) == 0 {
		return nil
	}
	return &p.Paywalls[0]
}
