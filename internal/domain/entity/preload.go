package entity

import "time"

// PreloadedPaywallData is a disposable cache entry holding prefetched
// paywall HTML and its sub-resources. It is never authoritative: callers
// must check IsValid against their own max-age before use.
type PreloadedPaywallData struct {
	PaywallID            string
	BaseURL              string
	HTMLContent          string
	RenderItemsJSON      string
	PreloadedResourceURLs []string
	PreloadedAt          time.Time
}

// DefaultPreloadMaxAge is how long preloaded paywall data stays usable
// unless the caller specifies otherwise.
const DefaultPreloadMaxAge = 10 * time.Minute

// IsValid reports whether the entry is younger than maxAge.
func (d *PreloadedPaywallData) IsValid(maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = DefaultPreloadMaxAge
	}
	return time.Since(d.PreloadedAt) < maxAge
}

// HTMLSizeBytes returns the size of the cached HTML.
func (d *PreloadedPaywallData) HTMLSizeBytes() int {
	return len(d.HTMLContent)
}
