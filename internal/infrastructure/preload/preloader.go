// Package preload warms paywall screens before display: the HTML document
// and the sub-resources it references are fetched ahead of time and kept
// in memory so the rendering layer can show the screen without waiting on
// the network.
package preload

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/apphud/apphud-go/internal/domain/entity"
	"github.com/apphud/apphud-go/internal/infrastructure/logging"
	"github.com/apphud/apphud-go/internal/infrastructure/network"
)

// resourceAttrPattern pulls src/href attribute values out of the screen
// HTML. Screens are generated by the dashboard, so attribute quoting is
// predictable enough that a full HTML parser is unnecessary.
var resourceAttrPattern = regexp.MustCompile(`(?:src|href)\s*=\s*"([^"]+)"`)

// Preloader caches prefetched paywall screens keyed by paywall id.
type Preloader struct {
	client *network.Client

	mu     sync.Mutex
	cache  map[string]entity.PreloadedPaywallData
	maxAge time.Duration
	logger *zap.Logger
}

func NewPreloader(client *network.Client) *Preloader {
	return &Preloader{
		client: client,
		cache:  make(map[string]entity.PreloadedPaywallData),
		maxAge: entity.DefaultPreloadMaxAge,
		logger: logging.WithComponent("preload"),
	}
}

// Preload fetches the screen for the paywall in the given locale along with
// its sub-resources. A still-valid cache entry short-circuits. Failing to
// fetch an individual sub-resource is tolerated; the document itself is not.
func (p *Preloader) Preload(ctx context.Context, paywall *entity.Paywall, locale string) error {
	if paywall.Screen == nil {
		return fmt.Errorf("paywall %s has no screen to preload", paywall.Identifier)
	}
	screenURL := paywall.Screen.URLForLocale(locale)
	if screenURL == "" {
		return fmt.Errorf("paywall %s has no screen URL for locale %q", paywall.Identifier, locale)
	}

	p.mu.Lock()
	if entry, ok := p.cache[paywall.ID]; ok && entry.IsValid(p.maxAge) {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	html, err := p.client.DoRaw(ctx, http.MethodGet, screenURL)
	if err != nil {
		return fmt.Errorf("failed to fetch paywall screen: %w", err)
	}

	var fetched []string
	for _, resource := range extractResourceURLs(string(html), screenURL) {
		if _, err := p.client.DoRaw(ctx, http.MethodGet, resource); err != nil {
			p.logger.Debug("failed to prefetch screen resource",
				zap.String("url", resource), zap.Error(err))
			continue
		}
		fetched = append(fetched, resource)
	}

	var renderItems string
	if paywall.JSON != nil {
		if raw, err := json.Marshal(paywall.JSON); err == nil {
			renderItems = string(raw)
		}
	}

	p.mu.Lock()
	p.cache[paywall.ID] = entity.PreloadedPaywallData{
		PaywallID:             paywall.ID,
		BaseURL:               screenURL,
		HTMLContent:           string(html),
		RenderItemsJSON:       renderItems,
		PreloadedResourceURLs: fetched,
		PreloadedAt:           time.Now(),
	}
	p.mu.Unlock()

	p.logger.Info("paywall screen preloaded",
		zap.String("paywall", paywall.Identifier),
		zap.Int("resources", len(fetched)),
	)
	return nil
}

// Get returns the cached entry for a paywall if it is still valid.
func (p *Preloader) Get(paywallID string) (entity.PreloadedPaywallData, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.cache[paywallID]
	if !ok || !entry.IsValid(p.maxAge) {
		return entity.PreloadedPaywallData{}, false
	}
	return entry, true
}

// Invalidate drops the cached entry for a paywall.
func (p *Preloader) Invalidate(paywallID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cache, paywallID)
}

// Clear drops every cached entry. Used on logout.
func (p *Preloader) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[string]entity.PreloadedPaywallData)
}

// extractResourceURLs returns the absolute URLs of sub-resources the
// document references, deduplicated, resolved against the document URL.
// Anchors and non-http schemes are skipped.
func extractResourceURLs(html, docURL string) []string {
	base, err := url.Parse(docURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	for _, match := range resourceAttrPattern.FindAllStringSubmatch(html, -1) {
		ref, err := url.Parse(match[1])
		if err != nil {
			continue
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			continue
		}
		if resolved.String() == docURL {
			continue
		}
		key := resolved.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
