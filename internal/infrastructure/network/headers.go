package network

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// headersRoundTripper attaches the auth and identification headers every
// request carries. It sits below the retry layer so each attempt gets a
// fresh Idempotency-Key, matching the backend's established contract.
type headersRoundTripper struct {
	next   http.RoundTripper
	apiKey string
}

func (h *headersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	req.Header.Set("User-Agent", fmt.Sprintf("Apphud Go (%s %s)", sdkName, sdkVersion))
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Accept", "application/json; utf-8")
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("X-Platform", "android")
	req.Header.Set("X-Store", "play_store")
	req.Header.Set("X-SDK", sdkName)
	req.Header.Set("X-SDK-VERSION", sdkVersion)
	req.Header.Set("Idempotency-Key", uuid.NewString())

	return h.next.RoundTrip(req)
}
