package network

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// fallbackRoundTripper handles DNS failure on the primary host: it fetches
// a fallback host from a well-known static URL and retries the request once
// against it. If the fallback host equals the host that just failed there
// is nothing left to try and the original error is returned.
type fallbackRoundTripper struct {
	next        http.RoundTripper
	host        *hostState
	fallbackURL string
	logger      *zap.Logger
}

func (f *fallbackRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := f.next.RoundTrip(req)
	if err == nil || !isDNSFailure(err) {
		return resp, err
	}

	fallbackHost, fetchErr := f.fetchFallbackHost(req)
	if fetchErr != nil {
		f.logger.Warn("failed to fetch fallback host", zap.Error(fetchErr))
		return nil, err
	}

	if fallbackHost == req.URL.Host {
		// Already on the fallback host; give up instead of looping.
		return nil, err
	}

	f.logger.Warn("primary host unreachable, retrying against fallback",
		zap.String("host", req.URL.Host),
		zap.String("fallback", fallbackHost),
	)

	retryReq := req.Clone(req.Context())
	retryReq.URL.Host = fallbackHost
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, err
		}
		retryReq.Body = body
	}

	resp, retryErr := f.next.RoundTrip(retryReq)
	if retryErr != nil {
		return nil, retryErr
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		f.logger.Info("switching to fallback host", zap.String("host", fallbackHost))
		f.host.setHost(fallbackHost)
	}
	return resp, nil
}

// fetchFallbackHost reads the fallback host value with a plain client so
// the failing transport chain is not involved.
func (f *fallbackRoundTripper) fetchFallbackHost(req *http.Request) (string, error) {
	plain := &http.Client{Timeout: 10 * time.Second}

	fallbackReq, err := http.NewRequestWithContext(req.Context(), http.MethodGet, f.fallbackURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := plain.Do(fallbackReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	host := strings.TrimSpace(string(raw))
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return host, nil
}

func isDNSFailure(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
