// Package network implements the SDK's HTTP transport: header attachment,
// per-attempt connect timeouts, bounded retry, host fallback on DNS
// failure and pretty-printed traffic logging, composed as a fixed
// RoundTripper chain.
package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apphuderr "github.com/apphud/apphud-go/internal/domain/errors"
	"github.com/apphud/apphud-go/internal/infrastructure/config"
	"github.com/apphud/apphud-go/internal/infrastructure/logging"
)

// SDK identification headers sent with every request.
const (
	sdkName    = "Go"
	sdkVersion = "1.0.0"
)

// hostState is the mutable base host shared between the client and the
// fallback layer, which switches it when the primary host stops resolving.
type hostState struct {
	mu   sync.RWMutex
	base *url.URL
}

func (h *hostState) get() *url.URL {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.base
}

func (h *hostState) setHost(host string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rebased := *h.base
	rebased.Host = host
	h.base = &rebased
}

// Client is the transport every remote call goes through.
type Client struct {
	httpClient *http.Client
	host       *hostState
	cfg        config.APIConfig
	logger     *zap.Logger
}

// NewClient builds the transport chain. Layer order, outermost first:
// logging, host fallback, retry, headers.
func NewClient(cfg config.APIConfig, apiKey string, verbose bool) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	host := &hostState{base: base}
	logger := logging.WithComponent("network")

	inner := &http.Transport{
		DialContext:         dialWithContextTimeout(cfg.ConnectTimeout),
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	var rt http.RoundTripper = inner
	rt = &headersRoundTripper{next: rt, apiKey: apiKey}
	rt = &retryRoundTripper{next: rt, logger: logger, firstConnectTimeout: cfg.ConnectTimeout}
	rt = &fallbackRoundTripper{next: rt, host: host, fallbackURL: cfg.FallbackHostURL, logger: logger}
	if verbose {
		rt = &loggingRoundTripper{next: rt, logger: logger}
	}

	return &Client{
		httpClient: &http.Client{Transport: rt},
		host:       host,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// dialWithContextTimeout returns a DialContext that honors a per-attempt
// connect timeout smuggled through the request context by the retry layer.
func dialWithContextTimeout(defaultTimeout time.Duration) func(context.Context, string, string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		timeout := defaultTimeout
		if t, ok := ctx.Value(connectTimeoutKey{}).(time.Duration); ok {
			timeout = t
		}
		d := net.Dialer{Timeout: timeout}
		return d.DialContext(ctx, network, addr)
	}
}

// BaseURL returns the current base URL, which may have been switched to the
// fallback host.
func (c *Client) BaseURL() string {
	return c.host.get().String()
}

// Do performs a JSON round trip against path and unwraps the response
// envelope, returning the raw "results" payload.
func (c *Client) Do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	pathOnly := path
	var rawQuery string
	if i := strings.IndexByte(path, '?'); i >= 0 {
		pathOnly, rawQuery = path[:i], path[i+1:]
	}
	endpoint := c.host.get().JoinPath(pathOnly)
	endpoint.RawQuery = rawQuery

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apphuderr.NewNetwork("failed to read response body", err)
	}

	return unwrapEnvelope(resp.StatusCode, raw)
}

// DoRaw performs a round trip and returns the response body without
// envelope handling. Used for HTML screens and resource prefetching.
func (c *Client) DoRaw(ctx context.Context, method, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apphuderr.NewHTTPStatus(resp.StatusCode, "unexpected status for "+rawURL)
	}
	return io.ReadAll(resp.Body)
}

// classifyTransportError maps low-level client errors onto the domain
// taxonomy so callers can distinguish timeouts from unreachable hosts.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apphuderr.NewNetwork("request timed out", apphuderr.ErrNetworkTimeout)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return apphuderr.NewNetwork("host unreachable", apphuderr.ErrHostUnreachable)
	}
	if strings.Contains(err.Error(), "connection refused") {
		return apphuderr.NewNetwork("host unreachable", apphuderr.ErrHostUnreachable)
	}
	return apphuderr.NewNetwork(err.Error(), err)
}
