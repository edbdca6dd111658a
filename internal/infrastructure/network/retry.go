package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	// maxAttempts bounds the whole retry loop; exhausting it surfaces a
	// terminal error to the caller.
	maxAttempts = 3
	retryDelay  = 2 * time.Second

	// The first attempt fails fast; retries get a longer connect window.
	retryConnectTimeout = 5 * time.Second
)

type connectTimeoutKey struct{}

// retryRoundTripper retries transient failures: transport errors, 5xx
// responses and 429. Everything in 2xx..4xx except 429 is terminal and
// returned as-is for the envelope layer to interpret.
type retryRoundTripper struct {
	next                http.RoundTripper
	logger              *zap.Logger
	firstConnectTimeout time.Duration
}

func (r *retryRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	attempt := 0

	operation := func() error {
		attemptReq := req
		if attempt > 0 {
			ctx := req.Context()
			attemptReq = req.Clone(contextWithConnectTimeout(ctx, retryConnectTimeout))
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return backoff.Permanent(fmt.Errorf("failed to rewind request body: %w", err))
				}
				attemptReq.Body = body
			}
		}
		attempt++

		res, err := r.next.RoundTrip(attemptReq)
		if err != nil {
			r.logger.Debug("request attempt failed",
				zap.Int("attempt", attempt),
				zap.String("url", req.URL.String()),
				zap.Error(err),
			)
			return err
		}

		if shouldRetryStatus(res.StatusCode) {
			// Drain so the connection can be reused by the next attempt.
			io.Copy(io.Discard, res.Body)
			res.Body.Close()
			r.logger.Debug("retriable response status",
				zap.Int("attempt", attempt),
				zap.Int("status", res.StatusCode),
			)
			return fmt.Errorf("retriable status %d", res.StatusCode)
		}

		resp = res
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(retryDelay), maxAttempts-1)
	if err := backoff.Retry(operation, backoff.WithContext(policy, req.Context())); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return nil, permanent.Err
		}
		return nil, fmt.Errorf("no time to retry: %w", err)
	}
	return resp, nil
}

func shouldRetryStatus(code int) bool {
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}

func contextWithConnectTimeout(ctx context.Context, timeout time.Duration) context.Context {
	return context.WithValue(ctx, connectTimeoutKey{}, timeout)
}
