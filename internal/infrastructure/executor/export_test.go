package executor

import "time"

// SetRetryDelays overrides the backoff schedule so retry-exhaustion tests
// do not wait on the production timings. Call before submitting tasks.
func (e *Executor) SetRetryDelays(base, step time.Duration) {
	e.retryBase = base
	e.retryStep = step
}
