// Package endpoint constructs and bounds-retries the transport endpoint a
// concrete Adapter binds to. The transport itself is an external
// collaborator; this package only owns the retry discipline around
// acquiring one.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrCancelled is returned when a stop request is observed while retrying
// endpoint creation.
var ErrCancelled = errors.New("endpoint: creation cancelled")

const (
	// MaxRetries bounds endpoint-creation retries.
	MaxRetries = 60
	// RetryInterval is the pacing between endpoint-creation attempts.
	RetryInterval = time.Second
)

type (
	// Endpoint is the contract a concrete transport implements. Fields
	// like UID are filled in by the transport if the caller passed 0.
	Endpoint interface {
		// Start is a hook invoked by the adapter's Connect call.
		// Implementations that need no explicit startup implement it as a
		// no-op returning nil.
		Start(ctx context.Context) error
		// UID returns the endpoint's assigned process UID.
		UID() uint32
	}

	// Factory constructs one Endpoint attempt. A non-nil error means the
	// attempt failed and may be retried.
	Factory func(ctx context.Context, transport, uri string, uid uint32, preferSecondary bool, timeout time.Duration) (Endpoint, error)

	// Logger is the minimal logging surface Create needs; satisfied by
	// internal/telemetry.Logger without importing it (avoiding a cycle).
	Logger interface {
		Warn(ctx context.Context, msg string, keyvals ...any)
	}
)

// Create retries factory up to MaxRetries times at RetryInterval, logging
// each failed attempt. It returns ErrCancelled if stopRequested reports
// true between attempts, and the last error if all attempts are exhausted.
// Rationale: the bus may come up after the container that hosts models, so
// a short burst of connection failures at startup is expected, not fatal.
func Create(ctx context.Context, log Logger, factory Factory, transport, uri string, uid uint32, preferSecondary bool, timeout time.Duration, stopRequested func() bool) (Endpoint, error) {
	limiter := rate.NewLimiter(rate.Every(RetryInterval), 1)

	var lastErr error
	for attempt := 1; attempt <= MaxRetries; attempt++ {
		if stopRequested != nil && stopRequested() {
			return nil, ErrCancelled
		}
		if attempt > 1 {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("endpoint: %w", err)
			}
			if stopRequested != nil && stopRequested() {
				return nil, ErrCancelled
			}
		}
		ep, err := factory(ctx, transport, uri, uid, preferSecondary, timeout)
		if err == nil {
			return ep, nil
		}
		lastErr = err
		if log != nil {
			log.Warn(ctx, "endpoint creation failed, retrying", "attempt", attempt, "error", err)
		}
	}
	return nil, fmt.Errorf("endpoint: exhausted %d attempts: %w", MaxRetries, lastErr)
}
