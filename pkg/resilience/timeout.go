// SPDX-License-Identifier: Apache-2.0
// Package resilience provides retry, timeout and circuit breaker patterns
// used around agent execution and text generation calls.
package resilience

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jllopis/capflow/pkg/errors"
)

// TimeoutConfig controls timeout behavior.
type TimeoutConfig struct {
	// Duration is the maximum time allowed for the operation. Zero disables it.
	Duration time.Duration

	// Grace is how long to wait for fn to return once its context is done.
	// Zero returns as soon as the context is done.
	Grace time.Duration
}

// WithTimeout executes fn with a timeout boundary.
func WithTimeout(ctx context.Context, config TimeoutConfig, fn func(context.Context) error) error {
	_, err := WithTimeoutResult(ctx, config, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// WithTimeoutResult executes fn with a timeout boundary, returning both
// result and error. fn receives a context cancelled at the deadline or when
// ctx is cancelled. If fn has not returned within Grace after that, a
// CodeTimeout error is returned and fn is abandoned.
//
// Once Duration has elapsed, whatever fn returns is discarded and a
// CodeTimeout error wrapping fn's error is returned. Grace only lets fn
// finish when ctx itself was cancelled.
func WithTimeoutResult[T any](ctx context.Context, config TimeoutConfig, fn func(context.Context) (T, error)) (T, error) {
	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if config.Duration > 0 {
		runCtx, cancel = context.WithTimeout(ctx, config.Duration)
	}
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn(runCtx)
		done <- result{value, err}
	}()

	// expired reports whether runCtx ended on its own deadline rather than
	// through ctx.
	expired := func() bool {
		return config.Duration > 0 && ctx.Err() == nil &&
			stderrors.Is(runCtx.Err(), context.DeadlineExceeded)
	}
	timeout := func(cause error) (T, error) {
		var zero T
		if cause == nil {
			cause = runCtx.Err()
		}
		return zero, errors.New(errors.CodeTimeout, "operation exceeded timeout", cause).
			WithContext("timeout", config.Duration.String()).
			WithContext("grace", config.Grace.String()).
			WithRecoverable(true)
	}

	select {
	case res := <-done:
		if res.err != nil && expired() {
			return timeout(res.err)
		}
		return res.value, res.err
	case <-runCtx.Done():
	}

	if config.Grace > 0 {
		timer := time.NewTimer(config.Grace)
		defer timer.Stop()
		select {
		case res := <-done:
			if expired() {
				return timeout(res.err)
			}
			return res.value, res.err
		case <-timer.C:
		}
	}
	return timeout(nil)
}

// IsTimeout reports whether err carries CodeTimeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	return errors.AsError(err).Code == errors.CodeTimeout
}
