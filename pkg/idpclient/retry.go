package idpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retry runs fn until it succeeds, fails permanently or the attempt budget is
// spent. Only 5xx and transport failures are retried.
func (c *Client) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BaseDelay
	b.Multiplier = 2
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxAttempts-1)), ctx)

	attempts := 0
	var last error
	err := backoff.RetryNotify(func() error {
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		last = err
		return err
	}, policy, func(err error, wait time.Duration) {
		c.observer.ObserveRetry(op)
		c.logger.DebugContext(ctx, "identity call failed, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempts),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
	})
	if err == nil {
		return nil
	}

	if retryable(err) {
		return &UnavailableError{Op: op, Attempts: attempts, Err: err}
	}
	if ctx.Err() != nil && last != nil {
		// Cancelled between attempts; keep the last failure visible.
		return fmt.Errorf("%w (last failure: %v)", err, last)
	}
	return err
}

func retryable(err error) bool {
	var unavailable *UnavailableError
	if errors.As(err, &unavailable) {
		// Already retried at a lower level, e.g. the token fetch.
		return false
	}
	var se *statusError
	var te *transportError
	return errors.As(err, &se) || errors.As(err, &te)
}

func isUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}

func isAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}
