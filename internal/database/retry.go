package database

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"pichost/internal/logging"
	"pichost/internal/metrics"
)

// retryPolicy bounds retries of transient store failures.
type retryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

var defaultRetryPolicy = retryPolicy{
	MaxRetries:     3,
	InitialBackoff: 50 * time.Millisecond,
	MaxBackoff:     500 * time.Millisecond,
}

// isTransientNetError reports connection-level failures common to both engines.
func isTransientNetError(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// withRetry runs fn, retrying while transient reports true, and records one
// query metric for the whole operation.
func withRetry(ctx context.Context, op string, policy retryPolicy, transient func(error) bool, fn func(ctx context.Context) error) error {
	start := time.Now()
	backoff := policy.InitialBackoff

	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil || attempt >= policy.MaxRetries || !transient(err) || ctx.Err() != nil {
			break
		}

		metrics.DBQueryRetries.WithLabelValues(op).Inc()
		logging.Warn("Transient database error on %s (attempt %d/%d): %v", op, attempt+1, policy.MaxRetries, err)

		select {
		case <-ctx.Done():
			recordQuery(op, start, ctx.Err())
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}

	recordQuery(op, start, err)
	return err
}

// retriedInsert wraps one insert attempt for withRetry. When an earlier
// attempt failed with a connection error it may still have committed, so a
// duplicate reported by the next attempt means the row is already there.
func retriedInsert(duplicate func(error) bool, fn func(ctx context.Context) error) func(ctx context.Context) error {
	var prev error
	return func(ctx context.Context) error {
		err := fn(ctx)
		if prev != nil && isTransientNetError(prev) && duplicate(err) {
			logging.Debug("Insert committed before a lost connection, treating duplicate as success")
			err = nil
		}
		prev = err
		return err
	}
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

func recordRowsAffected(operation string, n int64) {
	if n > 0 {
		metrics.DBRowsAffected.WithLabelValues(operation).Observe(float64(n))
	}
}
