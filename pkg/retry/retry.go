// Package retry wraps transient operations with exponential backoff. Callers
// declare which error signatures are transient per call site; anything else
// propagates immediately without consuming retry budget.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
)

// Policy describes the backoff behavior for one call site
type Policy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	RetryablePatterns []string // substrings matched against the error text
}

// DefaultPolicy covers outbound fetches and AI calls: rate limits, upstream
// hiccups and timeouts are transient, everything else is permanent.
var DefaultPolicy = Policy{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	RetryablePatterns: []string{
		"rate limit", "rate_limit", "429",
		"timeout", "deadline exceeded",
		"502", "503", "504",
		"connection refused", "connection reset",
	},
}

// errPermanent marks errors the repeater must not retry
var errPermanent = errors.New("permanent")

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Is lets the repeater match the permanent marker while Unwrap preserves the
// original chain for the caller
func (e *permanentError) Is(target error) bool { return target == errPermanent }

// Retryable reports whether the error matches one of the transient patterns
func (p Policy) Retryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range p.RetryablePatterns {
		if strings.Contains(msg, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// Do runs op, retrying transient failures with exponential backoff capped at
// MaxDelay. The last error is returned once attempts are exhausted; a
// non-retryable error is returned after a single attempt.
func Do(ctx context.Context, p Policy, op func() error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 100 * time.Millisecond
	}

	// the backoff option type is unexported, so the capped constructor call
	// can't be assembled from a slice
	retrier := repeater.NewBackoff(p.MaxAttempts, p.InitialDelay)
	if p.MaxDelay > 0 {
		retrier = repeater.NewBackoff(p.MaxAttempts, p.InitialDelay, repeater.WithMaxDelay(p.MaxDelay))
	}

	var lastErr error
	err := retrier.Do(ctx, func() error {
		if opErr := op(); opErr != nil {
			lastErr = opErr
			if !p.Retryable(opErr) {
				return &permanentError{err: opErr}
			}
			return opErr
		}
		lastErr = nil
		return nil
	}, errPermanent)

	if err != nil {
		// surface the operation's error, not the repeater's wrapper
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}
