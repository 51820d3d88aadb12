// Copyright 2024 The httpr Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gogama/httpr/request"
)

// DefaultTimeout is the time budget for a single call to a token
// source when the Refresher's Timeout field is zero.
const DefaultTimeout = 20 * time.Second

// refreshKey is the singleflight key. A Refresher guards exactly one
// credential, so every caller shares the same flight.
const refreshKey = "authorization"

// A TokenFunc obtains a fresh bearer token, typically by calling an
// authentication service. It returns the raw token without the
// "Bearer " prefix. The function must honor cancellation of ctx.
type TokenFunc func(ctx context.Context) (string, error)

// A Refresher keeps the Authorization entry of a shared header set
// populated with an unexpired bearer token.
//
// Call EnsureValid before sending a request. If the current token is
// missing or expired, the Refresher obtains a new one from Source and
// rewrites the header; otherwise EnsureValid is a cheap no-op. When
// many goroutines hit an expired token at the same time, exactly one
// refresh is in flight and the rest share its outcome.
//
// The zero value is inert: a Refresher with no Source or no Headers
// never refreshes and EnsureValid always succeeds. Refresher is safe
// for concurrent use. Fields must not be modified after the first
// call to EnsureValid.
type Refresher struct {
	// Source obtains a new token. If nil, the Refresher is disabled.
	Source TokenFunc
	// Headers is the shared header set whose Authorization entry the
	// Refresher maintains. If nil, the Refresher is disabled.
	Headers *request.Headers
	// Timeout bounds each call to Source. Zero means DefaultTimeout.
	Timeout time.Duration
	// Async, if true, makes EnsureValid kick off the refresh in the
	// background and return immediately instead of waiting for the
	// new token. The request then goes out with the stale credential.
	Async bool
	// Expired decides whether a token needs replacing. If nil, the
	// package level Expired function is used, which reads the "exp"
	// claim of a JWT.
	Expired func(token string, now time.Time) bool
	// Clock supplies the current time. If nil, time.Now is used.
	// Tests inject a fake clock here.
	Clock func() time.Time

	group singleflight.Group
}

// EnsureValid refreshes the shared Authorization header if its token
// is missing or expired, and is a no-op otherwise.
//
// The returned error reports a failed or timed out refresh, or
// cancellation of ctx while waiting for a refresh started by another
// goroutine. A refresh error does not disturb the header set: the
// previous credential, stale as it may be, stays in place so the
// caller can decide whether to proceed with it.
func (r *Refresher) EnsureValid(ctx context.Context) error {
	if r == nil || r.Source == nil || r.Headers == nil {
		return nil
	}
	if !r.stale(r.now()) {
		return nil
	}
	ch := r.group.DoChan(refreshKey, r.refresh)
	if r.Async {
		go func() { <-ch }()
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case result := <-ch:
		return result.Err
	}
}

// refresh runs inside the singleflight group. The staleness re-check
// makes a batch of concurrent callers cost one Source call: the
// winner rewrites the header, and late arrivals that start a second
// flight find a fresh token and return without calling Source.
func (r *Refresher) refresh() (interface{}, error) {
	now := r.now()
	if !r.stale(now) {
		return r.Headers.Get(request.AuthorizationHeader), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout())
	defer cancel()
	token, err := r.Source(ctx)
	if err != nil {
		return nil, &RefreshError{Cause: err}
	}
	value := "Bearer " + token
	r.Headers.Set(request.AuthorizationHeader, value)
	return value, nil
}

// stale reports whether the Authorization header needs a refresh. An
// absent header counts as stale so the first request acquires the
// initial token. A header carrying a non-bearer scheme is left alone.
func (r *Refresher) stale(now time.Time) bool {
	header := r.Headers.Get(request.AuthorizationHeader)
	if header == "" {
		return true
	}
	token := BearerToken(header)
	if token == "" {
		return false
	}
	expired := r.Expired
	if expired == nil {
		expired = Expired
	}
	return expired(token, now)
}

func (r *Refresher) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

func (r *Refresher) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultTimeout
}

// A RefreshError wraps the error from a failed token refresh.
type RefreshError struct {
	Cause error
}

func (e *RefreshError) Error() string {
	return "httpr: token refresh failed: " + e.Cause.Error()
}

func (e *RefreshError) Unwrap() error {
	return e.Cause
}
