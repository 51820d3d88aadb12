// Copyright 2024 The httpr Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"

	"github.com/gogama/httpr/request"
	"github.com/gogama/httpr/transient"
)

// A Decider decides if a retry should be done.
//
// Implementations of Decider must be safe for concurrent use by
// multiple goroutines.
//
// Use the built-in constructors Times, StatusCode, and Before, and the
// built-in deciders TransientErr and NoResponseErr; or implement your
// own Decider. Use
// DeciderFunc to convert an ordinary function into a Decider, and to
// compose deciders logically using DeciderFunc.And and DeciderFunc.Or.
type Decider interface {
	Decide(e *request.Execution) bool
}

// The DeciderFunc type is an adapter to allow the use of ordinary
// functions as retry deciders. It implements the Decider interface, and
// also provides the logical composition methods And and Or.
//
// Every DeciderFunc must be safe for concurrent use by multiple
// goroutines.
//
// Simple DeciderFunc functions can be composed into complex decision
// trees using the logical composition functions DeciderFunc.And and
// DeciderFunc.Or. Because of this composition ability, it will often
// be convenient to work directly with DeciderFunc rather than with
// Decider.
type DeciderFunc func(e *request.Execution) bool

// DefaultTimes is the number of times DefaultPolicy will retry. It
// bounds the number of extra attempts after the initial one, so the
// default policy makes at most DefaultTimes+1 total attempts.
const DefaultTimes = 3

// RetryableStatusCodes lists the HTTP response status codes which the
// default decider treats as retryable: 429 (Too Many Requests), 502
// (Bad Gateway), 503 (Service Unavailable), and 504 (Gateway Timeout).
// Any other status code received in a valid HTTP response is final.
var RetryableStatusCodes = []int{429, 502, 503, 504}

// DefaultDecider is a general-purpose retry decider suitable for
// common use cases. It will allow up to DefaultTimes retries (i.e. up
// to DefaultTimes+1 total attempts), and will retry in the case of an
// attempt that produced no HTTP response at all (NoResponseErr), a
// transient error (TransientErr), or a valid HTTP response whose
// status code is in RetryableStatusCodes.
var DefaultDecider = Times(DefaultTimes).And(StatusCode(RetryableStatusCodes...).Or(TransientErr).Or(NoResponseErr))

// TransientErr is a decider that indicates a retry if the current
// error is transient according to transient.Categorize. This includes
// connectivity-loss errors, on the assumption that the connectivity
// monitor has already had its chance to restore the network path by
// the time the retry decision is made.
//
// TransientErr only looks at the error, so it will always return false
// if a valid HTTP response is returned. Compose it with other deciders,
// for example a status code decider constructed with StatusCode, to
// get more complex functionality.
var TransientErr DeciderFunc = transientErr

// NoResponseErr is a decider that indicates a retry if the most recent
// attempt ended in an error without receiving any HTTP response: a
// refused or dropped connection, a TLS handshake failure, an unexpected
// EOF, and so on. Such an attempt never reached the server, or at least
// never heard back from it, so retrying it is safe and usually the
// right call.
//
// NoResponseErr returns false once a response has been received, even
// a partial one whose body could not be read. Compose it with
// TransientErr to also retry errors that arrive after the response
// status line, such as a body read timeout.
var NoResponseErr DeciderFunc = noResponseErr

// Decide returns true if a retry should be done, and false otherwise,
// after examining the current HTTP request plan execution state.
func (f DeciderFunc) Decide(e *request.Execution) bool {
	return f(e)
}

// And composes two retry deciders into a new decider which returns true
// if both sub-deciders return true, and false otherwise.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// false.
func (f DeciderFunc) And(g DeciderFunc) DeciderFunc {
	return func(e *request.Execution) bool {
		return f(e) && g(e)
	}
}

// Or composes two retry deciders into a new decider which returns
// true if either of the two sub-deciders returns true, but false if
// they both return false.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// true.
func (f DeciderFunc) Or(g DeciderFunc) DeciderFunc {
	return func(e *request.Execution) bool {
		return f(e) || g(e)
	}
}

// Times constructs a retry decider which allows up to n retries. The
// returned decider returns true while the execution attempt index
// e.Attempt is less than n, and false otherwise.
//
// Because the attempt index is zero-based, the budget n counts only
// the extra attempts after the call-initiating one: Times(3) allows a
// maximum of 4 total attempts.
func Times(n int) DeciderFunc {
	return func(e *request.Execution) bool {
		return e.Attempt < n
	}
}

// Before constructs a retry decider allowing retries until a certain
// amount of time has elapsed since the start of the logical HTTP request
// plan execution. The returned decider returns true while the execution
// duration is less than d, and false afterward.
func Before(d time.Duration) DeciderFunc {
	return func(e *request.Execution) bool {
		return e.Duration() < d
	}
}

// StatusCode constructs a retry decider allowing retries based on the
// HTTP response status code. If the most recent request attempt within
// the plan execution received a valid HTTP response, and the response
// status code is contained in the list ss, the decider returns true.
// Otherwise, it returns false.
func StatusCode(ss ...int) DeciderFunc {
	ss2 := make([]int, len(ss))
	copy(ss2, ss)
	return func(e *request.Execution) bool {
		for _, s := range ss2 {
			if e.StatusCode() == s {
				return true
			}
		}
		return false
	}
}

func transientErr(e *request.Execution) bool {
	return transient.Categorize(e.Err) != transient.Not
}

func noResponseErr(e *request.Execution) bool {
	return e.Response == nil && e.Err != nil
}
