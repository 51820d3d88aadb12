// Copyright 2024 The httpr Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math/rand"
	"sync"
	"time"

	"github.com/gogama/httpr/request"
)

// A Waiter specifies how long to wait before retrying a failed HTTP request
// attempt.
//
// Implementations of Waiter must be safe for concurrent use by multiple
// goroutines.
//
// The robust HTTP client, httpr.Client, will not call the Waiter on a
// retry policy if the policy Decider returned false.
//
// This package provides two Waiter implementations, via the constructor
// functions NewFixedWaiter and NewBackoffWaiter. In addition it provides
// a concrete instance suitable for many typical use cases, DefaultWaiter.
type Waiter interface {
	Wait(e *request.Execution) time.Duration
}

const (
	// DefaultBaseWait is the base wait duration used by DefaultWaiter.
	DefaultBaseWait = 500 * time.Millisecond
	// DefaultMaxWait is the wait ceiling used by DefaultWaiter. No
	// backoff calculation, jitter included, ever exceeds it.
	DefaultMaxWait = 60 * time.Second
	// DefaultJitterWait is the exclusive upper bound of the random
	// jitter DefaultWaiter adds to each computed backoff, to avoid
	// synchronized retry storms across clients.
	DefaultJitterWait = 200 * time.Millisecond

	// maxShift caps the backoff exponent so high attempt counts can't
	// overflow the shift.
	maxShift = 10
)

// DefaultWaiter is the default retry wait policy. It uses an
// exponential backoff formula with a base wait of DefaultBaseWait, a
// maximum wait of DefaultMaxWait, and additive jitter uniformly
// distributed in [0, DefaultJitterWait).
var DefaultWaiter = NewBackoffWaiter(DefaultBaseWait, DefaultMaxWait, DefaultJitterWait, time.Now())

// NewFixedWaiter constructs a Waiter that always returns the given
// duration.
//
// Use NewFixedWaiter to obtain a constant retry backoff.
func NewFixedWaiter(d time.Duration) Waiter {
	return fixedWaiter(d)
}

type fixedWaiter time.Duration

func (w fixedWaiter) Wait(_ *request.Execution) time.Duration {
	return time.Duration(w)
}

// NewBackoffWaiter constructs a Waiter implementing a jittered
// exponential backoff formula:
//
//	wait := min(max, base * 2**min(attempt, 10) + rand(jitter))
//
// Parameter base is the wait before the first retry, and doubles on
// each subsequent retry until the exponential term reaches max. The
// exponent is capped at 10 to keep the shift well-defined at high
// attempt counts. Base must be positive and max must be at least equal
// to base.
//
// Parameter jitter is the exclusive upper bound of a uniformly random
// duration added to the exponential term; the sum is still clamped to
// max. Pass zero for a deterministic waiter with no jitter.
//
// Parameter src seeds the jitter calculation. It may be a random number
// generator seed value (as a time.Time, int, or int64), or a random
// number generator (as a rand.Source or *rand.Rand) to be used
// directly. Injecting a fixed seed or source makes the wait sequence
// reproducible in tests. Pass nil to disable jitter regardless of the
// jitter parameter.
func NewBackoffWaiter(base, max, jitter time.Duration, src interface{}) Waiter {
	if base < 1 {
		panic("httpr/retry: base must be positive")
	}
	if max < base {
		panic("httpr/retry: max must be at least base")
	}
	if jitter < 0 {
		panic("httpr/retry: jitter may not be negative")
	}
	w := &backoffWaiter{
		base:   base,
		max:    max,
		jitter: jitter,
	}
	if jitter > 0 {
		w.rand = srcToRand(src)
	}
	return w
}

type backoffWaiter struct {
	base   time.Duration
	max    time.Duration
	jitter time.Duration
	rand   *rand.Rand
	lock   sync.Mutex
}

func (w *backoffWaiter) Wait(e *request.Execution) time.Duration {
	shift := e.Attempt
	if shift < 0 {
		shift = 0
	} else if shift > maxShift {
		shift = maxShift
	}

	wait := w.base << shift
	if wait < w.base {
		wait = w.max
	}

	if w.rand != nil {
		w.lock.Lock()
		wait += time.Duration(w.rand.Int63n(int64(w.jitter)))
		w.lock.Unlock()
	}

	if wait > w.max {
		wait = w.max
	}

	return wait
}

func srcToRand(src interface{}) *rand.Rand {
	var s rand.Source
	switch x := src.(type) {
	case nil:
		return nil
	case time.Time:
		s = rand.NewSource(x.UnixNano())
	case int:
		s = rand.NewSource(int64(x))
	case int64:
		s = rand.NewSource(x)
	case *rand.Rand:
		if x == nil {
			panic("httpr/retry: src may not be a typed nil")
		}
		return x
	case rand.Source:
		if x == nil {
			return nil
		}
		s = x
	default:
		panic("httpr/retry: invalid src type")
	}
	return rand.New(s)
}
