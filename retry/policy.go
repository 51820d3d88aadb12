// Copyright 2024 The httpr Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"

	"github.com/gogama/httpr/request"
)

// A Policy controls the retry stage of an HTTP request plan execution.
// After each attempt the client asks the policy whether to retry
// (Decide) and, if so, how long to sleep first (Wait). Wait is never
// called when Decide returns false.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
//
// A Policy is the composition of the Decider and Waiter interfaces.
// Assemble one from existing deciders and waiters with NewPolicy, or
// use the ready-made DefaultPolicy or Never.
type Policy interface {
	Decider
	Waiter
}

// DefaultPolicy is a general-purpose retry policy suitable for common
// use cases. It is a composition of DefaultDecider for retry decisions
// and DefaultWaiter for wait time calculations.
var DefaultPolicy Policy = policy{DefaultDecider, DefaultWaiter}

// Never is a policy that never retries. Each execution makes exactly
// one attempt; the rest of the pipeline, including token refresh,
// shared headers, and connectivity recovery, still applies to that
// attempt.
var Never Policy = policy{Times(0), DefaultWaiter}

type policy struct {
	decider Decider
	waiter  Waiter
}

// NewPolicy composes a Decider and a Waiter into a retry Policy.
func NewPolicy(d Decider, w Waiter) Policy {
	return policy{decider: d, waiter: w}
}

func (p policy) Decide(e *request.Execution) bool {
	return p.decider.Decide(e)
}

func (p policy) Wait(e *request.Execution) time.Duration {
	return p.waiter.Wait(e)
}
