// Copyright 2024 The httpr Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package connectivity rides out network outages.
//
// A Monitor turns "the network is down" from a terminal error into a
// wait. After a request fails in a way that smells like a dead network
// (DNS failure, unreachable host or network), call Restore: it probes
// the network on a widening schedule and returns once connectivity is
// confirmed, letting the caller resume the request without burning its
// retry budget on an outage.
//
//	monitor := &connectivity.Monitor{}
//	...
//	if err := monitor.Restore(ctx); err != nil {
//		return err // still down, or ctx gave up first
//	}
//	// network is back, retry the request
//
// Subscribers can watch transitions to drive logging or UI state.
package connectivity
