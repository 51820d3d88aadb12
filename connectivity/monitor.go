// Copyright 2024 The httpr Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package connectivity

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultProbes is the number of connectivity probes a Monitor
	// makes before giving up, when the Probes field is zero.
	DefaultProbes = 5
	// DefaultProbeWait is the wait before the first probe. The wait
	// grows by this amount after each failed probe, up to MaxProbeWait.
	DefaultProbeWait = 5 * time.Second
	// MaxProbeWait caps the wait between probes.
	MaxProbeWait = 10 * time.Second
	// DefaultHost is the host name the default check resolves.
	DefaultHost = "example.com"

	// probeTimeout bounds a single check call.
	probeTimeout = 5 * time.Second

	// subscriberBuffer is the capacity of subscriber channels. A
	// subscriber that falls further behind misses transitions rather
	// than stalling the recovery loop.
	subscriberBuffer = 4

	restoreKey = "restore"
)

// Status is a connectivity state transition delivered to subscribers.
type Status bool

const (
	Disconnected Status = false
	Connected    Status = true
)

func (s Status) String() string {
	if s {
		return "connected"
	}
	return "disconnected"
}

// A CheckFunc probes for network connectivity, returning nil when the
// network is reachable. It must honor cancellation of ctx.
type CheckFunc func(ctx context.Context) error

// DNSCheck returns a check that resolves host with the default
// resolver. Name resolution is a cheap end-to-end signal: it exercises
// the local stack, the configured DNS servers, and the path to them.
func DNSCheck(host string) CheckFunc {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		_, err := net.DefaultResolver.LookupHost(ctx, host)
		return err
	}
}

// A Monitor waits out network connectivity outages.
//
// Call Restore after a request fails with a connectivity class error.
// Restore probes the network on a widening schedule until a probe
// succeeds or the probe budget runs out. Concurrent callers share one
// recovery loop. Subscribers receive a Disconnected transition when a
// recovery starts and a Connected transition when a probe succeeds.
//
// The zero value probes DefaultHost via DNS with the default budget.
// Monitor is safe for concurrent use. Fields must not be modified
// after the first call to any method.
type Monitor struct {
	// Check probes for connectivity. If nil, DNSCheck(DefaultHost)
	// is used.
	Check CheckFunc
	// Probes is the probe budget per recovery. Zero means
	// DefaultProbes.
	Probes int
	// Sleep waits between probes. If nil, a timer bound to ctx is
	// used. Tests inject an instant sleep here.
	Sleep func(ctx context.Context, d time.Duration) error

	group singleflight.Group

	mu   sync.Mutex
	subs map[chan Status]struct{}
}

// Restore blocks until network connectivity is confirmed or the probe
// budget is exhausted.
//
// The first probe runs after DefaultProbeWait; each failed probe grows
// the wait by the same amount up to MaxProbeWait. If a probe succeeds,
// Restore returns nil. If all probes fail, it returns an
// *ExhaustedError wrapping the last probe error. If ctx is done first,
// it returns the context error.
//
// When goroutines call Restore concurrently, one recovery loop runs
// and the rest wait for its outcome. The loop is driven by the context
// of the caller that started it.
func (m *Monitor) Restore(ctx context.Context) error {
	ch := m.group.DoChan(restoreKey, func() (interface{}, error) {
		return nil, m.restore(ctx)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case result := <-ch:
		return result.Err
	}
}

func (m *Monitor) restore(ctx context.Context) error {
	m.publish(Disconnected)
	probes := m.Probes
	if probes <= 0 {
		probes = DefaultProbes
	}
	wait := DefaultProbeWait
	var lastErr error
	for i := 0; i < probes; i++ {
		if err := m.sleep(ctx, wait); err != nil {
			return err
		}
		wait += DefaultProbeWait
		if wait > MaxProbeWait {
			wait = MaxProbeWait
		}
		if err := m.check(ctx); err != nil {
			lastErr = err
			continue
		}
		m.publish(Connected)
		return nil
	}
	return &ExhaustedError{Probes: probes, Cause: lastErr}
}

// Subscribe registers for connectivity transitions. The returned
// channel has a small buffer; transitions the subscriber does not
// drain in time are dropped.
func (m *Monitor) Subscribe() <-chan Status {
	ch := make(chan Status, subscriberBuffer)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs == nil {
		m.subs = make(map[chan Status]struct{})
	}
	m.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a channel obtained from Subscribe.
func (m *Monitor) Unsubscribe(ch <-chan Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sub := range m.subs {
		if sub == ch {
			delete(m.subs, sub)
			close(sub)
			return
		}
	}
}

func (m *Monitor) publish(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sub := range m.subs {
		select {
		case sub <- s:
		default:
		}
	}
}

func (m *Monitor) check(ctx context.Context) error {
	check := m.Check
	if check == nil {
		check = DNSCheck(DefaultHost)
	}
	return check(ctx)
}

func (m *Monitor) sleep(ctx context.Context, d time.Duration) error {
	if m.Sleep != nil {
		return m.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// An ExhaustedError reports that a recovery ran out of probes without
// confirming connectivity.
type ExhaustedError struct {
	// Probes is the number of probes made.
	Probes int
	// Cause is the error from the last probe.
	Cause error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("httpr: connectivity not restored after %d probes: %v", e.Probes, e.Cause)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Cause
}
