// Copyright 2024 The httpr Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package connectivity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNoRoute = errors.New("no route to host")

// instantSleep skips the probe waits while recording them.
func instantSleep(waits *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "disconnected", Disconnected.String())
}

func TestRestoreEventualSuccess(t *testing.T) {
	var waits []time.Duration
	var checks int
	m := &Monitor{
		Check: func(context.Context) error {
			checks++
			if checks < 3 {
				return errNoRoute
			}
			return nil
		},
		Sleep: instantSleep(&waits),
	}
	events := m.Subscribe()
	require.NoError(t, m.Restore(context.Background()))
	assert.Equal(t, 3, checks)
	// The wait widens after the first failed probe and then stays
	// capped.
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 10 * time.Second}, waits)
	assert.Equal(t, Disconnected, <-events)
	assert.Equal(t, Connected, <-events)
}

func TestRestoreExhausted(t *testing.T) {
	var waits []time.Duration
	var checks int
	m := &Monitor{
		Check: func(context.Context) error {
			checks++
			return errNoRoute
		},
		Sleep: instantSleep(&waits),
	}
	events := m.Subscribe()
	err := m.Restore(context.Background())
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, DefaultProbes, exhausted.Probes)
	assert.ErrorIs(t, err, errNoRoute)
	assert.Equal(t, DefaultProbes, checks)
	assert.Equal(t, []time.Duration{
		5 * time.Second,
		10 * time.Second,
		10 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}, waits)
	assert.Equal(t, Disconnected, <-events)
	select {
	case s := <-events:
		t.Errorf("unexpected transition %v after exhausted recovery", s)
	default:
	}
}

func TestRestoreProbeBudget(t *testing.T) {
	var waits []time.Duration
	var checks int
	m := &Monitor{
		Check: func(context.Context) error {
			checks++
			return errNoRoute
		},
		Probes: 2,
		Sleep:  instantSleep(&waits),
	}
	err := m.Restore(context.Background())
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Probes)
	assert.Equal(t, 2, checks)
}

func TestRestoreContextCancel(t *testing.T) {
	m := &Monitor{
		Check: func(context.Context) error {
			t.Error("check must not run before the first wait elapses")
			return nil
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Restore(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRestoreSharedRecovery(t *testing.T) {
	const callers = 8
	var checks int32
	release := make(chan struct{})
	m := &Monitor{
		Check: func(context.Context) error {
			atomic.AddInt32(&checks, 1)
			<-release
			return nil
		},
		Sleep: func(context.Context, time.Duration) error { return nil },
	}
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Restore(context.Background())
		}(i)
	}
	// Let the callers pile onto the in-flight recovery, then let the
	// probe succeed.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&checks))
}

func TestSubscribeUnsubscribe(t *testing.T) {
	m := &Monitor{
		Check: func(context.Context) error { return nil },
		Sleep: func(context.Context, time.Duration) error { return nil },
	}
	events := m.Subscribe()
	require.NoError(t, m.Restore(context.Background()))
	assert.Equal(t, Disconnected, <-events)
	assert.Equal(t, Connected, <-events)
	m.Unsubscribe(events)
	_, open := <-events
	assert.False(t, open)
}

func TestPublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	m := &Monitor{
		Check: func(context.Context) error { return nil },
		Sleep: func(context.Context, time.Duration) error { return nil },
	}
	events := m.Subscribe()
	// Never drain events. Each recovery publishes two transitions;
	// once the buffer fills, further transitions are dropped instead
	// of stalling the loop.
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Restore(context.Background()))
	}
	assert.Len(t, events, subscriberBuffer)
}

func TestDNSCheck(t *testing.T) {
	check := DNSCheck("localhost")
	assert.NoError(t, check(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, check(ctx))
}
