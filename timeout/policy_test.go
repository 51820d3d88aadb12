// Copyright 2024 The httpr Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"testing"
	"time"

	"github.com/gogama/httpr/request"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	e := request.Execution{}
	assert.Equal(t, 5*time.Second, DefaultPolicy.Timeout(&e))
	e.AttemptTimeouts = 3
	assert.Equal(t, 5*time.Second, DefaultPolicy.Timeout(&e))
}

func TestInfinite(t *testing.T) {
	e := request.Execution{}
	assert.Equal(t, time.Duration(1<<63-1), Infinite.Timeout(&e))
}

func TestFixed(t *testing.T) {
	p := Fixed(250 * time.Millisecond)
	e := request.Execution{}
	assert.Equal(t, 250*time.Millisecond, p.Timeout(&e))
	e.Err = timeoutError{}
	e.AttemptTimeouts = 10
	assert.Equal(t, 250*time.Millisecond, p.Timeout(&e))
}

func TestAdaptive(t *testing.T) {
	p := Adaptive(200*time.Millisecond, time.Second, 10*time.Second)
	e := request.Execution{}

	// No previous timeout: usual value.
	assert.Equal(t, 200*time.Millisecond, p.Timeout(&e))

	// Previous attempt timed out: walk the after values, sticking on
	// the last one.
	e.Err = timeoutError{}
	e.AttemptTimeouts = 1
	assert.Equal(t, time.Second, p.Timeout(&e))
	e.AttemptTimeouts = 2
	assert.Equal(t, 10*time.Second, p.Timeout(&e))
	e.AttemptTimeouts = 100
	assert.Equal(t, 10*time.Second, p.Timeout(&e))

	// Previous attempt did not time out: back to usual, regardless of
	// the timeout counter.
	e.Err = nil
	assert.Equal(t, 200*time.Millisecond, p.Timeout(&e))
}

type timeoutError struct{}

func (timeoutError) Error() string { return "timeout" }
func (timeoutError) Timeout() bool { return true }
