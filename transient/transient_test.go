// Copyright 2024 The httpr Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct {
	timeout bool
}

func (e *timeoutErr) Error() string {
	return fmt.Sprintf("timeoutErr[%t]", e.timeout)
}

func (e *timeoutErr) Timeout() bool {
	return e.timeout
}

func TestCategorize(t *testing.T) {
	testCases := []struct {
		err      error
		expected Category
	}{
		{nil, Not},
		{errors.New("generic"), Not},
		{&timeoutErr{timeout: false}, Not},
		{&timeoutErr{timeout: true}, Timeout},
		{&url.Error{Err: &timeoutErr{timeout: true}}, Timeout},
		{syscall.ETIMEDOUT, Timeout},
		{syscall.ECONNREFUSED, ConnRefused},
		{&url.Error{Err: syscall.ECONNREFUSED}, ConnRefused},
		{syscall.ECONNRESET, ConnReset},
		{&url.Error{Err: syscall.ECONNRESET}, ConnReset},
		{syscall.ENETDOWN, Connectivity},
		{syscall.ENETUNREACH, Connectivity},
		{syscall.EHOSTUNREACH, Connectivity},
		{&url.Error{Err: syscall.ENETUNREACH}, Connectivity},
		{&net.DNSError{Err: "no such host", Name: "example.com", IsNotFound: true}, Connectivity},
		{&url.Error{Err: &net.DNSError{Err: "server misbehaving", Name: "example.com"}}, Connectivity},
		{&net.DNSError{Err: "i/o timeout", Name: "example.com", IsTimeout: true}, Timeout},
		{syscall.EPIPE, Not},
		{&url.Error{Err: errors.New("nope")}, Not},
	}

	for i, testCase := range testCases {
		t.Run(fmt.Sprintf("testCases[%d]=%v", i, testCase.err), func(t *testing.T) {
			assert.Equal(t, testCase.expected, Categorize(testCase.err))
		})
	}
}
