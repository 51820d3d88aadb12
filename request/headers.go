// Copyright 2024 The httpr Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"net/http"
	"sync"
)

// AuthorizationHeader is the canonical name of the HTTP request header
// carrying credentials.
const AuthorizationHeader = "Authorization"

// Headers is a set of HTTP request headers shared by every request a
// client sends. It is the one piece of mutable state that outlives an
// individual plan execution: the client re-reads it on every request
// attempt, and the token refresher rewrites its Authorization entry
// when a refresh succeeds, which is how in-flight and future requests
// observe fresh credentials.
//
// Headers is safe for concurrent use by multiple goroutines. A nil
// *Headers behaves like an empty set for all read operations, so a
// client without shared headers needs no special casing.
//
// By convention only the client's token refresher writes the
// Authorization entry; all other writers should restrict themselves to
// other header names.
type Headers struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewHeaders returns a Headers populated with a copy of the entries of
// m, which may be nil.
func NewHeaders(m map[string]string) *Headers {
	h := &Headers{m: make(map[string]string, len(m))}
	for name, value := range m {
		h.m[http.CanonicalHeaderKey(name)] = value
	}
	return h
}

// Get returns the value of the named header, or the empty string if
// the header is not set.
func (h *Headers) Get(name string) string {
	if h == nil {
		return ""
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.m[http.CanonicalHeaderKey(name)]
}

// Set sets the named header to value, replacing any existing value.
func (h *Headers) Set(name, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.m == nil {
		h.m = make(map[string]string)
	}
	h.m[http.CanonicalHeaderKey(name)] = value
}

// Del removes the named header.
func (h *Headers) Del(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.m, http.CanonicalHeaderKey(name))
}

// Len returns the number of headers in the set.
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.m)
}

// Snapshot returns a copy of the current header set. The copy is not
// connected to h: later changes to h are not reflected in it.
func (h *Headers) Snapshot() map[string]string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	m := make(map[string]string, len(h.m))
	for name, value := range h.m {
		m[name] = value
	}
	return m
}

// Apply copies the shared headers into dst, skipping any header dst
// already defines. Plan-specific headers therefore always win over
// shared ones.
//
// Apply holds a read lock for the duration of the copy, so the set of
// headers applied to one request attempt is a consistent snapshot even
// while a concurrent token refresh is rewriting the Authorization
// entry.
func (h *Headers) Apply(dst http.Header) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for name, value := range h.m {
		if _, ok := dst[name]; !ok {
			dst.Set(name, value)
		}
	}
}
