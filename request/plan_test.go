// Copyright 2024 The httpr Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlan(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p, err := NewPlan("", "http://example.com", nil)
		require.NoError(t, err)
		assert.Equal(t, "GET", p.Method)
		assert.Equal(t, "http://example.com", p.URL.String())
		assert.NotNil(t, p.Header)
		assert.Nil(t, p.Body)
		assert.Equal(t, "example.com", p.Host)
		assert.Same(t, context.Background(), p.Context())
	})
	t.Run("invalid method", func(t *testing.T) {
		methods := []string{"GET ", "G(T", "POST\n", "<>"}
		for i, method := range methods {
			t.Run(fmt.Sprintf("methods[%d]=%q", i, method), func(t *testing.T) {
				p, err := NewPlan(method, "http://example.com", nil)
				assert.Nil(t, p)
				assert.Error(t, err)
			})
		}
	})
	t.Run("invalid url", func(t *testing.T) {
		p, err := NewPlan("GET", "http://exa mple.com/\x00", nil)
		assert.Nil(t, p)
		assert.Error(t, err)
	})
	t.Run("empty port removed", func(t *testing.T) {
		p, err := NewPlan("GET", "http://example.com:/foo", nil)
		require.NoError(t, err)
		assert.Equal(t, "example.com", p.URL.Host)
	})
	t.Run("body types", func(t *testing.T) {
		testCases := []struct {
			name string
			body interface{}
		}{
			{"string", "ham and eggs"},
			{"bytes", []byte("ham and eggs")},
			{"reader", strings.NewReader("ham and eggs")},
			{"readCloser", io.NopCloser(strings.NewReader("ham and eggs"))},
		}
		for _, testCase := range testCases {
			t.Run(testCase.name, func(t *testing.T) {
				p, err := NewPlan("PUT", "http://example.com", testCase.body)
				require.NoError(t, err)
				assert.Equal(t, []byte("ham and eggs"), p.Body)
			})
		}
	})
	t.Run("bad body", func(t *testing.T) {
		p, err := NewPlan("PUT", "http://example.com", 123)
		assert.Nil(t, p)
		assert.Error(t, err)
	})
}

func TestNewPlanWithContext(t *testing.T) {
	t.Run("nil context", func(t *testing.T) {
		p, err := NewPlanWithContext(nil, "GET", "http://example.com", nil) //nolint:staticcheck
		assert.Nil(t, p)
		assert.EqualError(t, err, nilCtxMsg)
	})
	t.Run("context retained", func(t *testing.T) {
		type key struct{}
		ctx := context.WithValue(context.Background(), key{}, "hello")
		p, err := NewPlanWithContext(ctx, "GET", "http://example.com", nil)
		require.NoError(t, err)
		assert.Equal(t, "hello", p.Context().Value(key{}))
	})
}

func TestPlanWithContext(t *testing.T) {
	p, err := NewPlan("GET", "http://example.com", nil)
	require.NoError(t, err)
	assert.Panics(t, func() { p.WithContext(nil) }) //nolint:staticcheck
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "yes")
	p2 := p.WithContext(ctx)
	assert.NotSame(t, p, p2)
	assert.Equal(t, "yes", p2.Context().Value(key{}))
	assert.Nil(t, p.Context().Value(key{}))
	assert.Equal(t, p.Method, p2.Method)
	assert.Same(t, p.URL, p2.URL)
}

func TestPlanContextDefault(t *testing.T) {
	p := &Plan{}
	assert.Same(t, context.Background(), p.Context())
}

func TestAddCookie(t *testing.T) {
	p, err := NewPlan("GET", "http://example.com", nil)
	require.NoError(t, err)
	p.AddCookie(&http.Cookie{Name: "a", Value: "1"})
	assert.Equal(t, "a=1", p.Header.Get("Cookie"))
	p.AddCookie(&http.Cookie{Name: "b", Value: "2"})
	assert.Equal(t, "a=1; b=2", p.Header.Get("Cookie"))
}

func TestSetBasicAuth(t *testing.T) {
	p, err := NewPlan("GET", "http://example.com", nil)
	require.NoError(t, err)
	p.SetBasicAuth("Aladdin", "open sesame")
	assert.Equal(t, "Basic QWxhZGRpbjpvcGVuIHNlc2FtZQ==", p.Header.Get("Authorization"))
}

func TestSetBearerAuth(t *testing.T) {
	p, err := NewPlan("GET", "http://example.com", nil)
	require.NoError(t, err)
	p.SetBearerAuth("xyzzy")
	assert.Equal(t, "Bearer xyzzy", p.Header.Get("Authorization"))
}

func TestToRequest(t *testing.T) {
	t.Run("without body", func(t *testing.T) {
		p, err := NewPlan("GET", "http://example.com/foo?bar=baz", nil)
		require.NoError(t, err)
		p.Header.Set("X-Custom", "yes")
		ctx := context.Background()
		r := p.ToRequest(ctx)
		assert.Equal(t, "GET", r.Method)
		assert.Same(t, p.URL, r.URL)
		assert.Equal(t, "yes", r.Header.Get("X-Custom"))
		assert.Nil(t, r.Body)
		assert.Equal(t, int64(0), r.ContentLength)
		assert.Same(t, ctx, r.Context())
	})
	t.Run("with body", func(t *testing.T) {
		p, err := NewPlan("POST", "http://example.com", "flubber")
		require.NoError(t, err)
		r := p.ToRequest(context.Background())
		require.NotNil(t, r.Body)
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, []byte("flubber"), b)
		assert.Equal(t, int64(7), r.ContentLength)
		// GetBody must replay the same bytes so a retry re-sends an
		// identical request.
		require.NotNil(t, r.GetBody)
		rc, err := r.GetBody()
		require.NoError(t, err)
		b, err = io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, []byte("flubber"), b)
	})
	t.Run("host and close", func(t *testing.T) {
		p, err := NewPlan("GET", "http://example.com", nil)
		require.NoError(t, err)
		p.Host = "other.example.com"
		p.Close = true
		r := p.ToRequest(context.Background())
		assert.Equal(t, "other.example.com", r.Host)
		assert.True(t, r.Close)
	})
}

func TestValidMethod(t *testing.T) {
	valid := []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "TRACE", "X-CUSTOM"}
	for _, m := range valid {
		assert.True(t, validMethod(m), m)
	}
	invalid := []string{"GET ", "G T", "POST\r\n", "{}", "()"}
	for _, m := range invalid {
		assert.False(t, validMethod(m), m)
	}
}

func TestRemoveEmptyPort(t *testing.T) {
	assert.Equal(t, "example.com", removeEmptyPort("example.com:"))
	assert.Equal(t, "example.com:80", removeEmptyPort("example.com:80"))
	assert.Equal(t, "example.com", removeEmptyPort("example.com"))
	assert.Equal(t, "[::1]", removeEmptyPort("[::1]:"))
	assert.Equal(t, "[::1]:8080", removeEmptyPort("[::1]:8080"))
}
