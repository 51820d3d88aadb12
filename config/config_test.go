// Copyright 2024 The httpr Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogama/httpr/auth"
	"github.com/gogama/httpr/connectivity"
	"github.com/gogama/httpr/retry"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "", cfg.BaseURL)
	assert.Empty(t, cfg.Headers)
	assert.Equal(t, 5*time.Second, cfg.Attempt.Timeout)
	assert.Equal(t, retry.DefaultTimes, cfg.Retry.Times)
	assert.Equal(t, retry.DefaultBaseWait, cfg.Retry.Wait)
	assert.Equal(t, retry.DefaultMaxWait, cfg.Retry.MaxWait)
	assert.Equal(t, retry.DefaultJitterWait, cfg.Retry.Jitter)
	assert.Equal(t, auth.DefaultTimeout, cfg.Refresh.Timeout)
	assert.False(t, cfg.Refresh.Async)
	assert.Equal(t, connectivity.DefaultHost, cfg.Probe.Host)
	assert.Equal(t, connectivity.DefaultProbes, cfg.Probe.Count)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
	assert.NotNil(t, cfg.Koanf())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "httpr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: https://api.example.com/v2
headers:
  X-Api-Key: "12345"
retry:
  times: 5
  wait: 250ms
attempt:
  timeout: 2s
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v2", cfg.BaseURL)
	assert.Equal(t, map[string]string{"X-Api-Key": "12345"}, cfg.Headers)
	assert.Equal(t, 5, cfg.Retry.Times)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.Wait)
	// Keys the file does not mention keep their defaults.
	assert.Equal(t, retry.DefaultMaxWait, cfg.Retry.MaxWait)
	assert.Equal(t, 2*time.Second, cfg.Attempt.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("HTTPR_BASE_URL", "https://env.example.com")
	t.Setenv("HTTPR_RETRY__TIMES", "7")
	t.Setenv("HTTPR_RETRY__MAX_WAIT", "90s")
	t.Setenv("HTTPR_REFRESH__ASYNC", "true")
	t.Setenv("HTTPR_LOG__LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.BaseURL)
	assert.Equal(t, 7, cfg.Retry.Times)
	assert.Equal(t, 90*time.Second, cfg.Retry.MaxWait)
	assert.True(t, cfg.Refresh.Async)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "httpr.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: https://file.example.com\n"), 0o644))
	t.Setenv("HTTPR_BASE_URL", "https://env.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.BaseURL)
}

func TestLoadValidate(t *testing.T) {
	testCases := []struct {
		name  string
		env   map[string]string
		check string
	}{
		{
			name:  "negative retry times",
			env:   map[string]string{"HTTPR_RETRY__TIMES": "-1"},
			check: "retry.times",
		},
		{
			name:  "zero attempt timeout",
			env:   map[string]string{"HTTPR_ATTEMPT__TIMEOUT": "0s"},
			check: "attempt.timeout",
		},
		{
			name:  "max wait below wait",
			env:   map[string]string{"HTTPR_RETRY__MAX_WAIT": "1ms"},
			check: "retry.max_wait",
		},
		{
			name:  "zero probe count",
			env:   map[string]string{"HTTPR_PROBE__COUNT": "0"},
			check: "probe.count",
		},
		{
			name:  "bogus log level",
			env:   map[string]string{"HTTPR_LOG__LEVEL": "shouty"},
			check: "log.level",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			for name, value := range testCase.env {
				t.Setenv(name, value)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), testCase.check)
		})
	}
}

func TestLogger(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger := cfg.Logger(&buf)
	logger.Info().Msg("too quiet")
	assert.Empty(t, buf.String())
	logger.Warn().Msg("loud enough")
	assert.Contains(t, buf.String(), "loud enough")
}

func TestClient(t *testing.T) {
	t.Setenv("HTTPR_BASE_URL", "https://api.example.com")
	t.Setenv("HTTPR_PROBE__HOST", "probe.example.com")
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Headers = map[string]string{"X-Api-Key": "12345"}

	t.Run("full", func(t *testing.T) {
		var buf bytes.Buffer
		logger := cfg.Logger(&buf)
		cl := cfg.Client(func(ctx context.Context) (string, error) { return "token", nil }, nil, &logger)
		require.NotNil(t, cl)
		assert.Equal(t, "https://api.example.com", cl.BaseURL)
		assert.Equal(t, "12345", cl.Headers.Get("X-Api-Key"))
		require.NotNil(t, cl.Refresher)
		assert.Same(t, cl.Headers, cl.Refresher.Headers)
		assert.Equal(t, auth.DefaultTimeout, cl.Refresher.Timeout)
		require.NotNil(t, cl.Monitor)
		assert.Equal(t, connectivity.DefaultProbes, cl.Monitor.Probes)
		assert.NotNil(t, cl.RetryPolicy)
		assert.NotNil(t, cl.TimeoutPolicy)
		assert.NotNil(t, cl.Handlers)
	})
	t.Run("no refresh", func(t *testing.T) {
		cl := cfg.Client(nil, nil, nil)
		assert.Nil(t, cl.Refresher)
		assert.NotNil(t, cl.Monitor)
	})
}
