// Copyright 2024 The httpr Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/gogama/httpr"
	"github.com/gogama/httpr/auth"
	"github.com/gogama/httpr/connectivity"
	"github.com/gogama/httpr/request"
	"github.com/gogama/httpr/retry"
	"github.com/gogama/httpr/timeout"
)

// EnvPrefix is the prefix of the environment variables Load reads.
const EnvPrefix = "HTTPR_"

// A Config holds the declarative settings of a robust HTTP client.
// Obtain one from Load, then turn it into a working client with the
// Client method.
type Config struct {
	// BaseURL is the URL relative request URLs are resolved against.
	BaseURL string `koanf:"base_url"`
	// Headers are shared headers applied to every request the client
	// sends.
	Headers map[string]string `koanf:"headers"`
	// Attempt configures individual request attempts.
	Attempt AttemptConfig `koanf:"attempt"`
	// Retry configures the retry policy.
	Retry RetryConfig `koanf:"retry"`
	// Refresh configures the bearer token refresher.
	Refresh RefreshConfig `koanf:"refresh"`
	// Probe configures the connectivity monitor.
	Probe ProbeConfig `koanf:"probe"`
	// Log configures the execution event logger.
	Log LogConfig `koanf:"log"`

	k *koanf.Koanf
}

// AttemptConfig configures individual request attempts.
type AttemptConfig struct {
	// Timeout bounds each request attempt.
	Timeout time.Duration `koanf:"timeout"`
}

// RetryConfig configures the retry policy.
type RetryConfig struct {
	// Times is the retry budget: the number of extra attempts allowed
	// after the first.
	Times int `koanf:"times"`
	// Wait is the backoff wait before the first retry.
	Wait time.Duration `koanf:"wait"`
	// MaxWait caps the backoff wait.
	MaxWait time.Duration `koanf:"max_wait"`
	// Jitter is the upper bound of the random extra wait added to
	// each backoff.
	Jitter time.Duration `koanf:"jitter"`
}

// RefreshConfig configures the bearer token refresher.
type RefreshConfig struct {
	// Timeout bounds each call to the token source.
	Timeout time.Duration `koanf:"timeout"`
	// Async makes the client send requests with the stale credential
	// while a refresh runs in the background, instead of waiting for
	// the fresh token.
	Async bool `koanf:"async"`
}

// ProbeConfig configures the connectivity monitor.
type ProbeConfig struct {
	// Host is the host name the connectivity probe resolves.
	Host string `koanf:"host"`
	// Count is the probe budget per outage recovery.
	Count int `koanf:"count"`
}

// LogConfig configures the execution event logger.
type LogConfig struct {
	// Level is the minimum level logged ("debug", "info", "warn", ...).
	Level string `koanf:"level"`
	// Pretty switches from JSON lines to human-readable console
	// output.
	Pretty bool `koanf:"pretty"`
}

// Load loads configuration from multiple sources with priority:
//  1. Environment variables (highest priority)
//  2. The YAML configuration file at path, if path is non-empty
//  3. Default values (lowest priority)
//
// Environment variables are prefixed with EnvPrefix and use a double
// underscore between key segments, so HTTPR_RETRY__MAX_WAIT sets
// retry.max_wait and HTTPR_BASE_URL sets base_url.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := k.Load(envprovider.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]interface{}{
		"base_url":        "",
		"attempt.timeout": 5 * time.Second,
		"retry.times":     retry.DefaultTimes,
		"retry.wait":      retry.DefaultBaseWait,
		"retry.max_wait":  retry.DefaultMaxWait,
		"retry.jitter":    retry.DefaultJitterWait,
		"refresh.timeout": auth.DefaultTimeout,
		"refresh.async":   false,
		"probe.host":      connectivity.DefaultHost,
		"probe.count":     connectivity.DefaultProbes,
		"log.level":       "info",
		"log.pretty":      false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

func (c *Config) validate() error {
	if c.Attempt.Timeout <= 0 {
		return fmt.Errorf("attempt.timeout must be positive, got %v", c.Attempt.Timeout)
	}
	if c.Retry.Times < 0 {
		return fmt.Errorf("retry.times must not be negative, got %d", c.Retry.Times)
	}
	if c.Retry.Wait <= 0 {
		return fmt.Errorf("retry.wait must be positive, got %v", c.Retry.Wait)
	}
	if c.Retry.MaxWait < c.Retry.Wait {
		return fmt.Errorf("retry.max_wait (%v) must not be less than retry.wait (%v)", c.Retry.MaxWait, c.Retry.Wait)
	}
	if c.Retry.Jitter < 0 {
		return fmt.Errorf("retry.jitter must not be negative, got %v", c.Retry.Jitter)
	}
	if c.Probe.Count <= 0 {
		return fmt.Errorf("probe.count must be positive, got %d", c.Probe.Count)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Koanf exposes the underlying koanf instance for flexible access to
// settings outside the Config struct.
func (c *Config) Koanf() *koanf.Koanf {
	return c.k
}

// Logger builds the execution event logger described by the Log
// section, writing to w.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	if c.Log.Pretty {
		w = zerolog.ConsoleWriter{Out: w}
	}
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Client assembles a robust HTTP client from the configuration.
//
// source supplies fresh bearer tokens; pass nil to disable token
// refresh. check probes for network connectivity during an outage;
// pass nil to probe the configured host via DNS. logger receives one
// structured log line per execution event; pass nil to disable
// logging.
func (c *Config) Client(source auth.TokenFunc, check connectivity.CheckFunc, logger *zerolog.Logger) *httpr.Client {
	headers := request.NewHeaders(c.Headers)

	var refresher *auth.Refresher
	if source != nil {
		refresher = &auth.Refresher{
			Source:  source,
			Headers: headers,
			Timeout: c.Refresh.Timeout,
			Async:   c.Refresh.Async,
		}
	}

	if check == nil {
		check = connectivity.DNSCheck(c.Probe.Host)
	}
	monitor := &connectivity.Monitor{
		Check:  check,
		Probes: c.Probe.Count,
	}

	handlers := &httpr.HandlerGroup{}
	if logger != nil {
		httpr.AttachLogger(handlers, logger)
	}

	decider := retry.Times(c.Retry.Times).
		And(retry.StatusCode(retry.RetryableStatusCodes...).Or(retry.TransientErr).Or(retry.NoResponseErr))
	waiter := retry.NewBackoffWaiter(c.Retry.Wait, c.Retry.MaxWait, c.Retry.Jitter, time.Now())

	return &httpr.Client{
		RetryPolicy:   retry.NewPolicy(decider, waiter),
		TimeoutPolicy: timeout.Fixed(c.Attempt.Timeout),
		Refresher:     refresher,
		Monitor:       monitor,
		Headers:       headers,
		BaseURL:       c.BaseURL,
		Handlers:      handlers,
	}
}
