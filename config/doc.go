// Copyright 2024 The httpr Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package config assembles a robust HTTP client from declarative
// configuration.
//
// Settings are layered: defaults, then an optional YAML file, then
// HTTPR_* environment variables, with later layers winning.
//
//	cfg, err := config.Load("httpr.yaml")
//	if err != nil {
//		return err
//	}
//	logger := cfg.Logger(os.Stderr)
//	client := cfg.Client(fetchToken, nil, &logger)
package config
