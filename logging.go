// Copyright 2024 The httpr Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpr

import (
	"github.com/rs/zerolog"

	"github.com/gogama/httpr/request"
)

// LoggingHandler returns an event handler that writes one structured
// log line per event to logger.
//
// Lifecycle detail (execution start, attempts, body reads) is logged
// at debug level. Trouble the client recovered from or is recovering
// from (refresh errors, attempt timeouts, connectivity loss, plan
// timeouts) is logged at warn level. Connectivity restoration and the
// end of the execution are logged at info level.
//
// Every line carries the execution ID, so the attempts of one logical
// request can be correlated under concurrent load.
func LoggingHandler(logger *zerolog.Logger) Handler {
	return HandlerFunc(func(evt Event, e *request.Execution) {
		var line *zerolog.Event
		switch evt {
		case AfterRefreshError, AfterAttemptTimeout, AfterConnectivityLoss, AfterPlanTimeout:
			line = logger.Warn()
		case AfterConnectivityRestore, AfterExecutionEnd:
			line = logger.Info()
		default:
			line = logger.Debug()
		}
		line = line.
			Str("execution", e.ID).
			Int("attempt", e.Attempt)
		if e.Plan != nil {
			line = line.
				Str("method", e.Plan.Method).
				Stringer("url", e.Plan.URL)
		}
		if code := e.StatusCode(); code != 0 {
			line = line.Int("status", code)
		}
		if e.Err != nil {
			line = line.AnErr("error", e.Err)
		}
		if evt == AfterRefreshError && e.RefreshErr != nil {
			line = line.AnErr("refresh_error", e.RefreshErr)
		}
		if evt == AfterExecutionEnd {
			line = line.Dur("duration", e.Duration())
		}
		line.Msg(evt.Name())
	})
}

// AttachLogger installs a LoggingHandler for every event in g. Pass
// the client's handler group, creating it first if need be:
//
//	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
//	handlers := &httpr.HandlerGroup{}
//	httpr.AttachLogger(handlers, &logger)
//	client := &httpr.Client{Handlers: handlers}
func AttachLogger(g *HandlerGroup, logger *zerolog.Logger) {
	h := LoggingHandler(logger)
	for _, evt := range Events() {
		g.PushBack(evt, h)
	}
}
