// Copyright 2024 The httpr Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package httpr provides a robust HTTP client with retry, bearer token
refresh, and connectivity recovery support within a simple and familiar
interface.

Create a Client to begin making requests.

	client := &httpr.Client{}
	ex, err := client.Get("https://www.example.com")
	...
	ex, err := client.Post("https://www.example.com/upload",
		"application/json", &buf)
	...
	ex, err := client.PostForm("http://example.com/form",
		url.Values{"key": {"Value"}, "id": {"123"}})

For control over how the client sends HTTP requests and receives HTTP
responses, use a custom HTTPDoer. For example, use a GoLang standard
HTTP client:

	doer := &http.Client{
		..., // See package "net/http" for detailed documentation
	}
	client := &httpr.Client{
		HTTPDoer: doer,
	}

For control over the client's retry decisions and timing, create a
custom retry policy using components from package retry:

	retryWaiter := retry.NewBackoffWaiter(250*time.Millisecond, 5*time.Second, 100*time.Millisecond, time.Now())
	retryPolicy := retry.NewPolicy(retry.DefaultDecider, retryWaiter)
	client := httpr.Client{
		RetryPolicy: retryPolicy,
	}

For control over the client's individual attempt timeouts, set a custom
timeout policy using package timeout:

	client := &httpr.Client{
		TimeoutPolicy: timeout.Fixed(10*time.Second),
	}

To keep an expiring bearer token fresh across every request the client
sends, share a header set between the client and a token refresher from
package auth:

	headers := request.NewHeaders(nil)
	client := &httpr.Client{
		Headers: headers,
		Refresher: &auth.Refresher{
			Source:  fetchToken,
			Headers: headers,
		},
	}

To wait out network outages instead of failing requests through them,
install a connectivity monitor from package connectivity:

	client := &httpr.Client{
		Monitor: &connectivity.Monitor{},
	}

To hook into the fine-grained details of the client's request execution
logic, install a handler into the appropriate handler chain:

	handlers := &httpr.HandlerGroup{}
	handlers.PushBack(httpr.BeforeAttempt, httpr.HandlerFunc(
		func(_ httpr.Event, e *request.Execution) {
			log.Printf("Attempt %d to %s", e.Attempt, e.Request.URL.String())
		})
	)
	client := &httpr.Client{
		Handlers: handlers,
	}

Structured logging of the execution lifecycle is one PushBack away; see
AttachLogger.

Package httpr provides basic interfaces for each method of the robust
client (Doer, Getter, Header, Poster, FormPoster, Putter, Patcher,
Deleter, and IdleCloser); a combined interface that composes all the
basic methods (Executor); and utility functions for working with a Doer
(Inflate, Get, Head, Post, PostForm, Put, Patch, and Delete).
*/
package httpr
