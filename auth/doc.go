// Copyright 2024 The httpr Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package auth keeps a shared Authorization header stocked with an
// unexpired bearer token.
//
// The central type is Refresher. Give it a token source and the
// header set your client applies to outgoing requests, and call
// EnsureValid before each request:
//
//	headers := request.NewHeaders(nil)
//	refresher := &auth.Refresher{
//		Source:  fetchToken,
//		Headers: headers,
//	}
//	...
//	err := refresher.EnsureValid(ctx)
//
// Concurrent callers that find the token expired share a single
// refresh. Expiry is read from the "exp" claim of the JWT by default
// and can be replaced for opaque token schemes.
package auth
