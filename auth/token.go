// Copyright 2024 The httpr Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// BearerToken extracts the bearer token from an Authorization header
// value. It returns the empty string if the header does not carry a
// bearer credential (for example Basic authentication, or an empty
// header). The scheme comparison is case-insensitive per RFC 7235.
func BearerToken(header string) string {
	if len(header) <= len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return header[len(bearerPrefix):]
}

// Expired reports whether the given bearer token is expired at the
// instant now.
//
// The token is parsed as a JWT without signature verification: the
// refresher is a client-side component deciding when to ask for new
// credentials, not a validator deciding whether to trust them, so the
// only claim of interest is "exp". A token that is not a well-formed
// JWT, or that carries no "exp" claim, never reads as expired; for
// opaque token schemes inject a custom expiry predicate on the
// Refresher instead.
func Expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
