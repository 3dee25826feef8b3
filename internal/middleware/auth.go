// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"inkpress/internal/authz"
	"inkpress/internal/session"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

// identityKey is the context key for the caller's identity.
const identityKey contextKey = "identity"

// SessionReader resolves the session of a request.
type SessionReader interface {
	Get(ctx context.Context, r *http.Request) (*session.Data, error)
}

// LoadSession resolves the session token of the request and stores the
// caller's identity in the context. It does NOT enforce authentication;
// the domain services decide what an identity may do after re-reading the
// user.
func LoadSession(store SessionReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := store.Get(r.Context(), r)
			if err != nil {
				// Treat as anonymous rather than failing public reads.
				slog.Warn("session lookup failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if data != nil {
				r = r.WithContext(WithIdentity(r.Context(), &authz.Identity{UserID: data.UserID}))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id *authz.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromCtx returns the caller's identity, or nil for anonymous
// requests.
func IdentityFromCtx(ctx context.Context) *authz.Identity {
	id, _ := ctx.Value(identityKey).(*authz.Identity)
	return id
}
