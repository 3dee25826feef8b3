// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"inkpress/internal/apperr"
)

// Recoverer catches panics in downstream handlers, logs the stack trace,
// and answers with a JSON InternalFailure body instead of crashing the
// server. The panic value is never sent to the client.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			slog.Error("panic recovered",
				"error", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			apperr.WriteBody(w, http.StatusInternalServerError, apperr.Body{
				Error: "Internal server error",
				Kind:  apperr.KindInternal,
			})
		}()

		next.ServeHTTP(w, r)
	})
}
