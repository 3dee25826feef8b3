package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"inkpress/internal/apperr"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health reports whether the process and its database are up.
func Health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				slog.Error("health check: database unreachable", "error", err)
				apperr.WriteBody(w, http.StatusServiceUnavailable, apperr.Body{Error: "database unreachable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
