package handler

import (
	"context"
	"net/http"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Healthz reports liveness, database is pinged when db is set
// 200 — сервис работает;
// 503 — база данных недоступна.
func Healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				writeMessage(w, r, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		writeMessage(w, r, http.StatusOK, "ok")
	}
}
