package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/video-routing-backend/internal/gateway"
)

const stateTimeout = 2 * time.Second

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Clients serves the same payload a clients-update frame carries.
func Clients(gw *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := view(r.Context(), gw)
		if !ok {
			http.Error(w, "gateway unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, v.Clients)
	}
}

// Admins serves the same payload an admins-update frame carries.
func Admins(gw *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := view(r.Context(), gw)
		if !ok {
			http.Error(w, "gateway unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, v.Admins)
	}
}

func view(ctx context.Context, gw *gateway.Gateway) (gateway.View, bool) {
	ctx, cancel := context.WithTimeout(ctx, stateTimeout)
	defer cancel()
	return gw.State(ctx)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
