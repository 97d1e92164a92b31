package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DoyleJ11/video-routing-backend/internal/gateway"
	"github.com/DoyleJ11/video-routing-backend/internal/ws"
)

type Deps struct {
	Gateway  *gateway.Gateway
	WS       ws.Options
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Log))
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(d.Gateway, d.WS, d.Log.Named("ws")))
	r.Get("/clients", Clients(d.Gateway))
	r.Get("/admins", Admins(d.Gateway))
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	return r
}
