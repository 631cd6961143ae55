package routes

import (
	"net/http"

	_ "ats/docs"
	"ats/internal/handlers"
	"ats/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Metrics interface {
	prometheus.Registerer
	prometheus.Gatherer
}

func InitRoutes(
	router *mux.Router,
	passwordHandler *handlers.PasswordHandler,
	healthHandler *handlers.HealthHandler,
	reg Metrics,
) {
	router.Use(middleware.RequestID, middleware.Recoverer, middleware.Logging, middleware.Metrics(reg))

	api := router.PathPrefix("/api").Subrouter()

	// --- Публичные маршруты ---
	api.HandleFunc("/password/forgot", passwordHandler.Forgot).Methods(http.MethodPost)
	api.HandleFunc("/password/reset", passwordHandler.Reset).Methods(http.MethodPost)
	api.HandleFunc("/password/forgot", handlers.Preflight).Methods(http.MethodOptions)
	api.HandleFunc("/password/reset", handlers.Preflight).Methods(http.MethodOptions)

	router.HandleFunc("/healthz", healthHandler.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
}
