package app

import (
	"context"
	"net/http"

	"ats/internal/config"
	"ats/internal/db"
	"ats/internal/handlers"
	"ats/internal/repository"
	"ats/internal/routes"
	"ats/internal/services"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
)

// InitApp собирает зависимости и возвращает готовый http.Handler; cleanup закрывает пул.
func InitApp(ctx context.Context, cfg *config.Config) (http.Handler, func(), error) {
	conn, err := db.NewPostgresConnection(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Репозитории
	resetRepo := repository.NewPasswordResetRepository(conn)
	userRepo := repository.NewUserRepository(conn, cfg.BcryptCost)

	// Сервисы; SMTP-транспорт создаётся один раз и передаётся явно.
	mailer := services.NewEmailService(services.NewSMTPDialer(cfg), cfg.SMTPFrom, cfg.EmailTimeout)
	passwordSvc := services.NewPasswordService(resetRepo, userRepo, mailer, services.NewMetrics(reg), services.PasswordOptions{
		TokenTTL:   cfg.PasswordResetTTL,
		Cooldown:   cfg.PasswordResetCooldown,
		DailyLimit: cfg.PasswordResetDailyLimit,
	})

	// Хендлеры
	passwordHandler := handlers.NewPasswordHandler(passwordSvc, cfg.SiteURL, cfg.AllowedOrigins)
	healthHandler := handlers.NewHealthHandler(conn)

	// Маршруты
	router := mux.NewRouter()
	routes.InitRoutes(router, passwordHandler, healthHandler, reg)

	return WithCORS(router), conn.Close, nil
}

// WithCORS — permissive CORS: браузерная страница живёт на другом origin.
// Preflight отвечает пустым 200.
func WithCORS(h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"Authorization", "Content-Type", "X-Client-Info", "Apikey", "X-Request-ID"},
		ExposedHeaders:       []string{"X-Request-ID"},
		OptionsSuccessStatus: http.StatusOK,
		MaxAge:               86400,
	}).Handler(h)
}
