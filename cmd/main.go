package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ats/internal/app"
	"ats/internal/config"
	"ats/internal/db"
	"ats/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// @title ATS Password Reset API
// @version 1.0
// @description Сброс пароля: запрос ссылки и установка нового пароля по одноразовому токену.
// @BasePath /
func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ats",
		Short:         "Password reset service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), false)
		},
	}

	var migrate bool
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), migrate)
		},
	}
	serveCmd.Flags().BoolVar(&migrate, "migrate", false, "apply migrations before start")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer logger.Log.Sync()
			return runMigrations(cmd.Context(), cfg)
		},
	}

	root.AddCommand(serveCmd, migrateCmd)
	return root
}

func setup() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger.InitLogger(cfg)

	warnings, err := cfg.Validate()
	if err != nil {
		logger.Log.Error("Некорректный конфиг", zap.Error(err))
		return nil, err
	}
	for _, w := range warnings {
		logger.Log.Warn("Конфиг", zap.String("warning", w))
	}
	return cfg, nil
}

func runMigrations(ctx context.Context, cfg *config.Config) error {
	pool, err := db.NewPostgresConnection(ctx, cfg)
	if err != nil {
		logger.Log.Error("Ошибка подключения к БД", zap.String("dsn", cfg.GetDSNSafe()), zap.Error(err))
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Log.Error("Ошибка миграций", zap.Error(err))
		return err
	}
	logger.Log.Info("Миграции применены")
	return nil
}

func serve(ctx context.Context, migrate bool) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Log.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if migrate {
		if err := runMigrations(ctx, cfg); err != nil {
			return err
		}
	}

	handler, cleanup, err := app.InitApp(ctx, cfg)
	if err != nil {
		logger.Log.Error("Ошибка инициализации приложения", zap.String("dsn", cfg.GetDSNSafe()), zap.Error(err))
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Сервер запущен", zap.String("port", cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("Ошибка запуска сервера", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Log.Info("Остановка сервера")
	return srv.Shutdown(shutdownCtx)
}
