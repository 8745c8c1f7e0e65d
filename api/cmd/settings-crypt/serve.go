package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/api/handlers"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/api/middleware"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/api/router"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/services"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/db/postgres"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/db/sqlstore"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the notification-settings admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// --- 1. Core Telemetry & Configuration ---
			logger := newLogger(cmd.ErrOrStderr())
			slog.SetDefault(logger)
			logger.Info("🚀 Booting notification settings API...")

			rt, err := openRuntime(ctx, logger)
			if err != nil {
				logger.Error("FATAL: startup failed", slog.Any("error", err))
				return err
			}
			defer rt.Close()

			// --- 2. Audit trail: pgxpool in production, sqlx otherwise ---
			if rt.cfg.DatabaseDriver == sqlstore.DriverPostgres {
				pool, err := postgres.NewPool(ctx, rt.cfg.DatabaseURL)
				if err != nil {
					logger.Error("FATAL: audit pool failed", slog.Any("error", err))
					return err
				}
				defer pool.Close()
				rt.audit = services.NewAuditLogger(postgres.NewAuditRepository(pool), logger)
			}

			// --- 3. Dependency Injection ---
			auditLogger := rt.audit
			settingsService := services.NewSettingsService(rt.sessions, rt.catalog, rt.codec, auditLogger, logger)

			limiterCtx, cancelLimiter := context.WithCancel(ctx)
			defer cancelLimiter()

			// --- 4. HTTP Gateway ---
			mux := router.NewRouter(router.RouterConfig{
				AllowedOrigins:    rt.cfg.AllowedOrigins,
				SettingsHandler:   handlers.NewSettingsHandler(settingsService),
				EncryptionHandler: handlers.NewEncryptionHandler(rt.migrationService(), rt.registry),
				AuditHandler:      handlers.NewAuditHandler(auditLogger),
				HealthHandler:     handlers.NewHealthHandler(rt.db),
				RateLimiter:       middleware.NewRateLimiter(limiterCtx, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst),
				Logger:            logger,
			})

			server := &http.Server{
				Addr:         ":" + rt.cfg.Port,
				Handler:      mux,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
			}

			// --- 5. Graceful Exit ---
			errCh := make(chan error, 1)
			go func() {
				logger.Info("🌐 Settings API active", slog.String("port", rt.cfg.Port))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					logger.Error("CRITICAL: Server crashed", slog.Any("error", err))
					return err
				}
			case <-ctx.Done():
			}

			logger.Info("🛑 Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("ERROR: Forced shutdown", slog.Any("error", err))
				return err
			}
			logger.Info("✅ Settings API shutdown complete")
			return nil
		},
	}
}
