// cmd/server is the HTTP API entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/clock"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/config"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/database"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/handler"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/maturity"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/notify"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/reminder"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/repository"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/service"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogFormat)
	slog.SetDefault(logger)
	ctx := context.Background()

	// ── 1. Settings and PostgreSQL ──────────────────────────────────────────
	if _, err := config.LoadSettings(cfg.SettingsFile); err != nil {
		fatal(logger, "settings", err)
	}
	pool, err := database.NewPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		fatal(logger, "database", err)
	}
	defer pool.Close()
	if err := database.ApplySchema(ctx, pool); err != nil {
		fatal(logger, "schema", err)
	}
	logger.Info("connected to PostgreSQL", "host", cfg.Database.Host, "db", cfg.Database.DBName)

	// ── 2. Notifications and reminder log ──────────────────────────────────
	var sender notify.Sender = notify.LogSender{Logger: logger}
	if cfg.KafkaBroker != "" {
		pub := notify.NewKafkaPublisher(notify.KafkaOptions{
			Broker:   cfg.KafkaBroker,
			Topic:    cfg.KafkaTopic,
			Username: cfg.KafkaUsername,
			Password: cfg.KafkaPassword,
		})
		defer pub.Close()
		sender = pub
		logger.Info("publishing notifications to kafka", "broker", cfg.KafkaBroker, "topic", cfg.KafkaTopic)
	}

	var reminders reminder.Log = reminder.NewPostgresLog(pool)
	if cfg.RedisURL != "" {
		rl, err := reminder.NewRedisLog(ctx, cfg.RedisURL)
		if err != nil {
			fatal(logger, "redis", err)
		}
		defer rl.Close()
		reminders = rl
	}

	// ── 3. Wire up layers ───────────────────────────────────────────────────
	store := repository.NewStore(pool)
	clk := clock.Real()
	registration := service.NewRegistrationService(store, sender, clk, logger)
	h := &handler.Handler{
		Roles:        service.NewRoleService(store, logger),
		Subevents:    service.NewSubeventService(store, logger),
		Users:        service.NewUserService(store, clk),
		Registration: registration,
		Tickets:      service.NewTicketService(store, clk),
		Sweeper:      maturity.NewSweeper(store, registration, sender, reminders, clk, logger),
		Settings: func() (config.Settings, error) {
			return config.LoadSettings(cfg.SettingsFile)
		},
		Logger: logger,
	}

	if cfg.AdminUsername != "" {
		admin, err := h.Users.EnsureAdmin(ctx, model.CreateUserRequest{Username: cfg.AdminUsername, Email: cfg.AdminEmail})
		if err != nil {
			fatal(logger, "admin bootstrap", err)
		}
		logger.Info("admin account ready", "user_id", admin.ID, "username", admin.Username)
	}

	// ── 4. Start server with graceful shutdown ──────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler.NewRouter(h),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
		return
	}
	logger.Info("server stopped")
}

func fatal(logger *slog.Logger, what string, err error) {
	logger.Error(what+" failed", "err", err)
	os.Exit(1)
}
