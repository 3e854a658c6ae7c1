// cmd/maturity runs one maturity sweep and exits. Intended for cron.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/clock"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/config"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/database"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/maturity"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/notify"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/reminder"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/repository"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/service"
	flag "github.com/spf13/pflag"
)

func main() {
	action := flag.StringP("action", "a", "all", "which pass to run: cancel, remind or all")
	date := flag.String("date", "", "run as of this date (YYYY-MM-DD) instead of today")
	settingsFile := flag.String("settings", "", "seminar settings YAML (overrides SETTINGS_FILE)")
	flag.Parse()

	cfg := config.Load()
	logger := config.NewLogger(cfg.LogFormat)
	if *settingsFile != "" {
		cfg.SettingsFile = *settingsFile
	}
	if err := run(cfg, logger, *action, *date); err != nil {
		logger.Error("maturity sweep failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger, action, date string) error {
	if action != "cancel" && action != "remind" && action != "all" {
		return fmt.Errorf("unknown action %q", action)
	}
	var clk clock.Clock = clock.Real()
	if date != "" {
		d, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return fmt.Errorf("parse --date: %w", err)
		}
		clk = clock.NewFixed(d)
	}

	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.ApplySchema(ctx, pool); err != nil {
		return err
	}

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
	}

	var reminders reminder.Log = reminder.NewPostgresLog(pool)
	if cfg.RedisURL != "" {
		rl, err := reminder.NewRedisLog(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rl.Close()
		reminders = rl
	}

	store := repository.NewStore(pool)
	registration := service.NewRegistrationService(store, sender, clk, logger)
	sweeper := maturity.NewSweeper(store, registration, sender, reminders, clk, logger)

	reports := make(map[string]maturity.Report, 2)
	if action == "cancel" || action == "all" {
		rep, err := sweeper.CancelOverdue(ctx, settings)
		if err != nil {
			return err
		}
		reports["cancel"] = rep
	}
	if action == "remind" || action == "all" {
		rep, err := sweeper.SendReminders(ctx, settings)
		if err != nil {
			return err
		}
		reports["remind"] = rep
	}

	return json.NewEncoder(os.Stdout).Encode(reports)
}
