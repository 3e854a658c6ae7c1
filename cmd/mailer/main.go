// cmd/mailer consumes queued notifications from Kafka and delivers them
// over SMTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/config"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/notify"
	flag "github.com/spf13/pflag"
)

func main() {
	cfg := config.Load()
	broker := flag.String("broker", cfg.KafkaBroker, "kafka broker address")
	topic := flag.String("topic", cfg.KafkaTopic, "topic carrying notification messages")
	group := flag.String("group", cfg.KafkaGroupID, "consumer group id")
	dryRun := flag.Bool("dry-run", false, "log messages instead of sending mail")
	flag.Parse()

	logger := config.NewLogger(cfg.LogFormat)
	if err := run(cfg, logger, notify.KafkaOptions{
		Broker:   *broker,
		Topic:    *topic,
		GroupID:  *group,
		Username: cfg.KafkaUsername,
		Password: cfg.KafkaPassword,
	}, *dryRun); err != nil {
		logger.Error("mailer failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger, opts notify.KafkaOptions, dryRun bool) error {
	if opts.Broker == "" {
		return errors.New("no kafka broker configured (KAFKA_BROKER or --broker)")
	}

	var sender notify.Sender = notify.LogSender{Logger: logger}
	if !dryRun {
		if cfg.SMTP.Host == "" {
			return errors.New("SMTP_HOST is not set; use --dry-run to only log messages")
		}
		smtpSender, err := notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
		})
		if err != nil {
			return err
		}
		sender = smtpSender
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader := notify.NewKafkaReader(opts)
	defer reader.Close()

	logger.Info("mailer consuming", "broker", opts.Broker, "topic", opts.Topic, "group", opts.GroupID, "dry_run", dryRun)
	return notify.NewConsumer(reader, sender, logger).Run(ctx)
}
