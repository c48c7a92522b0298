// Command alertcheck runs a single evaluation sweep over all enabled
// alert rules and prints the summary. It is meant for cron deployments
// and for verifying rule configuration from a shell.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/frclabs/reportcenter/internal/adapter/external/smtp"
	"github.com/frclabs/reportcenter/internal/adapter/external/webhook"
	"github.com/frclabs/reportcenter/internal/adapter/repository/clickhouse"
	"github.com/frclabs/reportcenter/internal/config"
	"github.com/frclabs/reportcenter/internal/entity"
	"github.com/frclabs/reportcenter/internal/usecase/alerts"
	"github.com/frclabs/reportcenter/internal/usecase/channels"
	"github.com/frclabs/reportcenter/internal/usecase/notifications"
)

// discardNotifier evaluates rules without delivering anything. History
// rows still record the trigger with an empty outcome list.
type discardNotifier struct{}

func (discardNotifier) SendAlert(_ context.Context, _ uuid.UUID, _ []uuid.UUID, _ *entity.AlertPayload) []entity.NotificationOutcome {
	return nil
}

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "overall sweep timeout")
	dryRun := flag.Bool("dry-run", false, "evaluate rules without sending notifications")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := config.SetupLogger(cfg)

	conn, err := clickhouse.NewConnection(&cfg.ClickHouse, logger)
	if err != nil {
		logger.Error("Failed to connect to ClickHouse", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	cipher, err := channels.NewCipher(cfg.Notify.EncryptionSecret)
	if err != nil {
		logger.Error("Failed to initialize webhook cipher", "error", err)
		os.Exit(1)
	}

	eventsRepo := clickhouse.NewEventsRepository(conn, logger)
	alertsRepo := clickhouse.NewAlertsRepository(conn, logger)
	channelsRepo := clickhouse.NewChannelsRepository(conn, logger)

	var notifier alerts.Notifier
	if *dryRun {
		notifier = discardNotifier{}
	} else {
		channelsSvc := channels.NewService(channelsRepo, cipher, logger)
		webhookClient := webhook.NewClient(cfg.Notify.WebhookTimeout, logger)
		smtpClient := smtp.NewClient(smtp.Config{
			Host:      cfg.SMTP.Host,
			Port:      cfg.SMTP.Port,
			Security:  cfg.SMTP.Security,
			FromEmail: cfg.SMTP.FromEmail,
			Username:  cfg.SMTP.Username,
			Password:  cfg.SMTP.Password,
		}, logger)
		notifier = notifications.NewDispatcher(channelsRepo, channelsSvc, webhookClient, smtpClient, logger)
	}

	evaluator := alerts.NewEvaluator(alertsRepo, eventsRepo, notifier, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	summary, err := evaluator.EvaluateAll(ctx)
	if err != nil {
		logger.Error("Sweep failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(summary)

	if len(summary.Errors) > 0 {
		os.Exit(1)
	}
}
