package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citasalud/citasalud-platform/cmd/mainconfig"
	"github.com/citasalud/citasalud-platform/internal/channels/voice"
	"github.com/citasalud/citasalud-platform/internal/channels/whatsapp"
	appconfig "github.com/citasalud/citasalud-platform/internal/config"
	"github.com/citasalud/citasalud-platform/internal/notify"
	"github.com/citasalud/citasalud-platform/internal/observability/metrics"
	"github.com/citasalud/citasalud-platform/internal/queue"
	"github.com/citasalud/citasalud-platform/internal/reminder"
	"github.com/citasalud/citasalud-platform/internal/store"
	"github.com/citasalud/citasalud-platform/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting citasalud reminder worker", "env", cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("reminder worker requires DATABASE_URL")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	st := store.New(pool)

	var awsLoaded bool
	var sesClient *sesv2.Client
	var q queue.Queue
	if cfg.UseMemoryQueue {
		logger.Warn("using in-memory queue; jobs are lost on restart")
		q = queue.NewMemoryQueue(256)
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		awsLoaded = true
		sesClient = sesv2.NewFromConfig(awsCfg)
		q = queue.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ReminderQueueURL)
	}

	waClient, err := whatsapp.NewClient(whatsapp.ClientConfig{
		APIKey:     cfg.WhatsAppAPIKey,
		BaseURL:    cfg.WhatsAppBaseURL,
		FromNumber: cfg.WhatsAppFromNumber,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to create whatsapp client", "error", err)
		os.Exit(1)
	}
	voiceClient, err := voice.NewClient(voice.ClientConfig{
		APIKey:        cfg.VoiceAPIKey,
		BaseURL:       cfg.VoiceBaseURL,
		AgentID:       cfg.VoiceAgentID,
		FromNumber:    cfg.VoiceFromNumber,
		WebhookSecret: cfg.VoiceWebhookSecret,
		MaxSkew:       cfg.VoiceWebhookSkew,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to create voice client", "error", err)
		os.Exit(1)
	}

	m := metrics.NewReminderMetrics(nil)
	windows := reminder.DefaultWindows(cfg.VoiceCallLead)

	schedulerOpts := []reminder.SchedulerOption{
		reminder.WithWindows(windows),
		reminder.WithInterval(cfg.SchedulerInterval),
		reminder.WithLookback(cfg.SchedulerLookback),
		reminder.WithSchedulerMetrics(m),
	}
	if !cfg.UseMemoryQueue {
		schedulerOpts = append(schedulerOpts,
			reminder.WithDeduper(reminder.NewRedisDeduper(mainconfig.NewRedisClient(cfg))))
	}
	scheduler := reminder.NewScheduler(st, q, logger, schedulerOpts...)

	executor := reminder.NewExecutor(st, waClient, voiceClient, cfg.ClinicName, logger)

	workerOpts := []queue.WorkerOption{
		queue.WithWorkerCount(cfg.WorkerCount),
		queue.WithMaxAttempts(cfg.MaxSendAttempts),
		queue.WithRetryBaseDelay(cfg.RetryBaseDelay),
		queue.WithSendLimiter(queue.NewSendLimiter(cfg.SendRatePerSecond, cfg.SendBurst)),
		queue.WithMetrics(m),
	}
	if alerter := buildAlerter(cfg, st, sesClient, awsLoaded, logger); alerter != nil {
		workerOpts = append(workerOpts, queue.WithAlerter(alerter))
	}
	worker := queue.NewWorker(q, executor, logger, workerOpts...)

	go scheduler.Run(ctx)
	worker.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("reminder worker shutting down")
	cancel()
	worker.Wait()
}

// buildAlerter picks the operator alert channel from config. Alerts are
// optional: with no provider configured, exhausted jobs are only logged.
func buildAlerter(cfg *appconfig.Config, st *store.Store, sesClient *sesv2.Client, awsLoaded bool, logger *logging.Logger) *notify.DeliveryAlerter {
	if cfg.AlertEmail == "" {
		return nil
	}
	var sender notify.EmailSender
	switch cfg.EmailProvider {
	case "ses":
		if awsLoaded {
			if s := notify.NewSESSender(sesClient, notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger); s != nil {
				sender = s
			}
		}
	case "stub":
		sender = notify.NewStubEmailSender(logger)
	default:
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); s != nil {
			sender = s
		}
	}
	if sender == nil {
		logger.Warn("alert email configured but no usable email provider; alerts disabled")
		return nil
	}
	return notify.NewDeliveryAlerter(sender, st, cfg.AlertEmail, logger)
}
