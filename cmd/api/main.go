package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/citasalud/citasalud-platform/cmd/mainconfig"
	"github.com/citasalud/citasalud-platform/internal/api/router"
	"github.com/citasalud/citasalud-platform/internal/channels/voice"
	appconfig "github.com/citasalud/citasalud-platform/internal/config"
	"github.com/citasalud/citasalud-platform/internal/http/handlers"
	"github.com/citasalud/citasalud-platform/internal/observability/metrics"
	"github.com/citasalud/citasalud-platform/internal/queue"
	"github.com/citasalud/citasalud-platform/internal/reminder"
	"github.com/citasalud/citasalud-platform/internal/store"
	"github.com/citasalud/citasalud-platform/internal/webhooks"
	"github.com/citasalud/citasalud-platform/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting citasalud API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("API server requires DATABASE_URL")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	st := store.New(pool)

	var q queue.Queue
	if cfg.UseMemoryQueue {
		logger.Warn("using in-memory queue; manual enqueues are lost on restart")
		q = queue.NewMemoryQueue(64)
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		q = queue.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ReminderQueueURL)
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
	reconciler := webhooks.NewReconciler(st, logger, m)
	webhookHandler := webhooks.NewHandler(voiceClient, reconciler, logger)

	windows := reminder.DefaultWindows(cfg.VoiceCallLead)
	schedulerOpts := []reminder.SchedulerOption{
		reminder.WithWindows(windows),
		reminder.WithLookback(cfg.SchedulerLookback),
		reminder.WithSchedulerMetrics(m),
	}
	if !cfg.UseMemoryQueue {
		schedulerOpts = append(schedulerOpts,
			reminder.WithDeduper(reminder.NewRedisDeduper(mainconfig.NewRedisClient(cfg))))
	}
	// The API never runs the scheduler loop; it holds one instance so the
	// admin scan endpoint can force a pass.
	scheduler := reminder.NewScheduler(st, q, logger, schedulerOpts...)

	routerCfg := &router.Config{
		Logger:         logger,
		VoiceWebhooks:  webhookHandler,
		AdminReminders: handlers.NewAdminRemindersHandler(st, q, scheduler, windows, logger),
		AdminToken:     cfg.AdminToken,
		MetricsHandler: promhttp.Handler(),
		WebhookRate:    cfg.WebhookRatePerSec,
		WebhookBurst:   cfg.WebhookRateBurst,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
