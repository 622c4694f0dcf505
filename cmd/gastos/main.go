package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gastos/internal/amqp"
	"gastos/internal/analyzer/gemini"
	"gastos/internal/cache"
	"gastos/internal/chat"
	"gastos/internal/chat/whatsapp"
	"gastos/internal/config"
	"gastos/internal/confirm"
	"gastos/internal/directory"
	"gastos/internal/intake"
	applog "gastos/internal/log"
	"gastos/internal/registrar"
	"gastos/internal/services"
	"gastos/internal/storage"
)

func main() {
	// Load .env for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	logger.Info("starting gastos")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("initialize repository failed", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	analyzer, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Error("initialize Gemini analyzer failed", applog.FieldError, err)
		os.Exit(1)
	}

	gateway := whatsapp.New(whatsapp.Config{
		SessionDBPath: cfg.WhatsAppSessionDBPath,
		QRCodePath:    cfg.WhatsAppQRCodePath,
	}, logger)

	dir := directory.New(gateway, cfg.DirectoryTTL, logger)

	// The publisher is optional: without a broker the worker's backlog scan
	// still mirrors confirmed expenses.
	var publisher services.Publisher
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, relying on worker backlog scan", applog.FieldError, err)
	} else {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	expenseService := services.NewExpenseService(repo, publisher, logger)
	orchestrator := intake.New(repo, gateway, analyzer, cfg.PendingTTL, logger)
	machine := confirm.NewMachine(repo, expenseService, gateway, logger)
	reaper := confirm.NewReaper(repo, expenseService, cfg.ReapInterval, logger)

	gateway.SetHandler(func(ctx context.Context, evt chat.Event) {
		switch evt.Kind {
		case chat.EventMedia:
			orchestrator.HandleMedia(ctx, evt)
		case chat.EventButtonReply:
			machine.HandleButtonReply(ctx, evt)
		case chat.EventListReply:
			machine.HandleListReply(ctx, evt)
		}
	})

	if err := gateway.Connect(ctx); err != nil {
		logger.Error("connect chat gateway failed", applog.FieldError, err)
		os.Exit(1)
	}
	defer gateway.Close()

	cacheManager := cache.NewManager()
	cacheManager.Register(gateway.MediaCache())
	cacheManager.StartCleanup(5 * time.Minute)
	defer cacheManager.Stop()

	// Optional startup registration: point monitoring at a group without
	// any other surface. Needs a fresh roster to verify membership.
	if cfg.MonitorGroupID != "" {
		if err := dir.ForceRefresh(ctx); err != nil {
			logger.Error("directory refresh for registration failed", applog.FieldError, err)
		}
		reg := registrar.New(dir, repo, logger)
		row, outcome, err := reg.SetActiveGroup(ctx, cfg.MonitorGroupID, cfg.ProfileID, cfg.AdminPhone)
		if err != nil {
			logger.Error("register monitored group failed",
				applog.FieldGroupID, cfg.MonitorGroupID, applog.FieldError, err)
			os.Exit(1)
		}
		logger.Info("monitoring group",
			applog.FieldGroupID, row.GroupID, "group_name", row.Name, "outcome", outcome.String())
	}

	go dir.Run(ctx)
	go reaper.Run(ctx)

	logger.Info("gastos started",
		applog.FieldProfileID, cfg.ProfileID,
		"directory_ttl", cfg.DirectoryTTL,
		"pending_ttl", cfg.PendingTTL)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutdown signal received", "signal", sig.String())

	cancel()

	// Give in-flight handlers a moment to finish before the deferred closes.
	time.Sleep(2 * time.Second)
	logger.Info("gastos stopped")
}
