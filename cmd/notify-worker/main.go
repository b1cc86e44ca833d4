package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dhishan/family-expense-tracker/internal/amqp"
	"github.com/dhishan/family-expense-tracker/internal/config"
	"github.com/dhishan/family-expense-tracker/internal/log"
	"github.com/dhishan/family-expense-tracker/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Failed to load configuration", log.FieldError, err)
		os.Exit(1)
	}

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentWorker,
		JSON:      cfg.IsProduction(),
		Output:    os.Stdout,
	})
	log.SetDefault(logger)

	logger.Info("Starting notify-worker")

	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	var deliverers []worker.Deliverer
	if cfg.NotifyWebhookURL != "" {
		deliverers = append(deliverers, worker.NewWebhookDeliverer(cfg.NotifyWebhookURL, cfg.NotifyWebhookTimeout))
		logger.Info("Webhook delivery enabled", "timeout", cfg.NotifyWebhookTimeout)
	}
	if cfg.TelegramBotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			logger.Error("Failed to initialize Telegram bot", log.FieldError, err)
			os.Exit(1)
		}
		deliverers = append(deliverers, worker.NewTelegramDeliverer(bot, cfg.TelegramChatID))
		logger.Info("Telegram delivery enabled", "bot", bot.Self.UserName)
	}
	notifyWorker := worker.NewNotifyWorker(deliverers...)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := amqpClient.ConsumeNotifications(ctx, notifyWorker.HandleNotification); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	select {
	case <-done:
		logger.Info("Worker shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
}
