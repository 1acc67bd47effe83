package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/wagslane/go-rabbitmq"

	"github.com/hopeana/dispatcher/internal/config"
	"github.com/hopeana/dispatcher/internal/emailer"
	"github.com/hopeana/dispatcher/internal/mailworker"
	"github.com/hopeana/dispatcher/internal/metrics"
	"github.com/hopeana/dispatcher/pkg/logger"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	cfg, err := config.NewWorkerConfig()
	if err != nil {
		log.Panicf("failed to load configuration: %v", err)
	}

	l, err := logger.NewLogger(cfg.Logs.File, "mailworker", cfg.Logs.Level)
	if err != nil {
		log.Panicf("failed to create logger: %v", err)
	}

	sender, err := emailer.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, l)
	if err != nil {
		l.Fatal().Err(err).Msg("invalid SMTP configuration")
	}

	conn, err := rabbitmq.NewConn(cfg.RabbitMQ.Address(), rabbitmq.WithConnectionOptionsLogging)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer func() { _ = conn.Close() }()

	consumer, err := mailworker.NewRabbitConsumer(conn)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to declare bulk email consumer")
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := mailworker.NewConsumer(sender, l, metrics.NewMetrics("mailworker"))
	go func() {
		if err := consumer.Run(handler.ReceiveBulk); err != nil {
			l.Error().Err(err).Msg("consumer stopped")
			stop()
		}
	}()

	l.Info().Msg("mail worker started")
	<-ctx.Done()
	l.Info().Msg("mail worker stopping")
}
