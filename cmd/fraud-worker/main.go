package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/hive-corporation/fraudshield/internal/adapter/handler"
	"github.com/hive-corporation/fraudshield/internal/adapter/messaging"
	"github.com/hive-corporation/fraudshield/internal/app"
	"github.com/hive-corporation/fraudshield/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.LogLevel, true)

	if cfg.AMQPURL == "" {
		log.Fatal("❌ AMQP_URL is required for the worker")
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(startCtx, cfg)
	startCancel()
	if err != nil {
		log.WithError(err).Fatal("❌ Failed to start FraudShield worker")
	}
	defer a.Close()

	// Workers outlive the consumer so queued jobs can drain on shutdown.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	consumeCtx, cancelConsume := context.WithCancel(context.Background())
	defer cancelConsume()

	consumer := handler.NewAMQPConsumer(a.Service, validator.New(), a.Publisher, cfg.WorkerCount, cfg.WorkerCount*4)
	consumer.Start(workerCtx)

	if err := messaging.NewConsumer(a.AMQP, consumer).Consume(consumeCtx, messaging.AnalysisRequestQueue, cfg.WorkerCount); err != nil {
		log.WithError(err).Fatal("❌ Failed to consume analysis requests")
	}
	log.WithField("workers", cfg.WorkerCount).Info("🚀 FraudShield worker running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("🛑 Shutting down worker...")
	cancelConsume()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Minute)
	defer stopCancel()
	consumer.Stop(stopCtx)
	cancelWorkers()
}
