package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hive-corporation/fraudshield/internal/adapter/handler"
	"github.com/hive-corporation/fraudshield/internal/app"
	"github.com/hive-corporation/fraudshield/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.LogLevel, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(ctx, cfg)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("❌ Failed to start FraudShield")
	}
	defer a.Close()

	// GRPC_LISTEN_ADDR defaults to localhost only
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.WithError(err).Fatal("failed to listen")
	}

	s := handler.NewServer(a.Service)

	go func() {
		log.WithField("addr", cfg.GRPCAddr).Info("🚀 FraudShield gRPC API listening")
		if err := s.Serve(lis); err != nil {
			log.WithError(err).Fatal("failed to serve")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("🛑 Shutting down server...")
	s.GracefulStop()
}
