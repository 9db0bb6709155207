package main

import (
	"context"
	"net/http"
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

	router := handler.NewRouter(handler.NewRestHandler(a.Service), cfg.RESTAuthToken)

	srv := &http.Server{
		Addr:         ":" + cfg.RESTPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.RESTPort).Info("🚀 FraudShield REST API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("❌ Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("🛑 Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("❌ Server forced to shutdown")
		return
	}

	log.Info("✅ Server stopped gracefully")
}
