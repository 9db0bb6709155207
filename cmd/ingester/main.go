package main

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hive-corporation/fraudshield/internal/adapter/provider"
	"github.com/hive-corporation/fraudshield/internal/adapter/repository"
	"github.com/hive-corporation/fraudshield/internal/config"
	"github.com/hive-corporation/fraudshield/internal/core/ports"
	"github.com/hive-corporation/fraudshield/internal/core/service"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.LogLevel, true)

	if cfg.DatabaseURL == "" {
		log.Fatal("❌ DATABASE_URL is required for ingestion")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if cfg.DBMigrate {
		if err := repository.Migrate(cfg.DatabaseURL); err != nil {
			log.WithError(err).Fatal("❌ Failed to apply migrations")
		}
	}

	log.Info("🔌 Database connection...")
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("❌ Error connecting to database")
	}
	defer pool.Close()

	repo := repository.NewPostgresRepository(pool)
	client := &http.Client{Timeout: 2 * time.Minute}

	feeds := []ports.BlocklistProvider{
		provider.NewURLHausProvider(client, ""),

		provider.NewURLListProvider(client,
			"openphish",
			"https://openphish.com/feed.txt",
			"phishing",
		),

		provider.NewURLListProvider(client,
			"phishing-army",
			"https://phishing.army/download/phishing_army_blocklist.txt",
			"phishing",
		),

		provider.NewURLListProvider(client,
			"abusech-feodo",
			"https://feodotracker.abuse.ch/downloads/ipblocklist.txt",
			"botnet_c2",
		),

		provider.NewURLListProvider(client,
			"digitalside",
			"https://raw.githubusercontent.com/davidonzo/Threat-Intel/master/lists/latestdomains.txt",
			"malware",
		),
	}

	log.WithField("feeds", len(feeds)).Info("🚀 Blocklist ingestion started...")
	report, err := service.IngestBlocklists(ctx, feeds, repo, service.DefaultIngestBatchSize)
	if err != nil {
		log.WithError(err).Fatal("❌ Blocklist ingestion failed")
	}
	if len(report.FailedFeeds) > 0 {
		log.WithField("feeds", report.FailedFeeds).Warn("⚠️  Some feeds could not be downloaded")
	}
}
