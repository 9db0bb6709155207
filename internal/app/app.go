// Package app wires configuration into a ready detection service. Every
// binary under cmd/ starts here.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/hive-corporation/fraudshield/internal/adapter/llm"
	"github.com/hive-corporation/fraudshield/internal/adapter/messaging"
	"github.com/hive-corporation/fraudshield/internal/adapter/notifier"
	"github.com/hive-corporation/fraudshield/internal/adapter/repository"
	"github.com/hive-corporation/fraudshield/internal/adapter/rulesfile"
	"github.com/hive-corporation/fraudshield/internal/adapter/vendor"
	"github.com/hive-corporation/fraudshield/internal/config"
	"github.com/hive-corporation/fraudshield/internal/core/domain"
	"github.com/hive-corporation/fraudshield/internal/core/service"
)

// App holds the detection service and the connections behind it.
type App struct {
	Config    config.Config
	Service   *service.DetectionService
	Repo      *repository.PostgresRepository // nil without DATABASE_URL
	AMQP      *messaging.Client              // nil without AMQP_URL
	Publisher *messaging.Publisher           // nil without AMQP_URL

	pool *pgxpool.Pool
}

// New connects the optional backends and builds the service. Only a broken
// rules file, database or broker is fatal; missing vendor keys just disable
// that vendor.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}

	vendor.InitMetrics()
	log.Info("✅ Prometheus metrics initialized")

	rules := domain.DefaultRuleSet()
	if cfg.RulesFile != "" {
		loaded, err := rulesfile.Load(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	log.WithFields(log.Fields{
		"version":   rules.Version,
		"textRules": len(rules.Text),
		"urlRules":  len(rules.URL),
	}).Info("✅ Scoring rules loaded")

	opts := service.Options{
		Scorer:          domain.NewScorer(rules, domain.DefaultThresholds()),
		CacheTTL:        cfg.CacheTTL,
		HistoryLimit:    cfg.HistoryLimit,
		NotifyThreshold: cfg.NotifyThreshold,
	}

	if err := a.connectDatabase(ctx, &opts); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.connectBroker(&opts); err != nil {
		a.Close()
		return nil, err
	}

	configureVendors(cfg, &opts)

	if cfg.SlackBotToken != "" {
		opts.Notifier = notifier.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannel, cfg.SlackMentionTeam)
		log.Info("✅ Slack notifier enabled")
	} else {
		log.Warn("⚠️  Slack notifier disabled (no SLACK_BOT_TOKEN)")
	}

	a.Service = service.NewDetectionService(opts)
	return a, nil
}

func (a *App) connectDatabase(ctx context.Context, opts *service.Options) error {
	if a.Config.DatabaseURL == "" {
		log.Warn("⚠️  No DATABASE_URL: analyses are kept in memory and the blocklist is disabled")
		return nil
	}

	if a.Config.DBMigrate {
		if err := repository.Migrate(a.Config.DatabaseURL); err != nil {
			return err
		}
		log.Info("✅ Database migrations applied")
	}

	pool, err := repository.NewPool(ctx, a.Config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.pool = pool
	a.Repo = repository.NewPostgresRepository(pool)
	opts.Blocklist = a.Repo
	opts.Analyses = a.Repo
	log.Info("🔌 Database connected")
	return nil
}

func (a *App) connectBroker(opts *service.Options) error {
	if a.Config.AMQPURL == "" {
		log.Warn("⚠️  No AMQP_URL: analysis events are not published")
		return nil
	}

	client, err := messaging.NewClient(a.Config.AMQPURL)
	if err != nil {
		return err
	}
	a.AMQP = client
	if err := messaging.Setup(client.Channel()); err != nil {
		return err
	}
	a.Publisher = messaging.NewPublisher(client)
	opts.Publisher = a.Publisher
	return nil
}

func configureVendors(cfg config.Config, opts *service.Options) {
	resilience := vendor.DefaultResilientClientConfig()

	if cfg.GeminiEnabled && cfg.GeminiAPIKey != "" {
		opts.AITextClassifier = llm.NewGeminiAnalyzer(llm.GeminiConfig{
			BaseURL: cfg.GeminiBaseURL,
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Enabled: true,
			Timeout: cfg.VendorTimeout,
		}, resilience)
		log.Info("✅ Gemini text analysis enabled")
	} else {
		log.Warn("⚠️  Gemini disabled (set GEMINI_ENABLED=true and GEMINI_API_KEY)")
	}

	cogniflow := vendor.NewCogniflowClient(vendor.CogniflowConfig{
		BaseURL:    cfg.CogniflowBaseURL,
		APIKey:     cfg.CogniflowAPIKey,
		TextModel:  cfg.CogniflowTextModel,
		ImageModel: cfg.CogniflowImageModel,
		Timeout:    cfg.VendorTimeout,
	}, resilience)
	if cogniflow.TextEnabled() {
		opts.TextClassifier = cogniflow
		log.Info("✅ Cogniflow text classification enabled")
	}
	if cogniflow.ImageEnabled() {
		opts.ImageClassifier = cogniflow
		log.Info("✅ Cogniflow image classification enabled")
	} else {
		log.Warn("⚠️  Image detection disabled (set COGNIFLOW_API_KEY and COGNIFLOW_IMAGE_MODEL)")
	}

	safeBrowsing := vendor.NewSafeBrowsingClient(vendor.SafeBrowsingConfig{
		BaseURL: cfg.SafeBrowsingBaseURL,
		APIKey:  cfg.SafeBrowsingAPIKey,
		Timeout: cfg.VendorTimeout,
	}, resilience)
	if safeBrowsing.Enabled() {
		opts.URLClassifier = safeBrowsing
		log.Info("✅ Safe Browsing enabled")
	} else {
		log.Warn("⚠️  Safe Browsing disabled (no SAFE_BROWSING_API_KEY): URLs use rules and blocklist only")
	}
}

func (a *App) Close() {
	if a.AMQP != nil {
		if err := a.AMQP.Close(); err != nil {
			log.WithError(err).Warn("Failed to close AMQP client")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
