package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"

	"github.com/hive-corporation/fraudshield/internal/core/domain"
	"github.com/hive-corporation/fraudshield/internal/core/ports"
)

// FallbackDisclaimer prefixes the explanation of a heuristic verdict that
// replaced a failed classifier call.
const FallbackDisclaimer = "AI analysis unavailable; rule-based result: "

const (
	DefaultCacheTTL        = 30 * time.Minute
	DefaultSessionTTL      = 24 * time.Hour
	DefaultNotifyThreshold = 0.8
	anonymousClient        = "anonymous"
	recentLimit            = 500
)

// Options wires a DetectionService. Every classifier and output port is
// optional; a nil one is simply skipped.
type Options struct {
	Scorer *domain.Scorer

	// AITextClassifier is the "enhanced" flow (Gemini). When set it is
	// preferred over TextClassifier.
	AITextClassifier ports.TextClassifier
	TextClassifier   ports.TextClassifier
	URLClassifier    ports.URLClassifier
	ImageClassifier  ports.ImageClassifier

	Blocklist ports.BlocklistRepository
	Analyses  ports.AnalysisRepository
	Publisher ports.EventPublisher
	Notifier  ports.Notifier

	CacheTTL        time.Duration
	SessionTTL      time.Duration
	HistoryLimit    int
	NotifyThreshold float64

	Now func() time.Time
}

// DetectionService runs every analysis: vendor classifiers first, the
// heuristic scorer as fallback, then caching, history and fan-out.
type DetectionService struct {
	opts     Options
	scorer   *domain.Scorer
	results  *cache.Cache
	sessions *cache.Cache

	mu     sync.Mutex // guards sessions' contents and recent
	recent *domain.History
}

func NewDetectionService(opts Options) *DetectionService {
	if opts.Scorer == nil {
		opts.Scorer = domain.NewScorer(nil, domain.DefaultThresholds())
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = domain.DefaultHistoryLimit
	}
	if opts.NotifyThreshold <= 0 {
		opts.NotifyThreshold = DefaultNotifyThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &DetectionService{
		opts:     opts,
		scorer:   opts.Scorer,
		results:  cache.New(opts.CacheTTL, opts.CacheTTL/2),
		sessions: cache.New(opts.SessionTTL, time.Hour),
		recent:   domain.NewHistory(recentLimit),
	}
}

// Score runs the heuristic scorer only.
func (s *DetectionService) Score(input domain.AnalysisInput) domain.AnalysisResult {
	return s.scorer.Score(input)
}

func (s *DetectionService) Rules() *domain.RuleSet {
	return s.scorer.RuleSet()
}

// AnalyzeText classifies free text. The AI flow is tried first, then
// Cogniflow; if the chosen classifier fails the heuristic answers instead.
func (s *DetectionService) AnalyzeText(ctx context.Context, clientID, text string) (domain.AnalysisRecord, error) {
	if strings.TrimSpace(text) == "" {
		return domain.AnalysisRecord{}, domain.ErrEmptyInput
	}

	key := cacheKey(domain.KindText, text)
	if rec, ok := s.cached(key); ok {
		return s.complete(ctx, clientID, rec), nil
	}

	heuristic := s.scorer.ScoreText(text)
	rec := s.newRecord(domain.KindText, text, &heuristic)

	classifier := s.opts.AITextClassifier
	if classifier == nil {
		classifier = s.opts.TextClassifier
	}

	if classifier == nil {
		rec.Verdict = heuristic.Verdict()
	} else if verdict, err := classifier.ClassifyText(ctx, text); err != nil {
		s.logFallback(domain.KindText, classifier.Name(), err)
		rec.Verdict = fallbackVerdict(heuristic)
		rec.Fallback = true
	} else {
		rec.Verdict = verdict
	}

	s.remember(key, rec)
	return s.complete(ctx, clientID, rec), nil
}

// AnalyzeURL checks a URL. The heuristic always runs and rejects malformed
// input; Safe Browsing decides when available, and blocklisted hosts are
// always fraudulent.
func (s *DetectionService) AnalyzeURL(ctx context.Context, clientID, rawURL string) (domain.AnalysisRecord, error) {
	target, err := domain.ParseURLTarget(rawURL)
	if err != nil {
		return domain.AnalysisRecord{}, err
	}

	key := cacheKey(domain.KindURL, target.Normalized)
	if rec, ok := s.cached(key); ok {
		return s.complete(ctx, clientID, rec), nil
	}

	heuristic := s.scorer.ScoreURL(rawURL)
	rec := s.newRecord(domain.KindURL, target.Normalized, &heuristic)

	if s.opts.URLClassifier == nil {
		rec.Verdict = heuristic.Verdict()
	} else if verdict, err := s.opts.URLClassifier.CheckURL(ctx, target.Normalized); err != nil {
		s.logFallback(domain.KindURL, s.opts.URLClassifier.Name(), err)
		rec.Verdict = fallbackVerdict(heuristic)
		rec.Fallback = true
	} else {
		rec.Verdict = verdict
	}

	if blocked := s.lookupBlocklist(ctx, target.Host); len(blocked) > 0 {
		rec.Verdict = withBlocklistHits(rec.Verdict, blocked)
	}

	s.remember(key, rec)
	return s.complete(ctx, clientID, rec), nil
}

// AnalyzeImage classifies an uploaded image with the image classifier. There
// is no heuristic for pixels, so a failure is returned as an error.
func (s *DetectionService) AnalyzeImage(ctx context.Context, clientID, imageData, fileName string) (domain.AnalysisRecord, error) {
	img, err := domain.DecodeImage(imageData, fileName)
	if err != nil {
		return domain.AnalysisRecord{}, err
	}
	if s.opts.ImageClassifier == nil {
		return domain.AnalysisRecord{}, fmt.Errorf("image analysis: %w", domain.ErrClassifierUnavailable)
	}

	key := cacheKey(domain.KindImage, img.Base64)
	if rec, ok := s.cached(key); ok {
		return s.complete(ctx, clientID, rec), nil
	}

	verdict, err := s.opts.ImageClassifier.ClassifyImage(ctx, *img)
	if err != nil {
		log.WithFields(log.Fields{
			"vendor": s.opts.ImageClassifier.Name(),
			"error":  err,
		}).Warn("Image classification failed")
		if !errors.Is(err, domain.ErrClassifierUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrClassifierUnavailable, err)
		}
		return domain.AnalysisRecord{}, fmt.Errorf("image analysis: %w", err)
	}

	rec := s.newRecord(domain.KindImage, fileName, nil)
	rec.Verdict = verdict

	s.results.SetDefault(key, rec)
	return s.complete(ctx, clientID, rec), nil
}

// History returns a snapshot of the client's session.
func (s *DetectionService) History(clientID string) domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session(clientID).Snapshot()
}

// FraudSince lists fraudulent analyses since the given time, newest first.
// Without an analysis store it answers from the in-memory recent list.
func (s *DetectionService) FraudSince(ctx context.Context, since time.Time, limit int) ([]domain.AnalysisRecord, error) {
	var records []domain.AnalysisRecord
	if s.opts.Analyses != nil {
		found, err := s.opts.Analyses.FindSince(ctx, since, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to load analyses: %w", err)
		}
		records = found
	} else {
		s.mu.Lock()
		records = s.recent.Entries()
		s.mu.Unlock()
	}

	out := []domain.AnalysisRecord{}
	for _, rec := range records {
		if rec.AnalyzedAt.Before(since) || !rec.Verdict.IsFraudulent {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *DetectionService) newRecord(kind domain.InputKind, content string, heuristic *domain.AnalysisResult) domain.AnalysisRecord {
	return domain.AnalysisRecord{
		ID:         uuid.New(),
		Kind:       kind,
		Content:    content,
		Heuristic:  heuristic,
		AnalyzedAt: s.opts.Now().UTC(),
	}
}

// remember caches rec unless it is a fallback, so the classifier is asked
// again as soon as it recovers.
func (s *DetectionService) remember(key string, rec domain.AnalysisRecord) {
	if rec.Fallback {
		return
	}
	s.results.SetDefault(key, rec)
}

func (s *DetectionService) cached(key string) (domain.AnalysisRecord, bool) {
	v, ok := s.results.Get(key)
	if !ok {
		return domain.AnalysisRecord{}, false
	}
	rec := v.(domain.AnalysisRecord)
	rec.ID = uuid.New()
	rec.Cached = true
	rec.AnalyzedAt = s.opts.Now().UTC()
	return rec, true
}

// complete attaches the record to the client's session and, for fresh
// results, persists, publishes and notifies. Failures of those outputs are
// logged and never fail the analysis.
func (s *DetectionService) complete(ctx context.Context, clientID string, rec domain.AnalysisRecord) domain.AnalysisRecord {
	if clientID == "" {
		clientID = anonymousClient
	}
	rec.ClientID = clientID

	s.mu.Lock()
	s.session(clientID).Record(rec)
	s.recent.Add(rec)
	s.mu.Unlock()

	entry := log.WithFields(log.Fields{
		"analysis_id": rec.ID.String(),
		"client_id":   clientID,
		"type":        rec.Kind,
		"tier":        rec.Tier(),
		"source":      rec.Verdict.Source,
		"fallback":    rec.Fallback,
		"cached":      rec.Cached,
	})
	entry.Info("Analysis completed")

	if rec.Cached {
		return rec
	}

	if s.opts.Analyses != nil {
		if err := s.opts.Analyses.SaveAnalysis(ctx, rec); err != nil {
			entry.WithError(err).Error("Failed to save analysis")
		}
	}
	if s.opts.Publisher != nil {
		if err := s.opts.Publisher.PublishAnalysis(ctx, rec); err != nil {
			entry.WithError(err).Error("Failed to publish analysis")
		}
	}
	if s.opts.Notifier != nil && rec.Verdict.IsFraudulent && rec.Verdict.ConfidenceScore >= s.opts.NotifyThreshold {
		if err := s.opts.Notifier.NotifyFraudDetected(rec); err != nil {
			entry.WithError(err).Warn("Failed to send fraud notification")
		}
	}

	return rec
}

// session must be called with s.mu held.
func (s *DetectionService) session(clientID string) *domain.Session {
	if clientID == "" {
		clientID = anonymousClient
	}
	if v, ok := s.sessions.Get(clientID); ok {
		sess := v.(*domain.Session)
		s.sessions.SetDefault(clientID, sess)
		return sess
	}
	sess := domain.NewSession(clientID, s.opts.HistoryLimit)
	s.sessions.SetDefault(clientID, sess)
	return sess
}

func (s *DetectionService) lookupBlocklist(ctx context.Context, host string) []domain.BlockedHost {
	if s.opts.Blocklist == nil {
		return nil
	}
	blocked, err := s.opts.Blocklist.FindBlocked(ctx, domain.ParentDomains(host))
	if err != nil {
		log.WithFields(log.Fields{"host": host, "error": err}).Warn("Blocklist lookup failed")
		return nil
	}
	return blocked
}

func (s *DetectionService) logFallback(kind domain.InputKind, vendor string, err error) {
	log.WithFields(log.Fields{
		"type":   kind,
		"vendor": vendor,
		"error":  err,
	}).Warn("Classifier failed, using rule-based result")
}

func fallbackVerdict(heuristic domain.AnalysisResult) domain.Verdict {
	v := heuristic.Verdict()
	v.Explanation = FallbackDisclaimer + v.Explanation
	return v
}

// withBlocklistHits makes the verdict fraudulent and adds the feeds' threat types.
func withBlocklistHits(v domain.Verdict, blocked []domain.BlockedHost) domain.Verdict {
	seen := make(map[string]bool)
	threatTypes := []string{}
	for _, tt := range v.ThreatTypes {
		if !seen[tt] {
			seen[tt] = true
			threatTypes = append(threatTypes, tt)
		}
	}

	sources := []string{}
	for _, b := range blocked {
		tt := b.ThreatType
		if tt == "" {
			tt = "blocklisted"
		}
		if !seen[tt] {
			seen[tt] = true
			threatTypes = append(threatTypes, tt)
		}
		sources = append(sources, b.Source)
	}

	// A safe verdict's confidence backs the wrong label.
	if !v.IsFraudulent || v.ConfidenceScore < 0.9 {
		v.ConfidenceScore = 0.9
	}
	v.IsFraudulent = true
	v.ThreatTypes = threatTypes
	v.Explanation = strings.TrimSpace(fmt.Sprintf("%s Host %s is listed by %s.",
		v.Explanation, blocked[0].Host, strings.Join(dedupe(sources), ", ")))
	return v
}

func dedupe(in []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, s := range in {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func cacheKey(kind domain.InputKind, content string) string {
	sum := sha256.Sum256([]byte(content))
	return string(kind) + ":" + hex.EncodeToString(sum[:])
}
