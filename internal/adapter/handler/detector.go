package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

// Detector is the detection service as seen by the transports.
type Detector interface {
	AnalyzeText(ctx context.Context, clientID, text string) (domain.AnalysisRecord, error)
	AnalyzeURL(ctx context.Context, clientID, rawURL string) (domain.AnalysisRecord, error)
	AnalyzeImage(ctx context.Context, clientID, imageData, fileName string) (domain.AnalysisRecord, error)
	Score(input domain.AnalysisInput) domain.AnalysisResult
	Rules() *domain.RuleSet
	History(clientID string) domain.Snapshot
	FraudSince(ctx context.Context, since time.Time, limit int) ([]domain.AnalysisRecord, error)
}

// DetectionResponse is what every detection endpoint returns. The first four
// fields are the shape the browser extension reads.
type DetectionResponse struct {
	IsFraudulent    bool                   `json:"isFraudulent"`
	ConfidenceScore float64                `json:"confidenceScore"`
	Explanation     string                 `json:"explanation"`
	ThreatTypes     []string               `json:"threatTypes"`
	ID              uuid.UUID              `json:"id"`
	Type            domain.InputKind       `json:"type"`
	RiskTier        domain.RiskTier        `json:"riskTier"`
	Source          string                 `json:"source"`
	Fallback        bool                   `json:"fallback"`
	Cached          bool                   `json:"cached"`
	AnalyzedAt      time.Time              `json:"analyzedAt"`
	Display         domain.Display         `json:"display"`
	Analysis        *domain.AnalysisResult `json:"analysis,omitempty"`
}

func NewDetectionResponse(rec domain.AnalysisRecord) DetectionResponse {
	threatTypes := rec.Verdict.ThreatTypes
	if threatTypes == nil {
		threatTypes = []string{}
	}
	return DetectionResponse{
		IsFraudulent:    rec.Verdict.IsFraudulent,
		ConfidenceScore: domain.NormalizeConfidence(rec.Verdict.ConfidenceScore),
		Explanation:     rec.Verdict.Explanation,
		ThreatTypes:     threatTypes,
		ID:              rec.ID,
		Type:            rec.Kind,
		RiskTier:        rec.Tier(),
		Source:          rec.Verdict.Source,
		Fallback:        rec.Fallback,
		Cached:          rec.Cached,
		AnalyzedAt:      rec.AnalyzedAt,
		Display:         domain.DisplayFromVerdict(rec.Verdict),
		Analysis:        rec.Heuristic,
	}
}

// analyze dispatches on the extension's content type.
func analyze(ctx context.Context, d Detector, clientID string, kind domain.InputKind, content, fileName string) (domain.AnalysisRecord, error) {
	switch kind {
	case domain.KindURL:
		return d.AnalyzeURL(ctx, clientID, content)
	case domain.KindImage:
		return d.AnalyzeImage(ctx, clientID, content, fileName)
	default:
		return d.AnalyzeText(ctx, clientID, content)
	}
}

// errorStatus maps a detection error to an HTTP status and a message that is
// safe to show to callers.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrEmptyInput):
		return http.StatusBadRequest, "input is empty"
	case errors.Is(err, domain.ErrMalformedURL):
		return http.StatusBadRequest, "invalid url"
	case errors.Is(err, domain.ErrUnsupportedImage):
		return http.StatusBadRequest, "unsupported image"
	case errors.Is(err, domain.ErrClassifierUnavailable):
		return http.StatusServiceUnavailable, "analysis service unavailable, please try again later"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "analysis timed out"
	default:
		return http.StatusInternalServerError, "analysis failed"
	}
}
