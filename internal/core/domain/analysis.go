package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type InputKind string

const (
	KindText  InputKind = "text"
	KindURL   InputKind = "url"
	KindImage InputKind = "image"
)

type RiskTier string

const (
	TierSafe       RiskTier = "safe"
	TierSuspicious RiskTier = "suspicious"
	TierFraud      RiskTier = "fraud"
	TierError      RiskTier = "error" // only produced for malformed URLs
)

var (
	ErrEmptyInput            = errors.New("input is empty")
	ErrMalformedURL          = errors.New("malformed url")
	ErrUnsupportedImage      = errors.New("unsupported image data")
	ErrClassifierUnavailable = errors.New("classifier unavailable")
)

// AnalysisInput is a piece of content to be scored. Kind may be left empty,
// in which case the scorer decides between text and url.
type AnalysisInput struct {
	Content string
	Kind    InputKind
}

type RuleMatch struct {
	RuleID      string `json:"id"`
	Description string `json:"description"`
	Weight      int    `json:"weight"`
	Category    string `json:"category"`
}

// AnalysisResult is the output of the heuristic scorer.
type AnalysisResult struct {
	Kind           InputKind   `json:"type"`
	Tier           RiskTier    `json:"riskTier"`
	Score          int         `json:"score"`
	Percentage     int         `json:"percentage"`
	MatchedRules   []RuleMatch `json:"matchedRules"`
	RuleSetVersion string      `json:"ruleSetVersion"`
}

// Verdict is the canonical shape every classifier (vendor or heuristic) is
// reduced to before it leaves the service. ConfidenceScore is the confidence
// in the verdict's own label: how sure the classifier is that the content is
// fraudulent when IsFraudulent is set, and that it is safe otherwise.
type Verdict struct {
	IsFraudulent    bool     `json:"isFraudulent"`
	ConfidenceScore float64  `json:"confidenceScore"`
	Explanation     string   `json:"explanation"`
	ThreatTypes     []string `json:"threatTypes"`
	Source          string   `json:"source,omitempty"`
}

// AnalysisRecord is one completed analysis as stored, published and kept in history.
type AnalysisRecord struct {
	ID         uuid.UUID       `json:"id"`
	ClientID   string          `json:"clientId,omitempty"`
	Kind       InputKind       `json:"type"`
	Content    string          `json:"content"`
	Verdict    Verdict         `json:"verdict"`
	Heuristic  *AnalysisResult `json:"heuristic,omitempty"`
	Fallback   bool            `json:"fallback"`
	Cached     bool            `json:"cached"`
	AnalyzedAt time.Time       `json:"analyzedAt"`
}

// Tier collapses the record into a single tier. A vendor "safe" verdict over
// a heuristic hit is reported as suspicious rather than safe.
func (r AnalysisRecord) Tier() RiskTier {
	switch {
	case r.Heuristic != nil && r.Heuristic.Tier == TierError:
		return TierError
	case r.Verdict.IsFraudulent:
		return TierFraud
	case r.Heuristic != nil && r.Heuristic.Tier != TierSafe:
		return TierSuspicious
	default:
		return TierSafe
	}
}
