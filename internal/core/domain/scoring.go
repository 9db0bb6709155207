package domain

import (
	"fmt"
	"math"
	"strings"
)

// Thresholds maps a numeric score onto a tier. The 60/30 cutoffs were tuned by
// hand and have never been validated against labelled data.
type Thresholds struct {
	Fraud      int
	Suspicious int
	MaxScore   int
}

func DefaultThresholds() Thresholds {
	return Thresholds{Fraud: 60, Suspicious: 30, MaxScore: 100}
}

// Scorer is the rule-based fraud scorer used whenever no network classifier
// is available. It is pure: the same input and rule set always produce the
// same result.
type Scorer struct {
	rules      *RuleSet
	thresholds Thresholds
}

// NewScorer builds a scorer. A nil rule set means DefaultRuleSet.
func NewScorer(rules *RuleSet, thresholds Thresholds) *Scorer {
	if rules == nil {
		rules = DefaultRuleSet()
	}
	if thresholds.MaxScore <= 0 {
		thresholds = DefaultThresholds()
	}
	return &Scorer{rules: rules, thresholds: thresholds}
}

func (s *Scorer) RuleSet() *RuleSet {
	return s.rules
}

func (s *Scorer) Thresholds() Thresholds {
	return s.thresholds
}

// Score dispatches on input.Kind, detecting it from the content when empty.
func (s *Scorer) Score(input AnalysisInput) AnalysisResult {
	kind := input.Kind
	if kind == "" {
		kind = DetectInputKind(input.Content)
	}
	if kind == KindURL {
		return s.ScoreURL(input.Content)
	}
	return s.ScoreText(input.Content)
}

// ScoreText scores free text against the text rule table.
func (s *Scorer) ScoreText(text string) AnalysisResult {
	return s.evaluate(KindText, s.rules.Text, text)
}

// ScoreURL scores a URL against the url rule table. A URL that cannot be
// parsed gets the error tier and a zero score.
func (s *Scorer) ScoreURL(raw string) AnalysisResult {
	target, err := ParseURLTarget(raw)
	if err != nil {
		return AnalysisResult{
			Kind:           KindURL,
			Tier:           TierError,
			MatchedRules:   []RuleMatch{},
			RuleSetVersion: s.rules.Version,
		}
	}
	return s.evaluate(KindURL, s.rules.URL, target.Normalized)
}

func (s *Scorer) evaluate(kind InputKind, rules []ScoreRule, content string) AnalysisResult {
	matches := []RuleMatch{}
	score := 0

	for _, rule := range rules {
		if !rule.Pattern.MatchString(content) {
			continue
		}
		score += rule.Weight
		matches = append(matches, RuleMatch{
			RuleID:      rule.ID,
			Description: rule.Description,
			Weight:      rule.Weight,
			Category:    rule.Category,
		})
	}

	score = clamp(score, 0, s.thresholds.MaxScore)

	return AnalysisResult{
		Kind:           kind,
		Tier:           ClassifyTier(score, s.thresholds),
		Score:          score,
		Percentage:     Percentage(score, s.thresholds.MaxScore),
		MatchedRules:   matches,
		RuleSetVersion: s.rules.Version,
	}
}

// ClassifyTier maps a score onto safe/suspicious/fraud.
func ClassifyTier(score int, t Thresholds) RiskTier {
	switch {
	case score >= t.Fraud:
		return TierFraud
	case score >= t.Suspicious:
		return TierSuspicious
	default:
		return TierSafe
	}
}

// Percentage is min(100, round(100*score/maxScore)), never below zero.
func Percentage(score, maxScore int) int {
	if maxScore <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(score) / float64(maxScore)))
	return clamp(p, 0, 100)
}

// Verdict reduces a heuristic result to the canonical verdict shape. The
// percentage is a fraud likelihood, so a safe verdict is as confident as the
// percentage is low.
func (r AnalysisResult) Verdict() Verdict {
	threatTypes := []string{}
	seen := make(map[string]bool)
	for _, m := range r.MatchedRules {
		if m.Category == "" || seen[m.Category] {
			continue
		}
		seen[m.Category] = true
		threatTypes = append(threatTypes, m.Category)
	}

	fraudulent := r.Tier == TierFraud
	fraudLikelihood := float64(r.Percentage) / 100
	confidence := fraudLikelihood
	if !fraudulent {
		confidence = 1 - fraudLikelihood
	}

	return Verdict{
		IsFraudulent:    fraudulent,
		ConfidenceScore: confidence,
		Explanation:     r.Explanation(),
		ThreatTypes:     threatTypes,
		Source:          "heuristic",
	}
}

// Explanation is a one-line human summary of the matched rules.
func (r AnalysisResult) Explanation() string {
	if r.Tier == TierError {
		return "The URL could not be parsed."
	}
	if len(r.MatchedRules) == 0 {
		return "No known fraud patterns detected."
	}

	descriptions := make([]string, len(r.MatchedRules))
	for i, m := range r.MatchedRules {
		descriptions[i] = fmt.Sprintf("%s (+%d)", m.Description, m.Weight)
	}
	return fmt.Sprintf("Risk %s (%d%%). Matched %d rule(s): %s.",
		r.Tier, r.Percentage, len(r.MatchedRules), strings.Join(descriptions, ", "))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
