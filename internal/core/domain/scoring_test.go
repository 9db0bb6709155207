package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

func newScorer() *domain.Scorer {
	return domain.NewScorer(nil, domain.DefaultThresholds())
}

func descriptions(r domain.AnalysisResult) []string {
	out := make([]string, len(r.MatchedRules))
	for i, m := range r.MatchedRules {
		out[i] = m.Description
	}
	return out
}

func TestScorer_LotteryMessageIsFraud(t *testing.T) {
	result := newScorer().ScoreText("URGENT! You've won $1,000,000! Click here to claim your prize!")

	assert.Equal(t, domain.TierFraud, result.Tier)
	assert.GreaterOrEqual(t, result.Score, 60)
	assert.Contains(t, descriptions(result), "Lottery or prize claim")
	assert.Contains(t, descriptions(result), "Urgency pressure")
	assert.Equal(t, domain.DefaultRuleSetVersion, result.RuleSetVersion)
}

func TestScorer_OrderConfirmationIsSafe(t *testing.T) {
	result := newScorer().ScoreText("Thank you for your order, it will arrive in 3-5 days.")

	assert.Equal(t, domain.TierSafe, result.Tier)
	assert.Equal(t, 0, result.Score)
	assert.Equal(t, 0, result.Percentage)
	assert.Empty(t, result.MatchedRules)
}

func TestScorer_EmptyAndShortTextIsSafe(t *testing.T) {
	scorer := newScorer()

	for _, text := range []string{"", " ", "ok", "hi there"} {
		result := scorer.ScoreText(text)
		assert.Equal(t, domain.TierSafe, result.Tier, text)
		assert.Equal(t, 0, result.Score, text)
		assert.NotNil(t, result.MatchedRules, text)
	}
}

func TestScorer_MatchedRulesFollowTableOrder(t *testing.T) {
	result := newScorer().ScoreText("URGENT! You've won $1,000,000! Click here to claim your prize!")

	order := make(map[string]int)
	for i, spec := range domain.DefaultTextRules {
		order[spec.ID] = i
	}
	for i := 1; i < len(result.MatchedRules); i++ {
		assert.Less(t, order[result.MatchedRules[i-1].RuleID], order[result.MatchedRules[i].RuleID])
	}
}

func TestScorer_ScoreIsMonotonic(t *testing.T) {
	scorer := newScorer()
	bases := []string{
		"Hello, your parcel is on its way.",
		"Please confirm the meeting time.",
		"You have won a free gift",
	}
	extras := []string{
		"Click here to claim your prize",
		"Pay the processing fee with gift cards",
		"Your account will be suspended",
		"WARNING!!!",
		"Send your password and card number",
	}

	for _, base := range bases {
		before := scorer.ScoreText(base).Score
		for _, extra := range extras {
			after := scorer.ScoreText(base + " " + extra).Score
			assert.GreaterOrEqual(t, after, before, "%q + %q", base, extra)
		}
	}
}

func TestScorer_ScoreIsClampedToMax(t *testing.T) {
	text := strings.Join([]string{
		"URGENT!!! You have won the lottery, claim your prize now.",
		"Verify your account immediately or your account will be suspended.",
		"Send your password, card number and pay the processing fee in bitcoin.",
		"Inheritance from next of kin, tech support, 100% guaranteed, bit.ly/xyz",
	}, " ")

	result := newScorer().ScoreText(text)

	assert.Equal(t, 100, result.Score)
	assert.Equal(t, 100, result.Percentage)
	assert.Equal(t, domain.TierFraud, result.Tier)
}

func TestScorer_URLRules(t *testing.T) {
	scorer := newScorer()

	tests := []struct {
		name     string
		url      string
		wantTier domain.RiskTier
		wantRule string
	}{
		{"ip literal over http with login path", "http://192.168.10.5/login", domain.TierFraud, "IP address used as host"},
		{"shortener alone", "https://bit.ly/3abcd", domain.TierSafe, "URL shortener"},
		{"brand lookalike on cheap tld", "https://paypal-secure.tk/account", domain.TierFraud, "Brand name in hyphenated host"},
		{"userinfo trick", "https://www.paypal.com@evil.example/signin", domain.TierSuspicious, "Credentials or @ before host"},
		{"executable download", "https://files.example.com/invoice.exe", domain.TierSafe, "Executable download"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := scorer.ScoreURL(tt.url)
			assert.Equal(t, tt.wantTier, result.Tier, "score=%d rules=%v", result.Score, descriptions(result))
			assert.Contains(t, descriptions(result), tt.wantRule)
			assert.Equal(t, domain.KindURL, result.Kind)
		})
	}
}

func TestScorer_CleanURLIsSafe(t *testing.T) {
	result := newScorer().ScoreURL("https://www.wikipedia.org/wiki/Go")

	assert.Equal(t, domain.TierSafe, result.Tier)
	assert.Equal(t, 0, result.Score)
}

func TestScorer_MalformedURLIsErrorTier(t *testing.T) {
	scorer := newScorer()

	for _, raw := range []string{"http://", "http://exa mple.com", "ftp://files.example.com", "javascript:alert(1)"} {
		result := scorer.ScoreURL(raw)
		assert.Equal(t, domain.TierError, result.Tier, raw)
		assert.Equal(t, 0, result.Score, raw)
		assert.Empty(t, result.MatchedRules, raw)
	}
}

func TestScorer_ScoreDetectsKind(t *testing.T) {
	scorer := newScorer()

	url := scorer.Score(domain.AnalysisInput{Content: "bit.ly/abc"})
	assert.Equal(t, domain.KindURL, url.Kind)
	assert.Contains(t, descriptions(url), "URL shortener")

	text := scorer.Score(domain.AnalysisInput{Content: "see you at bit.ly/abc tomorrow"})
	assert.Equal(t, domain.KindText, text.Kind)
	assert.Contains(t, descriptions(text), "Shortened link in message")

	forced := scorer.Score(domain.AnalysisInput{Content: "bit.ly/abc", Kind: domain.KindText})
	assert.Equal(t, domain.KindText, forced.Kind)
}

func TestClassifyTier(t *testing.T) {
	th := domain.DefaultThresholds()

	tests := []struct {
		score int
		want  domain.RiskTier
	}{
		{0, domain.TierSafe},
		{29, domain.TierSafe},
		{30, domain.TierSuspicious},
		{59, domain.TierSuspicious},
		{60, domain.TierFraud},
		{100, domain.TierFraud},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, domain.ClassifyTier(tt.score, th), "score %d", tt.score)
	}
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0, domain.Percentage(0, 100))
	assert.Equal(t, 45, domain.Percentage(45, 100))
	assert.Equal(t, 100, domain.Percentage(150, 100))
	assert.Equal(t, 0, domain.Percentage(-10, 100))
	assert.Equal(t, 33, domain.Percentage(1, 3))
	assert.Equal(t, 67, domain.Percentage(2, 3))
	assert.Equal(t, 0, domain.Percentage(5, 0))
}

func TestPercentage_AlwaysWithinBounds(t *testing.T) {
	for score := -50; score <= 250; score += 7 {
		p := domain.Percentage(score, 80)
		assert.GreaterOrEqual(t, p, 0)
		assert.LessOrEqual(t, p, 100)
	}
}

func TestAnalysisResult_Verdict(t *testing.T) {
	result := newScorer().ScoreText("URGENT! You've won $1,000,000! Click here to claim your prize!")
	verdict := result.Verdict()

	assert.True(t, verdict.IsFraudulent)
	assert.InDelta(t, float64(result.Percentage)/100, verdict.ConfidenceScore, 0.0001)
	assert.Contains(t, verdict.ThreatTypes, "lottery")
	assert.Equal(t, "heuristic", verdict.Source)
	assert.Contains(t, verdict.Explanation, "Lottery or prize claim")

	safe := newScorer().ScoreText("See you at lunch").Verdict()
	assert.False(t, safe.IsFraudulent)
	assert.Equal(t, 1.0, safe.ConfidenceScore)
	assert.Empty(t, safe.ThreatTypes)
	assert.Equal(t, "No known fraud patterns detected.", safe.Explanation)
}

func TestAnalysisResult_VerdictConfidenceBacksItsLabel(t *testing.T) {
	tests := []struct {
		tier       domain.RiskTier
		percentage int
		wantFraud  bool
		wantConf   float64
	}{
		{domain.TierSafe, 0, false, 1.0},
		{domain.TierSafe, 20, false, 0.8},
		{domain.TierSuspicious, 45, false, 0.55},
		{domain.TierFraud, 60, true, 0.6},
		{domain.TierFraud, 100, true, 1.0},
	}

	for _, tt := range tests {
		v := domain.AnalysisResult{Tier: tt.tier, Percentage: tt.percentage}.Verdict()
		assert.Equal(t, tt.wantFraud, v.IsFraudulent, "%s %d%%", tt.tier, tt.percentage)
		assert.InDelta(t, tt.wantConf, v.ConfidenceScore, 1e-9, "%s %d%%", tt.tier, tt.percentage)
	}
}

func TestNewScorer_CustomThresholds(t *testing.T) {
	rules, err := domain.NewRuleSet("test", []domain.RuleSpec{
		{ID: "a", Pattern: `(?i)alpha`, Weight: 5, Description: "alpha"},
		{ID: "b", Pattern: `(?i)beta`, Weight: 5, Description: "beta"},
	}, nil)
	require.NoError(t, err)

	scorer := domain.NewScorer(rules, domain.Thresholds{Fraud: 10, Suspicious: 5, MaxScore: 10})

	assert.Equal(t, domain.TierSuspicious, scorer.ScoreText("alpha").Tier)
	both := scorer.ScoreText("alpha beta")
	assert.Equal(t, domain.TierFraud, both.Tier)
	assert.Equal(t, 100, both.Percentage)
	assert.Equal(t, "test", both.RuleSetVersion)
}
