package llm

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/hive-corporation/fraudshield/internal/adapter/vendor"
	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

// Guardrails are rule-based checks wrapped around the model call: the pre
// checks answer trivial inputs without calling Gemini, the post checks make
// the model output consistent before it becomes a verdict.

// KnownGoodHosts are sites a link-only message may point to without ever
// being classified by the model. Subdomains match too.
var KnownGoodHosts = []string{
	"google.com",
	"youtube.com",
	"microsoft.com",
	"office.com",
	"live.com",
	"apple.com",
	"icloud.com",
	"amazon.com",
	"paypal.com",
	"github.com",
	"wikipedia.org",
	"mozilla.org",
}

// HighRiskThreatTypes are threat types that only make sense on a fraudulent verdict.
var HighRiskThreatTypes = []string{
	"phishing",
	"credential_theft",
	"advance_fee",
	"lottery",
	"impersonation",
	"malware",
	"tech_support",
	"payment_fraud",
	"social_engineering",
}

var linkRe = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)

type GuardrailConfig struct {
	MinTextLength        int     // shorter texts are not sent to the model (default: 8)
	MinConfidenceForSafe float64 // safe verdicts below this are flagged for review (default: 0.6)
	DefaultConfidence    float64 // used when the model omits a confidence (default: 0.5)
}

func DefaultGuardrailConfig() GuardrailConfig {
	return GuardrailConfig{
		MinTextLength:        8,
		MinConfidenceForSafe: 0.6,
		DefaultConfidence:    0.5,
	}
}

// ApplyPreGuardrails checks if we can make a determination before calling the model.
// Returns (verdict, shouldSkipModel)
func ApplyPreGuardrails(text string, config GuardrailConfig) (*domain.Verdict, bool) {
	trimmed := strings.TrimSpace(text)

	if utf8.RuneCountInString(trimmed) < config.MinTextLength {
		log.WithField("length", utf8.RuneCountInString(trimmed)).Debug("⚡ Pre-filter: text too short for the model")
		vendor.RecordGuardrail("pre", "skip")
		return &domain.Verdict{
			IsFraudulent:    false,
			ConfidenceScore: config.DefaultConfidence,
			Explanation:     "The text is too short to contain a fraud attempt.",
			ThreatTypes:     []string{},
			Source:          "guardrail",
		}, true
	}

	links := linkRe.FindAllString(trimmed, -1)
	if len(links) > 0 && strings.TrimSpace(linkRe.ReplaceAllString(trimmed, "")) == "" {
		for _, link := range links {
			host, ok := domain.HostFromValue(link)
			if !ok || !isKnownGoodHost(host) {
				return nil, false
			}
		}
		log.WithField("links", len(links)).Debug("⚡ Pre-filter: only links to known-good sites")
		vendor.RecordGuardrail("pre", "skip")
		return &domain.Verdict{
			IsFraudulent:    false,
			ConfidenceScore: 0.95,
			Explanation:     "The text only links to well-known legitimate sites.",
			ThreatTypes:     []string{},
			Source:          "guardrail",
		}, true
	}

	return nil, false
}

// ApplyPostGuardrails validates and adjusts the model's verdict.
func ApplyPostGuardrails(v domain.Verdict, config GuardrailConfig) domain.Verdict {
	v.ConfidenceScore = domain.NormalizeConfidence(v.ConfidenceScore)
	if v.ConfidenceScore == 0 {
		v.ConfidenceScore = config.DefaultConfidence
	}
	v.ThreatTypes = normalizeThreatTypes(v.ThreatTypes)

	// Guardrail 1: high-risk threat types cannot come with a safe verdict
	if !v.IsFraudulent {
		if risky := highRiskTypes(v.ThreatTypes); len(risky) > 0 {
			log.WithField("threat_types", risky).Warn("⚠️  Guardrail: safe verdict lists high-risk threats - overriding to fraud")
			vendor.RecordGuardrail("post", "override")
			v.IsFraudulent = true
			// the model's confidence was in "safe"
			v.ConfidenceScore = math.Max(1-v.ConfidenceScore, 0.6)
		}
	}

	// Guardrail 2: a safe verdict only carries threat types it did not flag
	if !v.IsFraudulent && len(v.ThreatTypes) > 0 {
		vendor.RecordGuardrail("post", "normalize")
		v.ThreatTypes = []string{}
	}

	// Guardrail 3: fraud always names at least one threat
	if v.IsFraudulent && len(v.ThreatTypes) == 0 {
		vendor.RecordGuardrail("post", "normalize")
		v.ThreatTypes = []string{"unspecified"}
	}

	if strings.TrimSpace(v.Explanation) == "" {
		if v.IsFraudulent {
			v.Explanation = fmt.Sprintf("The model flagged this text as fraudulent (%s).", strings.Join(v.ThreatTypes, ", "))
		} else {
			v.Explanation = "The model found no sign of fraud."
		}
	}

	// Guardrail 4: low-confidence safe verdicts are flagged for review
	if !v.IsFraudulent && v.ConfidenceScore < config.MinConfidenceForSafe {
		vendor.RecordGuardrail("post", "annotate")
		v.Explanation += " (Low confidence: treat with caution.)"
	}

	return v
}

func isKnownGoodHost(host string) bool {
	host = domain.NormalizeHost(host)
	for _, good := range KnownGoodHosts {
		if host == good || strings.HasSuffix(host, "."+good) {
			return true
		}
	}
	return false
}

func highRiskTypes(threatTypes []string) []string {
	var out []string
	for _, tt := range threatTypes {
		for _, risk := range HighRiskThreatTypes {
			if strings.Contains(tt, risk) {
				out = append(out, tt)
				break
			}
		}
	}
	return out
}

// normalizeThreatTypes lowercases, snake_cases and deduplicates threat types.
func normalizeThreatTypes(in []string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, tt := range in {
		tt = strings.ToLower(strings.TrimSpace(tt))
		tt = strings.NewReplacer(" ", "_", "-", "_").Replace(tt)
		if tt == "" || seen[tt] {
			continue
		}
		seen[tt] = true
		out = append(out, tt)
	}
	return out
}
