package llm

import (
	"strings"
	"testing"

	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

func TestApplyPreGuardrails_ShortText(t *testing.T) {
	config := DefaultGuardrailConfig()

	for _, text := range []string{"", "hi", "  ok?  "} {
		verdict, skip := ApplyPreGuardrails(text, config)
		if !skip {
			t.Errorf("Expected %q to skip the model", text)
			continue
		}
		if verdict.IsFraudulent {
			t.Errorf("Expected short text %q to be safe", text)
		}
	}
}

func TestApplyPreGuardrails_KnownGoodLinks(t *testing.T) {
	config := DefaultGuardrailConfig()

	tests := []struct {
		name     string
		text     string
		wantSkip bool
	}{
		{"single known-good link", "https://www.google.com/search?q=go", true},
		{"several known-good links", "https://docs.github.com/en  https://en.wikipedia.org/wiki/Go", true},
		{"lookalike host", "https://google.com.evil-site.tk/login", false},
		{"unknown host", "https://paypa1-secure.example/login", false},
		{"link with a message", "Verify your account now at https://www.paypal.com", false},
		{"plain message", "Your parcel could not be delivered, pay the fee", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, skip := ApplyPreGuardrails(tt.text, config)
			if skip != tt.wantSkip {
				t.Fatalf("ApplyPreGuardrails() skip = %v, want %v", skip, tt.wantSkip)
			}
			if skip && verdict.IsFraudulent {
				t.Error("Known-good links should never be fraudulent")
			}
		})
	}
}

func TestApplyPostGuardrails(t *testing.T) {
	config := DefaultGuardrailConfig()

	tests := []struct {
		name             string
		input            domain.Verdict
		wantFraud        bool
		wantThreatTypes  []string
		wantMinConfident float64
		wantExplanation  string
	}{
		{
			name:             "safe verdict listing phishing is overridden",
			input:            domain.Verdict{IsFraudulent: false, ConfidenceScore: 0.3, ThreatTypes: []string{"Phishing"}},
			wantFraud:        true,
			wantThreatTypes:  []string{"phishing"},
			wantMinConfident: 0.6,
		},
		{
			name:             "fraud without threat types gets unspecified",
			input:            domain.Verdict{IsFraudulent: true, ConfidenceScore: 0.9, Explanation: "Scam."},
			wantFraud:        true,
			wantThreatTypes:  []string{"unspecified"},
			wantMinConfident: 0.9,
			wantExplanation:  "Scam.",
		},
		{
			name:             "threat types are normalised and deduplicated",
			input:            domain.Verdict{IsFraudulent: true, ConfidenceScore: 85, ThreatTypes: []string{"Advance Fee", "advance-fee", " Lottery "}},
			wantFraud:        true,
			wantThreatTypes:  []string{"advance_fee", "lottery"},
			wantMinConfident: 0.85,
		},
		{
			name:             "missing confidence takes the default",
			input:            domain.Verdict{IsFraudulent: false, Explanation: "Looks fine."},
			wantFraud:        false,
			wantThreatTypes:  []string{},
			wantMinConfident: 0.5,
			wantExplanation:  "Looks fine. (Low confidence: treat with caution.)",
		},
		{
			name:             "harmless threat types on safe verdict are dropped",
			input:            domain.Verdict{IsFraudulent: false, ConfidenceScore: 0.9, ThreatTypes: []string{"marketing"}},
			wantFraud:        false,
			wantThreatTypes:  []string{},
			wantMinConfident: 0.9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyPostGuardrails(tt.input, config)

			if got.IsFraudulent != tt.wantFraud {
				t.Errorf("IsFraudulent = %v, want %v", got.IsFraudulent, tt.wantFraud)
			}
			if strings.Join(got.ThreatTypes, ",") != strings.Join(tt.wantThreatTypes, ",") {
				t.Errorf("ThreatTypes = %v, want %v", got.ThreatTypes, tt.wantThreatTypes)
			}
			if got.ThreatTypes == nil {
				t.Error("ThreatTypes should never be nil")
			}
			if got.ConfidenceScore < tt.wantMinConfident-1e-9 || got.ConfidenceScore > 1 {
				t.Errorf("ConfidenceScore = %v, want >= %v and <= 1", got.ConfidenceScore, tt.wantMinConfident)
			}
			if tt.wantExplanation != "" && got.Explanation != tt.wantExplanation {
				t.Errorf("Explanation = %q, want %q", got.Explanation, tt.wantExplanation)
			}
			if got.Explanation == "" {
				t.Error("Explanation should never be empty")
			}
		})
	}
}

func TestApplyPostGuardrails_OverrideInvertsSafeConfidence(t *testing.T) {
	config := DefaultGuardrailConfig()

	sure := ApplyPostGuardrails(domain.Verdict{ConfidenceScore: 0.95, ThreatTypes: []string{"phishing"}}, config)
	if !sure.IsFraudulent || sure.ConfidenceScore != 0.6 {
		t.Errorf("confident safe + phishing: got fraud=%v confidence=%v, want fraud at 0.6", sure.IsFraudulent, sure.ConfidenceScore)
	}

	unsure := ApplyPostGuardrails(domain.Verdict{ConfidenceScore: 0.1, ThreatTypes: []string{"phishing"}}, config)
	if diff := unsure.ConfidenceScore - 0.9; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("unsure safe + phishing: confidence = %v, want 0.9", unsure.ConfidenceScore)
	}
}

func TestIsKnownGoodHost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"google.com", true},
		{"www.google.com", true},
		{"accounts.google.com", true},
		{"google.com.evil.tk", false},
		{"notgoogle.com", false},
		{"paypal.com", true},
		{"paypal-login.com", false},
	}

	for _, tt := range tests {
		if got := isKnownGoodHost(tt.host); got != tt.want {
			t.Errorf("isKnownGoodHost(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}
