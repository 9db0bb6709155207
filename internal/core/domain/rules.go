package domain

import (
	"fmt"
	"regexp"
)

// DefaultRuleSetVersion identifies the built-in rule table. Bump it whenever a
// pattern or weight below changes so stored results can be traced back.
const DefaultRuleSetVersion = "2024.3"

// ScoreRule is one additive scoring rule. Weight is always positive, which is
// what keeps the total score monotonic in the number of matches.
type ScoreRule struct {
	ID          string
	Pattern     *regexp.Regexp
	Weight      int
	Description string
	Category    string
}

// RuleSet is the shared, versioned rule table consumed by every scorer.
type RuleSet struct {
	Version string
	Text    []ScoreRule
	URL     []ScoreRule
}

// RuleSpec is the uncompiled form of a rule, as written in code or in a rules file.
type RuleSpec struct {
	ID          string `yaml:"id" json:"id"`
	Pattern     string `yaml:"pattern" json:"pattern"`
	Weight      int    `yaml:"weight" json:"weight"`
	Description string `yaml:"description" json:"description"`
	Category    string `yaml:"category" json:"category"`
}

// NewRule compiles a RuleSpec.
func NewRule(spec RuleSpec) (ScoreRule, error) {
	if spec.ID == "" {
		return ScoreRule{}, fmt.Errorf("rule without id")
	}
	if spec.Weight <= 0 {
		return ScoreRule{}, fmt.Errorf("rule %s: weight must be positive, got %d", spec.ID, spec.Weight)
	}
	re, err := regexp.Compile(spec.Pattern)
	if err != nil {
		return ScoreRule{}, fmt.Errorf("rule %s: invalid pattern: %w", spec.ID, err)
	}
	return ScoreRule{
		ID:          spec.ID,
		Pattern:     re,
		Weight:      spec.Weight,
		Description: spec.Description,
		Category:    spec.Category,
	}, nil
}

// NewRuleSet compiles text and url rule specs into a RuleSet. Rule IDs must be
// unique across both tables.
func NewRuleSet(version string, text, url []RuleSpec) (*RuleSet, error) {
	if version == "" {
		return nil, fmt.Errorf("rule set without version")
	}
	seen := make(map[string]bool)
	compile := func(specs []RuleSpec) ([]ScoreRule, error) {
		rules := make([]ScoreRule, 0, len(specs))
		for _, spec := range specs {
			if seen[spec.ID] {
				return nil, fmt.Errorf("duplicate rule id %q", spec.ID)
			}
			seen[spec.ID] = true
			rule, err := NewRule(spec)
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule)
		}
		return rules, nil
	}

	textRules, err := compile(text)
	if err != nil {
		return nil, err
	}
	urlRules, err := compile(url)
	if err != nil {
		return nil, err
	}
	return &RuleSet{Version: version, Text: textRules, URL: urlRules}, nil
}

// Specs returns the rule set back in its uncompiled form.
func (rs *RuleSet) Specs() (text, url []RuleSpec) {
	toSpecs := func(rules []ScoreRule) []RuleSpec {
		specs := make([]RuleSpec, len(rules))
		for i, r := range rules {
			specs[i] = RuleSpec{
				ID:          r.ID,
				Pattern:     r.Pattern.String(),
				Weight:      r.Weight,
				Description: r.Description,
				Category:    r.Category,
			}
		}
		return specs
	}
	return toSpecs(rs.Text), toSpecs(rs.URL)
}

// DefaultTextRules is the built-in table for free text (messages, emails, SMS).
var DefaultTextRules = []RuleSpec{
	{ID: "txt-urgent-verify", Pattern: `(?is)\b(urgent|immediately|asap|act now|right away)\b.*\b(verify|confirm|update|validate)\b.*\b(account|identity|password|details|information)\b`, Weight: 25, Description: "Urgent request to verify account", Category: "phishing"},
	{ID: "txt-prize", Pattern: `(?i)\b(you(['’]ve| have)? (won|been selected)|winner|lottery|jackpot|claim (your )?(prize|reward|winnings))\b`, Weight: 35, Description: "Lottery or prize claim", Category: "lottery"},
	{ID: "txt-urgency", Pattern: `(?i)\b(urgent|immediately|act now|limited time|expires? (today|soon)|final (notice|warning)|within 24 hours)\b`, Weight: 20, Description: "Urgency pressure", Category: "pressure"},
	{ID: "txt-money", Pattern: `(?i)\$\s?\d{1,3}(,\d{3})+|\$\s?\d{4,}|\b\d{1,3}(,\d{3})+ (dollars|usd|euros)\b`, Weight: 15, Description: "Large sum of money mentioned", Category: "financial"},
	{ID: "txt-click", Pattern: `(?i)\bclick (here|this link|below|the link)\b`, Weight: 15, Description: "Call to action link", Category: "phishing"},
	{ID: "txt-sensitive", Pattern: `(?i)\b(password|pin code|social security|ssn|cvv|card number|bank (account|details)|login credentials)\b`, Weight: 30, Description: "Request for sensitive information", Category: "credential_theft"},
	{ID: "txt-payment", Pattern: `(?i)\b(gift ?cards?|bitcoin|crypto(currency)?|wire transfer|western union|moneygram)\b`, Weight: 25, Description: "Untraceable payment method", Category: "payment_fraud"},
	{ID: "txt-threat", Pattern: `(?i)\b(account (will be |has been )?(suspended|closed|locked|blocked)|legal action|arrest(ed)?|lawsuit)\b`, Weight: 25, Description: "Threat of account loss or legal action", Category: "intimidation"},
	{ID: "txt-fee", Pattern: `(?i)\b(processing|transfer|clearance|release|handling) fee\b`, Weight: 25, Description: "Advance fee request", Category: "advance_fee"},
	{ID: "txt-inheritance", Pattern: `(?i)\b(inheritance|next of kin|unclaimed funds|beneficiary)\b`, Weight: 20, Description: "Inheritance or unclaimed funds story", Category: "advance_fee"},
	{ID: "txt-tech-support", Pattern: `(?i)\b(virus detected|your (computer|device) is infected|call (microsoft|apple) support|tech support)\b`, Weight: 25, Description: "Fake technical support", Category: "tech_support"},
	{ID: "txt-short-link", Pattern: `(?i)\b(bit\.ly|tinyurl\.com|goo\.gl|t\.co|ow\.ly|is\.gd|cutt\.ly|rebrand\.ly)/\S+`, Weight: 15, Description: "Shortened link in message", Category: "obfuscation"},
	{ID: "txt-offer", Pattern: `(?i)\b(free gift|risk[- ]free|100% (free|guaranteed)|no cost to you)\b`, Weight: 10, Description: "Too-good-to-be-true offer", Category: "lure"},
	{ID: "txt-punctuation", Pattern: `[!?]{2,}|(![^!]*){3,}`, Weight: 10, Description: "Excessive punctuation", Category: "formatting"},
	{ID: "txt-shouting", Pattern: `\b[A-Z]{5,}\b`, Weight: 5, Description: "Shouting in capital letters", Category: "formatting"},
}

// DefaultURLRules is the built-in table for URLs. Patterns run against the
// normalised, lower-cased URL.
var DefaultURLRules = []RuleSpec{
	{ID: "url-ip-host", Pattern: `^[a-z][a-z0-9+.-]*://(\d{1,3}\.){3}\d{1,3}([:/?#]|$)`, Weight: 40, Description: "IP address used as host", Category: "ip_literal"},
	{ID: "url-shortener", Pattern: `^[a-z][a-z0-9+.-]*://(www\.)?(bit\.ly|tinyurl\.com|goo\.gl|t\.co|ow\.ly|is\.gd|buff\.ly|cutt\.ly|rebrand\.ly|shorturl\.at)([/?#]|$)`, Weight: 25, Description: "URL shortener", Category: "obfuscation"},
	{ID: "url-userinfo", Pattern: `^[a-z][a-z0-9+.-]*://[^/?#]*@`, Weight: 30, Description: "Credentials or @ before host", Category: "obfuscation"},
	{ID: "url-tld", Pattern: `^[a-z][a-z0-9+.-]*://[^/?#]+\.(tk|ml|ga|cf|gq|xyz|top|zip|click|country|work|rest)(:\d+)?([/?#]|$)`, Weight: 20, Description: "Suspicious top-level domain", Category: "suspicious_tld"},
	{ID: "url-punycode", Pattern: `^[a-z][a-z0-9+.-]*://[^/?#]*xn--`, Weight: 20, Description: "Punycode (lookalike) domain", Category: "impersonation"},
	{ID: "url-brand-hyphen", Pattern: `^[a-z][a-z0-9+.-]*://[^/?#]*((paypal|apple|amazon|microsoft|netflix|google|facebook|instagram)-|-(paypal|apple|amazon|microsoft|netflix|google|facebook|instagram))`, Weight: 25, Description: "Brand name in hyphenated host", Category: "impersonation"},
	{ID: "url-subdomains", Pattern: `^[a-z][a-z0-9+.-]*://([^./?#]+\.){4,}[^./?#]+([:/?#]|$)`, Weight: 15, Description: "Excessive subdomains", Category: "obfuscation"},
	{ID: "url-keywords", Pattern: `(login|log-in|signin|sign-in|verify|verification|secure|account|update|banking|wallet|password)`, Weight: 15, Description: "Phishing keywords in URL", Category: "phishing"},
	{ID: "url-executable", Pattern: `\.(exe|apk|scr|bat|msi|vbs|jar)([?#]|$)`, Weight: 25, Description: "Executable download", Category: "malware"},
	{ID: "url-redirect", Pattern: `[?&](redirect|redirect_uri|url|next|goto|dest)=https?`, Weight: 15, Description: "Open redirect parameter", Category: "obfuscation"},
	{ID: "url-http", Pattern: `^http://`, Weight: 10, Description: "Unencrypted connection", Category: "transport"},
	{ID: "url-port", Pattern: `^[a-z][a-z0-9+.-]*://[^/?#@]+:\d{2,5}([/?#]|$)`, Weight: 10, Description: "Explicit non-default port", Category: "transport"},
	{ID: "url-long", Pattern: `^.{100,}$`, Weight: 10, Description: "Unusually long URL", Category: "obfuscation"},
}

// DefaultRuleSet compiles the built-in tables. The tables are fixed at build
// time so a failure here is a programming error.
func DefaultRuleSet() *RuleSet {
	rs, err := NewRuleSet(DefaultRuleSetVersion, DefaultTextRules, DefaultURLRules)
	if err != nil {
		panic(fmt.Sprintf("default rule set: %v", err))
	}
	return rs
}
