package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hive-corporation/fraudshield/internal/adapter/vendor"
	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

const (
	DefaultGeminiURL   = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel = "gemini-1.5-flash"
	geminiSource       = "gemini"

	// Longer texts are truncated before they are put in the prompt.
	maxPromptTextRunes = 8000
)

type GeminiConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Enabled bool
	Timeout time.Duration
}

// GeminiAnalyzer is the "enhanced" text flow: it asks Gemini for a structured
// fraud assessment and wraps the call in guardrails.
type GeminiAnalyzer struct {
	config     GeminiConfig
	client     *vendor.ResilientClient
	guardrails GuardrailConfig
}

func NewGeminiAnalyzer(config GeminiConfig, resilience vendor.ResilientClientConfig) *GeminiAnalyzer {
	if config.BaseURL == "" {
		config.BaseURL = DefaultGeminiURL
	}
	if config.Model == "" {
		config.Model = DefaultGeminiModel
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &GeminiAnalyzer{
		config:     config,
		client:     vendor.NewResilientClient(geminiSource, config.Timeout, resilience),
		guardrails: DefaultGuardrailConfig(),
	}
}

// IsEnabled returns whether the Gemini flow is switched on and has a key.
func (g *GeminiAnalyzer) IsEnabled() bool {
	return g.config.Enabled && g.config.APIKey != ""
}

func (g *GeminiAnalyzer) Name() string {
	return geminiSource
}

// GeminiAnalysis is the JSON object the model is asked to answer with.
// Pointer fields tell a missing value apart from a zero one.
type GeminiAnalysis struct {
	IsFraudulent    *bool    `json:"isFraudulent"`
	ConfidenceScore *float64 `json:"confidenceScore"`
	RiskLevel       string   `json:"riskLevel"`
	Explanation     string   `json:"explanation"`
	ThreatTypes     []string `json:"threatTypes"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type generateContentRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature      float64 `json:"temperature"`
		MaxOutputTokens  int     `json:"maxOutputTokens"`
		ResponseMIMEType string  `json:"responseMimeType"`
	} `json:"generationConfig"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// ClassifyText analyzes text with Gemini and returns a guarded verdict.
func (g *GeminiAnalyzer) ClassifyText(ctx context.Context, text string) (domain.Verdict, error) {
	if !g.IsEnabled() {
		return domain.Verdict{}, fmt.Errorf("gemini: %w", domain.ErrClassifierUnavailable)
	}

	if pre, skip := ApplyPreGuardrails(text, g.guardrails); skip {
		return *pre, nil
	}

	content, err := g.generate(ctx, g.buildPrompt(text))
	if err != nil {
		return domain.Verdict{}, err
	}

	analysis, err := parseAnalysis(content)
	if err != nil {
		vendor.RecordError(geminiSource, "parse")
		return domain.Verdict{}, fmt.Errorf("gemini: %w: %v", domain.ErrClassifierUnavailable, err)
	}

	verdict := ApplyPostGuardrails(GeminiVerdict(analysis), g.guardrails)

	log.WithFields(log.Fields{
		"vendor":     geminiSource,
		"fraudulent": verdict.IsFraudulent,
		"confidence": verdict.ConfidenceScore,
	}).Debug("Gemini analysis completed")

	return verdict, nil
}

func (g *GeminiAnalyzer) buildPrompt(text string) string {
	if runes := []rune(text); len(runes) > maxPromptTextRunes {
		text = string(runes[:maxPromptTextRunes])
	}

	var sb strings.Builder

	sb.WriteString("You are a fraud analyst. Decide whether the message below is a scam, phishing or other fraud attempt.\n\n")
	sb.WriteString("Message:\n\"\"\"\n")
	sb.WriteString(text)
	sb.WriteString("\n\"\"\"\n\n")

	sb.WriteString("Answer with a single JSON object and nothing else:\n")
	sb.WriteString("```json\n")
	sb.WriteString("{\n")
	sb.WriteString("  \"isFraudulent\": true/false,\n")
	sb.WriteString("  \"confidenceScore\": 0.0-1.0,\n")
	sb.WriteString("  \"riskLevel\": \"low|medium|high\",\n")
	sb.WriteString("  \"explanation\": \"One or two sentences for the end user\",\n")
	sb.WriteString("  \"threatTypes\": [\"phishing\", \"lottery\", ...]\n")
	sb.WriteString("}\n")
	sb.WriteString("```\n\n")

	sb.WriteString("Guidelines:\n")
	sb.WriteString("1. Requests for passwords, card numbers or codes are strong evidence of phishing\n")
	sb.WriteString("2. Prizes, inheritances and fees paid up front are classic advance-fee fraud\n")
	sb.WriteString("3. Urgency alone is weak evidence; ordinary notifications can be urgent\n")
	sb.WriteString("4. Use threat types from: phishing, credential_theft, lottery, advance_fee, impersonation, tech_support, payment_fraud, malware\n")
	sb.WriteString("5. threatTypes must be empty when isFraudulent is false\n")

	return sb.String()
}

func (g *GeminiAnalyzer) generate(ctx context.Context, prompt string) (string, error) {
	var body generateContentRequest
	body.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}
	body.GenerationConfig.Temperature = 0.2
	body.GenerationConfig.MaxOutputTokens = 1024
	body.GenerationConfig.ResponseMIMEType = "application/json"

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(g.config.BaseURL, "/"), g.config.Model, url.QueryEscape(g.config.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w: %v", domain.ErrClassifierUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read gemini response: %w", err)
	}

	var response generateContentResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		vendor.RecordError(geminiSource, "parse")
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}

	if response.PromptFeedback != nil && response.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini blocked the prompt (%s): %w", response.PromptFeedback.BlockReason, domain.ErrClassifierUnavailable)
	}
	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no candidates in gemini response: %w", domain.ErrClassifierUnavailable)
	}

	var sb strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// parseAnalysis extracts the JSON object from the model output, which may be
// wrapped in a markdown code block.
func parseAnalysis(content string) (GeminiAnalysis, error) {
	jsonStr := content
	if idx := strings.Index(content, "```json"); idx != -1 {
		jsonStr = content[idx+7:]
		if endIdx := strings.Index(jsonStr, "```"); endIdx != -1 {
			jsonStr = jsonStr[:endIdx]
		}
	} else if idx := strings.Index(content, "```"); idx != -1 {
		jsonStr = content[idx+3:]
		if endIdx := strings.Index(jsonStr, "```"); endIdx != -1 {
			jsonStr = jsonStr[:endIdx]
		}
	}

	jsonStr = strings.TrimSpace(jsonStr)
	if start, end := strings.Index(jsonStr, "{"), strings.LastIndex(jsonStr, "}"); start >= 0 && end > start {
		jsonStr = jsonStr[start : end+1]
	}

	var analysis GeminiAnalysis
	if err := json.Unmarshal([]byte(jsonStr), &analysis); err != nil {
		return analysis, fmt.Errorf("failed to parse JSON: %w (response: %s)", err, jsonStr)
	}
	return analysis, nil
}

// GeminiVerdict maps the model's answer onto the canonical verdict. When
// isFraudulent is missing the risk level decides.
func GeminiVerdict(a GeminiAnalysis) domain.Verdict {
	fraudulent := false
	if a.IsFraudulent != nil {
		fraudulent = *a.IsFraudulent
	} else {
		switch strings.ToLower(strings.TrimSpace(a.RiskLevel)) {
		case "high", "critical":
			fraudulent = true
		}
	}

	confidence := 0.0
	if a.ConfidenceScore != nil {
		confidence = *a.ConfidenceScore
	}

	threatTypes := a.ThreatTypes
	if threatTypes == nil {
		threatTypes = []string{}
	}

	return domain.Verdict{
		IsFraudulent:    fraudulent,
		ConfidenceScore: confidence,
		Explanation:     strings.TrimSpace(a.Explanation),
		ThreatTypes:     threatTypes,
		Source:          geminiSource,
	}
}
