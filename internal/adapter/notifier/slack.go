package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

const slackPostMessageURL = "https://slack.com/api/chat.postMessage"

type SlackNotifier struct {
	botToken    string
	channel     string
	mentionTeam string
	apiURL      string
	httpClient  *http.Client
}

func NewSlackNotifier(botToken, channel, mentionTeam string) *SlackNotifier {
	return &SlackNotifier{
		botToken:    botToken,
		channel:     channel,
		mentionTeam: mentionTeam,
		apiURL:      slackPostMessageURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithAPIURL points the notifier at another chat.postMessage endpoint.
func (s *SlackNotifier) WithAPIURL(apiURL string) *SlackNotifier {
	s.apiURL = apiURL
	return s
}

// NotifyFraudDetected sends a high-confidence fraud alert to the security channel.
func (s *SlackNotifier) NotifyFraudDetected(rec domain.AnalysisRecord) error {
	payload := SlackMessage{
		Channel: s.channel,
		Blocks:  s.buildFraudBlocks(rec),
		Text:    fmt.Sprintf("🚨 Fraudulent %s detected (%d%% confidence)", rec.Kind, confidencePercent(rec.Verdict)),
	}

	return s.sendMessage(payload)
}

func (s *SlackNotifier) buildFraudBlocks(rec domain.AnalysisRecord) []SlackBlock {
	threatTypes := "unspecified"
	if len(rec.Verdict.ThreatTypes) > 0 {
		threatTypes = strings.Join(rec.Verdict.ThreatTypes, ", ")
	}

	source := rec.Verdict.Source
	if rec.Fallback {
		source += " (fallback)"
	}

	blocks := []SlackBlock{
		{
			Type: "header",
			Text: &SlackText{
				Type: "plain_text",
				Text: "🚨 Fraud Detected",
			},
		},
		{
			Type: "section",
			Fields: []SlackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Type*\n%s", rec.Kind)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Confidence*\n%d%%", confidencePercent(rec.Verdict))},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Threat Types*\n%s", threatTypes)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Source*\n%s", source)},
			},
		},
		{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*Content*\n```%s```", preview(rec.Content, 300)),
			},
		},
		{Type: "divider"},
		{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*🤖 Explanation*\n%s", rec.Verdict.Explanation),
			},
		},
		{
			Type: "context",
			Elements: []SlackText{
				{
					Type: "mrkdwn",
					Text: fmt.Sprintf("Analysis `%s` | Client *%s* | %s",
						rec.ID, rec.ClientID, rec.AnalyzedAt.Format(time.RFC3339)),
				},
			},
		},
	}

	// Mention team if configured
	if s.mentionTeam != "" {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("🔔 %s", s.mentionTeam),
			},
		})
	}

	return blocks
}

// Send message to Slack
func (s *SlackNotifier) sendMessage(msg SlackMessage) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.botToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack API returned status %d", resp.StatusCode)
	}

	// Slack answers 200 with ok=false on application errors.
	var apiResp slackResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err == nil && !apiResp.OK {
		return fmt.Errorf("slack API error: %s", apiResp.Error)
	}

	return nil
}

func confidencePercent(v domain.Verdict) int {
	return int(math.Round(domain.NormalizeConfidence(v.ConfidenceScore) * 100))
}

func preview(s string, n int) string {
	s = strings.ReplaceAll(s, "```", "'''")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// Slack API structures

type SlackMessage struct {
	Channel string       `json:"channel"`
	Blocks  []SlackBlock `json:"blocks"`
	Text    string       `json:"text"` // Fallback text
}

type SlackBlock struct {
	Type     string      `json:"type"`
	Text     *SlackText  `json:"text,omitempty"`
	Fields   []SlackText `json:"fields,omitempty"`
	Elements []SlackText `json:"elements,omitempty"`
}

type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
