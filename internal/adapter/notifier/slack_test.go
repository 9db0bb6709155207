package notifier

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

func sampleRecord() domain.AnalysisRecord {
	return domain.AnalysisRecord{
		ID:       uuid.New(),
		ClientID: "ext-7",
		Kind:     domain.KindText,
		Content:  "You have won $1,000,000! Send a processing fee to claim.",
		Verdict: domain.Verdict{
			IsFraudulent:    true,
			ConfidenceScore: 0.92,
			Explanation:     "Classic advance-fee lottery scam.",
			ThreatTypes:     []string{"lottery", "advance_fee"},
			Source:          "gemini",
		},
		AnalyzedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNotifyFraudDetected(t *testing.T) {
	var got SlackMessage
	var auth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewSlackNotifier("xoxb-test", "#fraud-alerts", "@fraud-team").WithAPIURL(server.URL)
	require.NoError(t, n.NotifyFraudDetected(sampleRecord()))

	assert.Equal(t, "Bearer xoxb-test", auth)
	assert.Equal(t, "#fraud-alerts", got.Channel)
	assert.Equal(t, "🚨 Fraudulent text detected (92% confidence)", got.Text)
	require.NotEmpty(t, got.Blocks)
	assert.Equal(t, "header", got.Blocks[0].Type)
	assert.Contains(t, got.Blocks[1].Fields[2].Text, "lottery, advance_fee")

	last := got.Blocks[len(got.Blocks)-1]
	assert.Contains(t, last.Text.Text, "@fraud-team")
}

func TestNotifyFraudDetected_SlackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer server.Close()

	n := NewSlackNotifier("xoxb-test", "#missing", "").WithAPIURL(server.URL)
	err := n.NotifyFraudDetected(sampleRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestNotifyFraudDetected_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewSlackNotifier("xoxb-test", "#fraud-alerts", "").WithAPIURL(server.URL)
	assert.Error(t, n.NotifyFraudDetected(sampleRecord()))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short", 10))
	assert.Equal(t, "abc…", preview("abcdef", 3))
	assert.False(t, strings.Contains(preview("a```b", 10), "```"))
}
