package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hive-corporation/fraudshield/internal/config"
	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

func TestNew_InMemory(t *testing.T) {
	a, err := New(context.Background(), config.Config{HistoryLimit: 5})
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Repo)
	assert.Nil(t, a.Publisher)
	assert.Equal(t, domain.DefaultRuleSetVersion, a.Service.Rules().Version)

	rec, err := a.Service.AnalyzeText(context.Background(), "", "hello there, see you tomorrow")
	require.NoError(t, err)
	assert.Equal(t, "heuristic", rec.Verdict.Source)
}

func TestNew_RulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`version: "custom-1"
text:
  - {id: t1, pattern: 'scam', weight: 80, description: Scam word, category: fraud}
`), 0o600))

	a, err := New(context.Background(), config.Config{RulesFile: path})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "custom-1", a.Service.Rules().Version)
	assert.Equal(t, domain.TierFraud, a.Service.Score(domain.AnalysisInput{Content: "a scam", Kind: domain.KindText}).Tier)
}

func TestNew_BadRulesFile(t *testing.T) {
	_, err := New(context.Background(), config.Config{RulesFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestConfigureVendors(t *testing.T) {
	a, err := New(context.Background(), config.Config{
		CogniflowAPIKey:    "k",
		CogniflowTextModel: "text-model",
		SafeBrowsingAPIKey: "k",
	})
	require.NoError(t, err)
	defer a.Close()
	assert.NotNil(t, a.Service)
}
