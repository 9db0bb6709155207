package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

func TestDefaultRuleSet(t *testing.T) {
	rs := domain.DefaultRuleSet()

	assert.Equal(t, domain.DefaultRuleSetVersion, rs.Version)
	assert.Len(t, rs.Text, len(domain.DefaultTextRules))
	assert.Len(t, rs.URL, len(domain.DefaultURLRules))
	for _, r := range append(rs.Text, rs.URL...) {
		assert.Positive(t, r.Weight, r.ID)
		assert.NotEmpty(t, r.Description, r.ID)
		assert.NotEmpty(t, r.Category, r.ID)
	}
}

func TestNewRuleSet_Rejects(t *testing.T) {
	tests := []struct {
		name string
		text []domain.RuleSpec
	}{
		{"missing id", []domain.RuleSpec{{Pattern: "x", Weight: 1}}},
		{"zero weight", []domain.RuleSpec{{ID: "a", Pattern: "x", Weight: 0}}},
		{"negative weight", []domain.RuleSpec{{ID: "a", Pattern: "x", Weight: -5}}},
		{"bad pattern", []domain.RuleSpec{{ID: "a", Pattern: "(unclosed", Weight: 1}}},
		{"duplicate id", []domain.RuleSpec{{ID: "a", Pattern: "x", Weight: 1}, {ID: "a", Pattern: "y", Weight: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.NewRuleSet("v1", tt.text, nil)
			assert.Error(t, err)
		})
	}

	_, err := domain.NewRuleSet("", nil, nil)
	assert.Error(t, err)
}

func TestNewRuleSet_DuplicateAcrossTables(t *testing.T) {
	_, err := domain.NewRuleSet("v1",
		[]domain.RuleSpec{{ID: "shared", Pattern: "x", Weight: 1}},
		[]domain.RuleSpec{{ID: "shared", Pattern: "y", Weight: 1}})
	assert.Error(t, err)
}

func TestRuleSet_SpecsRoundTrip(t *testing.T) {
	rs := domain.DefaultRuleSet()
	text, url := rs.Specs()

	rebuilt, err := domain.NewRuleSet(rs.Version, text, url)
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultTextRules, text)
	assert.Equal(t, domain.DefaultURLRules, url)
	assert.Len(t, rebuilt.Text, len(rs.Text))
}
