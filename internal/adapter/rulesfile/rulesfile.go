// Package rulesfile loads a scoring rule table from YAML so the heuristic can
// be tuned without a rebuild.
package rulesfile

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

// File is the on-disk layout:
//
//	version: "2024.4"
//	text:
//	  - id: txt-prize
//	    pattern: '(?i)\bwinner\b'
//	    weight: 35
//	    description: Lottery or prize claim
//	    category: lottery
//	url: []
type File struct {
	Version string            `yaml:"version"`
	Text    []domain.RuleSpec `yaml:"text"`
	URL     []domain.RuleSpec `yaml:"url"`
}

func Load(path string) (*domain.RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer f.Close()

	rs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rs, nil
}

// Parse decodes and compiles a rule table. Unknown keys are rejected.
func Parse(r io.Reader) (*domain.RuleSet, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty rules file")
		}
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}
	if len(file.Text) == 0 && len(file.URL) == 0 {
		return nil, fmt.Errorf("rules file defines no rules")
	}

	return domain.NewRuleSet(file.Version, file.Text, file.URL)
}

// Marshal writes a rule set back out in the same layout.
func Marshal(rs *domain.RuleSet) ([]byte, error) {
	text, url := rs.Specs()

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(File{Version: rs.Version, Text: text, URL: url}); err != nil {
		return nil, fmt.Errorf("failed to encode rules: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
