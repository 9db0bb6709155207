package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hive-corporation/fraudshield/internal/adapter/rulesfile"
	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

var scoreFlags struct {
	kind  string
	rules string
}

var scoreCmd = &cobra.Command{
	Use:   "score [content]",
	Short: "Score text or a URL with the local rule set (reads stdin when no argument)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.StringVar(&scoreFlags.kind, "type", "", "Content type: text or url (detected when empty)")
	f.StringVar(&scoreFlags.rules, "rules", "", "YAML rules file (built-in rules when empty)")
}

func runScore(cmd *cobra.Command, args []string) error {
	content, err := contentArg(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	scorer, err := localScorer(scoreFlags.rules)
	if err != nil {
		return err
	}

	result := scorer.Score(domain.AnalysisInput{Content: content, Kind: domain.InputKind(scoreFlags.kind)})
	printResult(cmd.OutOrStdout(), result)
	return nil
}

func localScorer(rulesPath string) (*domain.Scorer, error) {
	rules := domain.DefaultRuleSet()
	if rulesPath != "" {
		loaded, err := rulesfile.Load(rulesPath)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	return domain.NewScorer(rules, domain.DefaultThresholds()), nil
}

func contentArg(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if f, ok := stdin.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "", fmt.Errorf("no content: pass it as an argument or on stdin")
		}
	}
	raw, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	content := strings.TrimSpace(string(raw))
	if content == "" {
		return "", fmt.Errorf("no content: pass it as an argument or on stdin")
	}
	return content, nil
}
