package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hive-corporation/fraudshield/internal/adapter/handler"
	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

var scanFlags struct {
	remote      bool
	concurrency int
	rules       string
}

var scanCmd = &cobra.Command{
	Use:   "scan-file <path>",
	Short: "Score every non-empty line of a file (URLs, messages) and fail on fraud",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	f := scanCmd.Flags()
	f.BoolVar(&scanFlags.remote, "remote", false, "Use the server's full analysis instead of local rules")
	f.IntVar(&scanFlags.concurrency, "concurrency", 8, "Parallel requests in --remote mode")
	f.StringVar(&scanFlags.rules, "rules", "", "YAML rules file for local scoring")
}

type scanLine struct {
	number  int
	content string
}

type scanResult struct {
	line scanLine
	tier domain.RiskTier
	text string
}

func readScanLines(r io.Reader) ([]scanLine, error) {
	var lines []scanLine
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, scanLine{number: n, content: line})
	}
	return lines, scanner.Err()
}

func runScan(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}
	defer file.Close()

	lines, err := readScanLines(file)
	if err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "🔍 scanning %d entries from %s...\n\n", len(lines), args[0])

	var results []scanResult
	if scanFlags.remote {
		results, err = scanRemote(cmd.Context(), lines)
	} else {
		results, err = scanLocal(lines)
	}
	if err != nil {
		return err
	}

	return report(out, results)
}

func scanLocal(lines []scanLine) ([]scanResult, error) {
	scorer, err := localScorer(scanFlags.rules)
	if err != nil {
		return nil, err
	}
	results := make([]scanResult, len(lines))
	for i, l := range lines {
		r := scorer.Score(domain.AnalysisInput{Content: l.content})
		results[i] = scanResult{line: l, tier: r.Tier, text: fmt.Sprintf("score %d", r.Score)}
	}
	return results, nil
}

func scanRemote(ctx context.Context, lines []scanLine) ([]scanResult, error) {
	conn, err := dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	client := handler.NewDetectorClient(conn)
	results := make([]scanResult, len(lines))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(scanFlags.concurrency, 1))
	for i, l := range lines {
		g.Go(func() error {
			resp, err := client.Analyze(gctx, domain.DetectInputKind(l.content), l.content, "")
			res := scanResult{line: l}
			if err != nil {
				res.tier, res.text = domain.TierError, err.Error()
			} else {
				res.tier = resp.RiskTier
				res.text = fmt.Sprintf("%d%% via %s", resp.Display.FraudPercentage, resp.Source)
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func report(out io.Writer, results []scanResult) error {
	flagged := 0
	for _, r := range results {
		tierColor(r.tier).Fprintf(out, "[%-10s]", strings.ToUpper(string(r.tier)))
		fmt.Fprintf(out, " line %d: %s (%s)\n", r.line.number, preview(r.line.content, 80), r.text)
		if r.tier == domain.TierFraud {
			flagged++
		}
	}

	fmt.Fprintln(out, "------------------------------------------------")
	if flagged > 0 {
		colorRed.Fprintf(out, "❌ FAIL: %d fraudulent entries found.\n", flagged)
		return fmt.Errorf("%d fraudulent entries", flagged)
	}
	colorGreen.Fprintf(out, "✅ SUCCESS: %d entries checked. No fraud found.\n", len(results))
	return nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
