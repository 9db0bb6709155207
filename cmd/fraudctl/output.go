package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/hive-corporation/fraudshield/internal/adapter/handler"
	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

var (
	colorRed    = color.New(color.FgRed, color.Bold)
	colorYellow = color.New(color.FgYellow, color.Bold)
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorCyan   = color.New(color.FgCyan)
)

func tierColor(tier domain.RiskTier) *color.Color {
	switch tier {
	case domain.TierFraud, domain.TierError:
		return colorRed
	case domain.TierSuspicious:
		return colorYellow
	default:
		return colorGreen
	}
}

func printResult(out io.Writer, r domain.AnalysisResult) {
	tierColor(r.Tier).Fprintf(out, "%s", strings.ToUpper(string(r.Tier)))
	fmt.Fprintf(out, "  score %d (%d%%)  [%s rules %s]\n", r.Score, r.Percentage, r.Kind, r.RuleSetVersion)
	for _, m := range r.MatchedRules {
		colorCyan.Fprintf(out, "  +%-3d", m.Weight)
		fmt.Fprintf(out, " %s (%s)\n", m.Description, m.RuleID)
	}
}

func printDetection(out io.Writer, resp handler.DetectionResponse) {
	tierColor(resp.RiskTier).Fprintf(out, "%s", resp.Display.Label)
	fmt.Fprintf(out, "  fraud %d%%  confidence %d%%  via %s", resp.Display.FraudPercentage, resp.Display.Confidence, resp.Source)
	if resp.Fallback {
		colorYellow.Fprint(out, " (fallback)")
	}
	if resp.Cached {
		fmt.Fprint(out, " (cached)")
	}
	fmt.Fprintln(out)
	if len(resp.ThreatTypes) > 0 {
		fmt.Fprintf(out, "  threats: %s\n", strings.Join(resp.ThreatTypes, ", "))
	}
	fmt.Fprintf(out, "  %s\n", resp.Explanation)
}
