package exporter

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

// MaxExportEntries bounds a single export.
const MaxExportEntries = 10000

// FraudFeed is anything that can list recent fraudulent analyses.
type FraudFeed interface {
	FraudSince(ctx context.Context, since time.Time, limit int) ([]domain.AnalysisRecord, error)
}

// CEFExporter exports fraudulent analyses in Common Event Format for SIEM ingestion
type CEFExporter struct {
	feed FraudFeed
}

func NewCEFExporter(feed FraudFeed) *CEFExporter {
	return &CEFExporter{feed: feed}
}

// Export generates a CEF feed, one line per fraudulent analysis.
// Format: CEF:Version|Device Vendor|Device Product|Device Version|Signature ID|Name|Severity|Extension
func (e *CEFExporter) Export(ctx context.Context, since time.Time) (string, error) {
	// Default to last 24 hours if no time specified
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}

	records, err := e.feed.FraudSince(ctx, since, MaxExportEntries)
	if err != nil {
		return "", fmt.Errorf("failed to fetch analyses: %w", err)
	}

	var output strings.Builder
	for _, rec := range records {
		output.WriteString(FormatCEF(rec))
		output.WriteString("\n")
	}

	return output.String(), nil
}

// FormatCEF renders one analysis as a CEF line.
func FormatCEF(rec domain.AnalysisRecord) string {
	confidence := int(math.Round(domain.NormalizeConfidence(rec.Verdict.ConfidenceScore) * 100))

	vendor := "HiveCorporation"
	product := "FraudShield"
	version := "1.0"
	signatureID := string(rec.Kind)
	name := fmt.Sprintf("Fraudulent %s detected", rec.Kind)

	source := rec.Verdict.Source
	if rec.Fallback {
		source += " (fallback)"
	}

	extensions := []string{
		fmt.Sprintf("externalId=%s", rec.ID),
		fmt.Sprintf("suser=%s", escapeExtension(rec.ClientID)),
		"cn1Label=ConfidenceScore",
		fmt.Sprintf("cn1=%d", confidence),
		"cs1Label=ThreatTypes",
		fmt.Sprintf("cs1=%s", escapeExtension(strings.Join(rec.Verdict.ThreatTypes, ","))),
		"cs2Label=Source",
		fmt.Sprintf("cs2=%s", escapeExtension(source)),
		fmt.Sprintf("msg=%s", escapeExtension(truncate(rec.Verdict.Explanation, 512))),
		fmt.Sprintf("rt=%d", rec.AnalyzedAt.UnixMilli()),
	}
	if rec.Kind == domain.KindURL {
		extensions = append(extensions, fmt.Sprintf("request=%s", escapeExtension(rec.Content)))
	}

	return fmt.Sprintf("CEF:0|%s|%s|%s|%s|%s|%d|%s",
		vendor, product, version, escapeHeader(signatureID), escapeHeader(name),
		calculateSeverity(confidence), strings.Join(extensions, " "))
}

func calculateSeverity(confidence int) int {
	// Map confidence (0-100) to CEF severity (0-10)
	if confidence >= 90 {
		return 10 // Critical
	} else if confidence >= 80 {
		return 8 // High
	} else if confidence >= 70 {
		return 6 // Medium
	} else if confidence >= 60 {
		return 4 // Low
	}
	return 2 // Info
}

func escapeHeader(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "|", "\\|")
}

func escapeExtension(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "=", "\\=")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
