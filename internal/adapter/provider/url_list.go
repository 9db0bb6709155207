package provider

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

// URLListProvider reads plain-text feeds with one entry per line: full URLs
// (OpenPhish), host:port pairs or bare hosts. Each entry is reduced to its host.
type URLListProvider struct {
	client       *http.Client
	url          string
	providerName string
	threatType   string
}

func NewURLListProvider(client *http.Client, providerName string, feedURL string, threatType string) *URLListProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &URLListProvider{
		client:       client,
		providerName: providerName,
		url:          feedURL,
		threatType:   threatType,
	}
}

func (p *URLListProvider) Name() string {
	return p.providerName
}

func (p *URLListProvider) FetchBlockedHosts(ctx context.Context) ([]domain.BlockedHost, error) {
	log.WithFields(log.Fields{"provider": p.providerName, "url": p.url}).Info("📥 Fetching host list")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", p.providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch hosts from %s: %s", p.url, resp.Status)
	}

	return p.parse(resp.Body, time.Now().UTC())
}

func (p *URLListProvider) parse(r io.Reader, now time.Time) ([]domain.BlockedHost, error) {
	base := domain.BlockedHost{
		Source:       p.providerName,
		ThreatType:   p.threatType,
		Tags:         []string{"threat-feed"},
		FirstSeen:    now,
		DateIngested: now,
	}

	seen := make(map[string]bool)
	var hosts []domain.BlockedHost
	scanner := bufio.NewScanner(r)
	lineCount := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineCount++

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		if idx := strings.Index(line, " #"); idx != -1 {
			line = strings.TrimSpace(line[:idx])
		}

		host, ok := domain.BlockedHostFromValue(line, base)
		if !ok || seen[host.Host] {
			continue
		}
		seen[host.Host] = true
		hosts = append(hosts, host)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}

	log.WithFields(log.Fields{
		"provider": p.providerName,
		"lines":    lineCount,
		"hosts":    len(hosts),
	}).Info("✅ Parsed host list")

	return hosts, nil
}
