package ports

import (
	"context"
	"time"

	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

// BlocklistProvider fetches malicious hosts from a public feed.
type BlocklistProvider interface {
	FetchBlockedHosts(ctx context.Context) ([]domain.BlockedHost, error)
	Name() string
}

type BlocklistRepository interface {
	SaveBatch(ctx context.Context, hosts []domain.BlockedHost) error
	// FindBlocked returns the entries matching any of the given hosts.
	FindBlocked(ctx context.Context, hosts []string) ([]domain.BlockedHost, error)
}

type AnalysisRepository interface {
	SaveAnalysis(ctx context.Context, rec domain.AnalysisRecord) error
	FindSince(ctx context.Context, since time.Time, limit int) ([]domain.AnalysisRecord, error)
}
