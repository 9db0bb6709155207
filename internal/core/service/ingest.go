package service

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hive-corporation/fraudshield/internal/core/domain"
	"github.com/hive-corporation/fraudshield/internal/core/ports"
)

const (
	DefaultIngestBatchSize = 2000
	ingestFlushInterval    = 5 * time.Second
)

// IngestReport summarises one ingestion run.
type IngestReport struct {
	Saved       int
	FailedFeeds []string
}

// IngestBlocklists downloads every feed concurrently and saves the hosts in
// batches. A failing feed is logged and skipped; a failing save aborts the run.
func IngestBlocklists(ctx context.Context, feeds []ports.BlocklistProvider, repo ports.BlocklistRepository, batchSize int) (IngestReport, error) {
	if batchSize <= 0 {
		batchSize = DefaultIngestBatchSize
	}

	hosts := make(chan domain.BlockedHost, batchSize)
	failed := make(chan string, len(feeds))

	g, gctx := errgroup.WithContext(ctx)

	download := new(errgroup.Group)
	for _, feed := range feeds {
		download.Go(func() error {
			entry := log.WithField("feed", feed.Name())
			entry.Info("📥 Downloading feed")

			found, err := feed.FetchBlockedHosts(gctx)
			if err != nil {
				entry.WithError(err).Error("❌ Failed to download feed")
				failed <- feed.Name()
				return nil
			}

			entry.WithField("hosts", len(found)).Info("✅ Feed downloaded")
			for _, h := range found {
				select {
				case hosts <- h:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		err := download.Wait()
		close(hosts)
		close(failed)
		return err
	})

	var report IngestReport
	g.Go(func() error {
		saved, err := saveInBatches(gctx, repo, hosts, batchSize)
		report.Saved = saved
		return err
	})

	err := g.Wait()
	for name := range failed {
		report.FailedFeeds = append(report.FailedFeeds, name)
	}
	if err != nil {
		return report, fmt.Errorf("ingestion aborted: %w", err)
	}

	log.WithFields(log.Fields{
		"saved":       report.Saved,
		"failedFeeds": len(report.FailedFeeds),
	}).Info("🏁 Blocklist ingestion finished")
	return report, nil
}

func saveInBatches(ctx context.Context, repo ports.BlocklistRepository, hosts <-chan domain.BlockedHost, batchSize int) (int, error) {
	var batch []domain.BlockedHost
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := repo.SaveBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to save batch: %w", err)
		}
		total += len(batch)
		log.WithFields(log.Fields{"batch": len(batch), "total": total}).Info("📦 Batch saved")
		batch = nil
		return nil
	}

	ticker := time.NewTicker(ingestFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case h, ok := <-hosts:
			if !ok {
				return total, flush()
			}
			batch = append(batch, h)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		case <-ticker.C:
			if err := flush(); err != nil {
				return total, err
			}
		case <-ctx.Done():
			return total, ctx.Err()
		}
	}
}
