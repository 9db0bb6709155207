package ports

import (
	"context"

	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

// Notifier defines the interface for sending notifications to external systems
type Notifier interface {
	// NotifyFraudDetected sends a notification for a high-confidence fraud verdict
	NotifyFraudDetected(rec domain.AnalysisRecord) error
}

// EventPublisher emits completed analyses to the message bus.
type EventPublisher interface {
	PublishAnalysis(ctx context.Context, rec domain.AnalysisRecord) error
}
