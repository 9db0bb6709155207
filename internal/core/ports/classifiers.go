package ports

import (
	"context"

	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

// TextClassifier is any network classifier able to judge free text.
type TextClassifier interface {
	ClassifyText(ctx context.Context, text string) (domain.Verdict, error)
	Name() string
}

// URLClassifier checks a URL against a reputation service.
type URLClassifier interface {
	CheckURL(ctx context.Context, url string) (domain.Verdict, error)
	Name() string
}

type ImageClassifier interface {
	ClassifyImage(ctx context.Context, img domain.ImagePayload) (domain.Verdict, error)
	Name() string
}
