package intent

import (
	"context"

	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
	"github.com/hugohenrick/whatsapp-commerce/pkg/logger"
)

// FallbackClassifier tries the AI stage first and falls back to the keyword stage.
type FallbackClassifier struct {
	primary  Classifier
	fallback *KeywordClassifier
	logger   logger.Logger
}

// NewFallbackClassifier composes the two stages. primary may be nil.
func NewFallbackClassifier(primary Classifier, fallback *KeywordClassifier, log logger.Logger) *FallbackClassifier {
	if fallback == nil {
		fallback = NewKeywordClassifier(DefaultPartialMatch())
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &FallbackClassifier{primary: primary, fallback: fallback, logger: log}
}

// Classify implements Classifier. It never returns an error.
func (f *FallbackClassifier) Classify(ctx context.Context, message string, catalog []domain.Product, settings *domain.Settings) (Intent, error) {
	if f.primary != nil && settings != nil && settings.AI.Usable() {
		in, err := f.primary.Classify(ctx, message, catalog, settings)
		if err == nil {
			return in, nil
		}
		f.logger.Warn("AI classification failed, using keyword classifier",
			"tenant_id", settings.TenantID,
			"error", err,
		)
	}

	return f.fallback.Classify(ctx, message, catalog, settings)
}
