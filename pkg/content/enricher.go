package content

import (
	"context"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/examdigest/pkg/domain"
)

// Extractor pulls readable text from a URL
type Extractor interface {
	Extract(ctx context.Context, urlStr string) (string, error)
}

// ArticleStore is the persistence surface the enricher needs
type ArticleStore interface {
	GetByStates(ctx context.Context, states []domain.ClassificationState, limit int) ([]*domain.Article, error)
	UpdateBody(ctx context.Context, id int64, body string) error
}

// Enricher fills in article bodies before classification so the AI sees the
// full text instead of just the listing title. Extraction is best-effort:
// failures and thin pages leave the body empty and never block the pipeline.
type Enricher struct {
	extractor Extractor
	store     ArticleStore
	minLength int
}

// NewEnricher creates a body enricher; minLength discards boilerplate-only
// extractions
func NewEnricher(extractor Extractor, store ArticleStore, minLength int) *Enricher {
	if minLength <= 0 {
		minLength = 100
	}
	return &Enricher{extractor: extractor, store: store, minLength: minLength}
}

// EnrichPending extracts bodies for unclassified articles that don't have one
// yet. Returns how many articles got a body.
func (e *Enricher) EnrichPending(ctx context.Context, limit int) (int, error) {
	articles, err := e.store.GetByStates(ctx,
		[]domain.ClassificationState{domain.StateUnclassified, domain.StateFailedRetryable}, limit)
	if err != nil {
		return 0, err
	}

	enriched := 0
	for _, article := range articles {
		if article.Body != "" {
			continue
		}

		body, err := e.extractor.Extract(ctx, article.URL)
		if err != nil {
			log.Printf("[DEBUG] extraction failed for article %d (%s): %v", article.ID, article.URL, err)
			continue
		}
		if len(body) < e.minLength {
			log.Printf("[DEBUG] extraction too short for article %d: %d chars", article.ID, len(body))
			continue
		}

		if err := e.store.UpdateBody(ctx, article.ID, body); err != nil {
			log.Printf("[WARN] failed to store body for article %d: %v", article.ID, err)
			continue
		}
		enriched++
	}

	if enriched > 0 {
		log.Printf("[INFO] enriched %d articles with extracted content", enriched)
	}
	return enriched, nil
}
