package classifier

import (
	"context"
	"fmt"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/examdigest/pkg/domain"
)

// ArticleStore is the persistence surface the processor needs
type ArticleStore interface {
	GetByStates(ctx context.Context, states []domain.ClassificationState, limit int) ([]*domain.Article, error)
	UpdateClassification(ctx context.Context, id int64, c *domain.Classification) error
	ResetClassification(ctx context.Context, id int64, summary string, keyPoints, tags []string) error
}

// Enhancer produces AI enhancements for articles
type Enhancer interface {
	Classify(ctx context.Context, article *domain.Article) (*Enhancement, string, error)
}

// Selection picks which articles a classification run targets. Zero value is
// the default mode: pending work, i.e. unclassified plus retryable failures.
type Selection struct {
	Force           bool // reprocess regardless of state
	ReprocessErrors bool // only articles that failed terminally
	Clean           bool // strip error markers and revert to unclassified
}

// Result summarizes a classification run
type Result struct {
	ProcessedCount int    `json:"processed_count"`
	AIEnabled      bool   `json:"ai_enabled"`
	LastRawAI      string `json:"debug_last_ai_raw,omitempty"` // last raw model output, surfaced in trigger responses
}

// Processor classifies articles: a deterministic rule baseline always, an AI
// enhancement on top when an Enhancer is configured
type Processor struct {
	store     ArticleStore
	ai        Enhancer // nil disables AI enhancement
	batchSize int
}

// NewProcessor creates a classification processor. Pass a nil enhancer to run
// rules-only.
func NewProcessor(store ArticleStore, ai Enhancer, batchSize int) *Processor {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Processor{store: store, ai: ai, batchSize: batchSize}
}

// Run executes one classification pass over the selected articles
func (p *Processor) Run(ctx context.Context, sel Selection) (Result, error) {
	result := Result{AIEnabled: p.ai != nil}

	if sel.Clean {
		return p.runClean(ctx)
	}

	states := []domain.ClassificationState{domain.StateUnclassified, domain.StateFailedRetryable}
	switch {
	case sel.Force:
		states = []domain.ClassificationState{domain.StateUnclassified, domain.StateClassified,
			domain.StateFailedRetryable, domain.StateFailedTerminal}
	case sel.ReprocessErrors:
		states = []domain.ClassificationState{domain.StateFailedTerminal}
	}

	articles, err := p.store.GetByStates(ctx, states, p.batchSize)
	if err != nil {
		return result, fmt.Errorf("select articles: %w", err)
	}
	log.Printf("[INFO] classification started, %d articles, ai enabled: %v", len(articles), result.AIEnabled)

	for _, article := range articles {
		classification, raw := p.classify(ctx, article)
		if raw != "" {
			result.LastRawAI = raw
		}
		if err := p.store.UpdateClassification(ctx, article.ID, classification); err != nil {
			return result, fmt.Errorf("store classification for article %d: %w", article.ID, err)
		}
		result.ProcessedCount++
		log.Printf("[DEBUG] classified article %d (%s) -> %s, tags: %v",
			article.ID, article.Source, classification.State, classification.Tags)
	}

	log.Printf("[INFO] classification completed, processed %d articles", result.ProcessedCount)
	return result, nil
}

// classify builds the final classification for one article. The rule baseline
// is computed first so every failure path still yields complete content.
func (p *Processor) classify(ctx context.Context, article *domain.Article) (*domain.Classification, string) {
	baseline := Baseline(article)
	if p.ai == nil {
		return baseline, ""
	}

	enhancement, raw, err := p.ai.Classify(ctx, article)
	if err != nil {
		if IsRateLimited(err) {
			// leave a clean baseline so the article stays eligible for
			// the next default run
			log.Printf("[WARN] ai rate limited on article %d, will retry: %v", article.ID, err)
			baseline.State = domain.StateFailedRetryable
			return baseline, raw
		}
		log.Printf("[WARN] ai failed on article %d: %v", article.ID, err)
		baseline.Summary += " " + domain.AIErrorMarker + " " + truncateError(err)
		baseline.State = domain.StateFailedTerminal
		return baseline, raw
	}

	return merge(baseline, enhancement), raw
}

// truncateError bounds the error detail stored next to the marker; the
// summary is user-visible so a runaway provider message must not flood it
func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// merge overlays an AI enhancement onto the rule baseline. Empty AI fields
// keep the baseline; tags are the union of rule tags and valid AI tags.
func merge(baseline *domain.Classification, enhancement *Enhancement) *domain.Classification {
	merged := &domain.Classification{
		Title:     enhancement.TranslatedTitle,
		Summary:   baseline.Summary,
		KeyPoints: baseline.KeyPoints,
		Tags:      domain.UniqueTags(baseline.Tags, enhancement.ExamTags),
		State:     domain.StateClassified,
	}
	if enhancement.Summary != "" {
		merged.Summary = enhancement.Summary
	}
	if len(enhancement.KeyPoints) > 0 {
		merged.KeyPoints = enhancement.KeyPoints
	}
	return merged
}

// runClean reverts terminally failed articles to a clean unclassified
// baseline, stripping the error marker
func (p *Processor) runClean(ctx context.Context) (Result, error) {
	result := Result{AIEnabled: p.ai != nil}

	articles, err := p.store.GetByStates(ctx, []domain.ClassificationState{domain.StateFailedTerminal}, p.batchSize)
	if err != nil {
		return result, fmt.Errorf("select failed articles: %w", err)
	}
	log.Printf("[INFO] clean started, %d articles with errors", len(articles))

	for _, article := range articles {
		baseline := Baseline(article)
		if err := p.store.ResetClassification(ctx, article.ID, baseline.Summary, baseline.KeyPoints, baseline.Tags); err != nil {
			return result, fmt.Errorf("reset article %d: %w", article.ID, err)
		}
		result.ProcessedCount++
	}

	log.Printf("[INFO] clean completed, reset %d articles", result.ProcessedCount)
	return result, nil
}
