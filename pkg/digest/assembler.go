package digest

import (
	"context"
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/examdigest/pkg/config"
	"github.com/umputun/examdigest/pkg/domain"
)

// ArticleStore is the persistence surface the assembler needs
type ArticleStore interface {
	GetProcessedSince(ctx context.Context, since time.Time, limit int) ([]*domain.Article, error)
	GetLatestProcessed(ctx context.Context, limit int) ([]*domain.Article, error)
}

// Section groups a digest's items under one category header
type Section struct {
	Category string
	Label    string
	Items    []*domain.Article
}

// Digest is the assembled content for one subscriber. ItemCount zero means
// there was nothing matching the subscriber's exams; the delivery layer
// decides whether that becomes a skip or an explicit "all quiet" note.
type Digest struct {
	Subscriber  *domain.Subscriber
	Sections    []Section
	ItemCount   int
	GeneratedAt time.Time
}

// Assembler builds per-subscriber digests from the processed article pool
type Assembler struct {
	store ArticleStore
	cfg   config.DigestConfig
	now   func() time.Time
}

// NewAssembler creates a digest assembler
func NewAssembler(store ArticleStore, cfg config.DigestConfig) *Assembler {
	return &Assembler{store: store, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// poolLimit bounds the shared pool query; it only needs to be comfortably
// larger than any single digest
const poolLimit = 100

// Pool selects the shared article pool for a digest run using a widening
// window: the primary lookback first, the fallback lookback if the primary
// is too thin, and finally whatever processed articles exist at all. A pool
// below the minimum is acceptable only once all three steps are exhausted;
// a single relevant article still beats an empty mail.
func (a *Assembler) Pool(ctx context.Context) ([]*domain.Article, error) {
	now := a.now()

	articles, err := a.store.GetProcessedSince(ctx, now.Add(-a.cfg.PrimaryWindow), poolLimit)
	if err != nil {
		return nil, fmt.Errorf("primary window pool: %w", err)
	}
	pool := clean(articles)
	if len(pool) >= a.cfg.MinItems {
		return pool, nil
	}

	log.Printf("[INFO] digest pool thin (%d items), widening to %v", len(pool), a.cfg.FallbackWindow)
	articles, err = a.store.GetProcessedSince(ctx, now.Add(-a.cfg.FallbackWindow), poolLimit)
	if err != nil {
		return nil, fmt.Errorf("fallback window pool: %w", err)
	}
	pool = clean(articles)
	if len(pool) >= a.cfg.MinItems {
		return pool, nil
	}

	log.Printf("[INFO] digest pool still thin (%d items), taking latest processed", len(pool))
	articles, err = a.store.GetLatestProcessed(ctx, poolLimit)
	if err != nil {
		return nil, fmt.Errorf("latest processed pool: %w", err)
	}
	return clean(articles), nil
}

// clean drops articles whose summaries carry the AI error marker; broken
// content never reaches a subscriber
func clean(articles []*domain.Article) []*domain.Article {
	out := make([]*domain.Article, 0, len(articles))
	for _, a := range articles {
		if a.HasAIError() {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Build assembles one subscriber's digest from the shared pool: only items
// tagged with at least one of the subscriber's exams, capped, grouped by
// category in first-seen order.
func (a *Assembler) Build(pool []*domain.Article, sub *domain.Subscriber) *Digest {
	wanted := make(map[string]bool, len(sub.Exams))
	for _, exam := range sub.Exams {
		wanted[exam] = true
	}

	var items []*domain.Article
	for _, article := range pool {
		if len(items) >= a.cfg.MaxItems {
			break
		}
		for _, tag := range article.Tags {
			if wanted[tag] {
				items = append(items, article)
				break
			}
		}
	}

	digest := &Digest{Subscriber: sub, ItemCount: len(items), GeneratedAt: a.now()}

	index := map[string]int{}
	for _, article := range items {
		category := article.Category
		if category == "" {
			category = "other"
		}
		i, ok := index[category]
		if !ok {
			label := domain.CategoryLabels[category]
			if label == "" {
				label = domain.CategoryLabels["other"]
			}
			digest.Sections = append(digest.Sections, Section{Category: category, Label: label})
			i = len(digest.Sections) - 1
			index[category] = i
		}
		digest.Sections[i].Items = append(digest.Sections[i].Items, article)
	}

	return digest
}
